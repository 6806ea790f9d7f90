package marketplace

import "errors"

// The marketplace surfaces every failure as one of a closed set of error
// kinds. Callers branch with errors.Is; no error carries a payload beyond its
// kind.
var (
	// ErrUnauthorized is returned when the caller lacks permission for an
	// owner- or creator-gated operation.
	ErrUnauthorized = errors.New("marketplace: unauthorized")
	// ErrNotFound is returned when a referenced work, listing, ownership or
	// profile record does not exist.
	ErrNotFound = errors.New("marketplace: not found")
	// ErrInvalidAmount is returned when a quantity, price or basis-point
	// input fails validation, or when settlement amounts do not add up.
	ErrInvalidAmount = errors.New("marketplace: invalid amount")
	// ErrInsufficientBalance is returned when the buyer cannot cover the
	// full purchase price.
	ErrInsufficientBalance = errors.New("marketplace: insufficient balance")
	// ErrAlreadyExists is returned when creating a profile that already
	// exists.
	ErrAlreadyExists = errors.New("marketplace: already exists")
	// ErrInvalidRoyalty is reserved for royalty-specific validation;
	// creation currently folds royalty failures into ErrInvalidAmount.
	ErrInvalidRoyalty = errors.New("marketplace: invalid royalty")

	errNilState = errors.New("marketplace engine: state not configured")
)
