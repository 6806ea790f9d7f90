package marketplace

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"atelier/core/events"
	"atelier/core/types"
	nativecommon "atelier/native/common"
)

const moduleName = "marketplace"

var errOwnerNotSet = errors.New("marketplace engine: contract owner not configured")

type engineState interface {
	MarketplaceWorkGet(id uint64) (*Work, bool, error)
	MarketplaceWorkPut(*Work) error
	MarketplaceOwnershipGet(workID uint64, owner [20]byte) (*Ownership, bool, error)
	MarketplaceOwnershipPut(*Ownership) error
	MarketplaceRoyaltySplitGet(workID uint64, recipient [20]byte) (*RoyaltySplit, bool, error)
	MarketplaceRoyaltySplitPut(*RoyaltySplit) error
	MarketplaceListingGet(workID uint64, seller [20]byte) (*Listing, bool, error)
	MarketplaceListingPut(*Listing) error
	MarketplaceProfileGet(creator [20]byte) (*CreatorProfile, bool, error)
	MarketplaceProfilePut(*CreatorProfile) error
	MarketplaceNextWorkID() (uint64, error)
	MarketplaceSetNextWorkID(uint64) error
	MarketplacePlatformFeeBps() (uint32, bool, error)
	MarketplaceSetPlatformFeeBps(uint32) error
	MarketplaceClockTick() (uint64, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine wires the marketplace ledger business logic with persistence and
// event emission. The host environment serializes all mutating calls; the
// engine's only concurrency discipline is that every operation validates all
// preconditions before touching any record.
type Engine struct {
	state   engineState
	emitter events.Emitter
	owner   [20]byte
	pauses  nativecommon.PauseView
}

// NewEngine constructs a marketplace engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetOwner configures the contract owner identity. The owner collects
// platform fees and is the only caller allowed to change fee policy or verify
// creators.
func (e *Engine) SetOwner(addr [20]byte) { e.owner = addr }

// SetPauses configures the optional module pause view consulted before every
// mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

// tick advances the ledger's logical clock and returns the new reading. The
// clock stands in for wall time: it only promises strict monotonicity.
func (e *Engine) tick() (uint64, error) {
	return e.state.MarketplaceClockTick()
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatWorkID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// CreateCreatorProfile registers the caller's profile with zeroed counters.
func (e *Engine) CreateCreatorProfile(caller [20]byte, name, bio, portfolioURL string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, ok, err := e.state.MarketplaceProfileGet(caller); err != nil {
		return err
	} else if ok {
		return ErrAlreadyExists
	}
	profile := &CreatorProfile{
		Creator:       caller,
		Name:          strings.TrimSpace(name),
		Bio:           strings.TrimSpace(bio),
		PortfolioURL:  strings.TrimSpace(portfolioURL),
		TotalWorks:    0,
		TotalEarnings: big.NewInt(0),
		Verified:      false,
	}
	return e.state.MarketplaceProfilePut(profile)
}

// UpdateCreatorProfile overwrites the caller's profile text fields while
// preserving counters and verification status.
func (e *Engine) UpdateCreatorProfile(caller [20]byte, name, bio, portfolioURL string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	profile, ok, err := e.state.MarketplaceProfileGet(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	profile.Name = strings.TrimSpace(name)
	profile.Bio = strings.TrimSpace(bio)
	profile.PortfolioURL = strings.TrimSpace(portfolioURL)
	return e.state.MarketplaceProfilePut(profile)
}

// CreateWork registers a new creative work, grants the creator the full
// supply, and returns the allocated work id.
func (e *Engine) CreateWork(caller [20]byte, title, description, category string, price *big.Int, royaltyBps uint32, totalSupply uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if royaltyBps > MaxRoyaltyBps {
		return 0, ErrInvalidAmount
	}
	if totalSupply == 0 {
		return 0, ErrInvalidAmount
	}
	if price == nil || price.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	id, err := e.state.MarketplaceNextWorkID()
	if err != nil {
		return 0, err
	}
	if err := e.state.MarketplaceSetNextWorkID(id + 1); err != nil {
		return 0, err
	}
	revertID := func() {
		_ = e.state.MarketplaceSetNextWorkID(id)
	}
	createdAt, err := e.tick()
	if err != nil {
		revertID()
		return 0, err
	}
	work := &Work{
		ID:              id,
		Creator:         caller,
		Title:           strings.TrimSpace(title),
		Description:     strings.TrimSpace(description),
		Category:        strings.TrimSpace(category),
		Price:           new(big.Int).Set(price),
		RoyaltyBps:      royaltyBps,
		TotalSupply:     totalSupply,
		AvailableSupply: totalSupply,
		CreatedAt:       createdAt,
		Active:          true,
	}
	if err := e.state.MarketplaceWorkPut(work); err != nil {
		revertID()
		return 0, err
	}
	ownership := &Ownership{WorkID: id, Owner: caller, Quantity: totalSupply}
	if err := e.state.MarketplaceOwnershipPut(ownership); err != nil {
		revertID()
		return 0, err
	}
	// A missing profile is tolerated: works can predate profile creation.
	if profile, ok, err := e.state.MarketplaceProfileGet(caller); err != nil {
		return 0, err
	} else if ok {
		profile.TotalWorks++
		if err := e.state.MarketplaceProfilePut(profile); err != nil {
			return 0, err
		}
	}
	e.emit(WorkCreatedEvent(formatWorkID(id), hexAddr(caller)))
	return id, nil
}

// AddRoyaltySplit stores or overwrites an advisory royalty split for a
// collaborator. Splits are not consulted by settlement.
func (e *Engine) AddRoyaltySplit(caller [20]byte, workID uint64, recipient [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	work, ok, err := e.state.MarketplaceWorkGet(workID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if caller != work.Creator || bps > MaxSplitBps {
		return ErrUnauthorized
	}
	split := &RoyaltySplit{WorkID: workID, Recipient: recipient, Bps: bps}
	return e.state.MarketplaceRoyaltySplitPut(split)
}

// ListWorkForSale publishes a listing for the caller's units. A repeat call
// replaces any prior listing for the same (work, seller) pair.
func (e *Engine) ListWorkForSale(caller [20]byte, workID uint64, quantity uint64, pricePerUnit *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, ok, err := e.state.MarketplaceWorkGet(workID); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	ownership, ok, err := e.state.MarketplaceOwnershipGet(workID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if quantity == 0 || ownership.Quantity < quantity {
		return ErrInvalidAmount
	}
	if pricePerUnit == nil || pricePerUnit.Sign() <= 0 {
		return ErrInvalidAmount
	}
	listedAt, err := e.tick()
	if err != nil {
		return err
	}
	listing := &Listing{
		WorkID:       workID,
		Seller:       caller,
		Quantity:     quantity,
		PricePerUnit: new(big.Int).Set(pricePerUnit),
		ListedAt:     listedAt,
		Active:       true,
	}
	return e.state.MarketplaceListingPut(listing)
}

// CancelListing deactivates the caller's listing for the work. Quantity and
// price are retained for audit.
func (e *Engine) CancelListing(caller [20]byte, workID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	listing, ok, err := e.state.MarketplaceListingGet(workID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	listing.Active = false
	return e.state.MarketplaceListingPut(listing)
}

// PurchaseWork settles a purchase of units from an active listing: three
// value transfers (seller proceeds, platform fee, creator royalty) plus the
// ownership, listing and profile record updates, executed as one logical
// transaction. Every precondition is checked before the first write.
func (e *Engine) PurchaseWork(buyer [20]byte, workID uint64, seller [20]byte, quantity uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	work, ok, err := e.state.MarketplaceWorkGet(workID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	listing, ok, err := e.state.MarketplaceListingGet(workID, seller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	sellerOwnership, ok, err := e.state.MarketplaceOwnershipGet(workID, seller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	// A seller buying from their own listing touches one ownership record,
	// not two. Alias both sides to the single loaded copy so the decrement
	// and the credit land on the same record, the same way accountSet
	// deduplicates balance legs.
	sameOwnership := buyer == seller
	buyerOwnership := sellerOwnership
	if !sameOwnership {
		buyerOwnership, ok, err = e.state.MarketplaceOwnershipGet(workID, buyer)
		if err != nil {
			return err
		}
		if !ok {
			buyerOwnership = &Ownership{WorkID: workID, Owner: buyer, Quantity: 0}
		}
	}
	if quantity == 0 {
		return ErrInvalidAmount
	}
	feeBps, err := e.PlatformFeeBps()
	if err != nil {
		return err
	}
	total := grossPrice(quantity, listing.PricePerUnit)
	fee := bpsShare(total, feeBps)
	royalty := bpsShare(total, work.RoyaltyBps)
	proceeds := sellerProceeds(total, fee, royalty)
	if proceeds.Sign() < 0 {
		return ErrInvalidAmount
	}
	if !listing.Active || listing.Quantity < quantity || sellerOwnership.Quantity < quantity {
		return ErrInvalidAmount
	}
	if fee.Sign() > 0 && isZeroAddress(e.owner) {
		return errOwnerNotSet
	}

	accounts := newAccountSet(e.state)
	buyerAcc, err := accounts.get(buyer)
	if err != nil {
		return err
	}
	if buyerAcc.Balance.Cmp(total) < 0 {
		return ErrInsufficientBalance
	}
	sellerAcc, err := accounts.get(seller)
	if err != nil {
		return err
	}
	ownerAcc, err := accounts.get(e.owner)
	if err != nil {
		return err
	}
	creatorAcc, err := accounts.get(work.Creator)
	if err != nil {
		return err
	}

	// All preconditions hold; the three transfer legs mutate in-memory
	// clones and land in one persist pass below.
	buyerAcc.Balance.Sub(buyerAcc.Balance, total)
	sellerAcc.Balance.Add(sellerAcc.Balance, proceeds)
	ownerAcc.Balance.Add(ownerAcc.Balance, fee)
	creatorAcc.Balance.Add(creatorAcc.Balance, royalty)
	if err := accounts.persist(); err != nil {
		return err
	}
	revertAccounts := func() {
		_ = accounts.restore()
	}

	sellerOwnership.Quantity -= quantity
	buyerOwnership.Quantity += quantity
	if err := e.state.MarketplaceOwnershipPut(sellerOwnership); err != nil {
		revertAccounts()
		return err
	}
	if !sameOwnership {
		if err := e.state.MarketplaceOwnershipPut(buyerOwnership); err != nil {
			sellerOwnership.Quantity += quantity
			_ = e.state.MarketplaceOwnershipPut(sellerOwnership)
			revertAccounts()
			return err
		}
	}
	revertOwnership := func() {
		sellerOwnership.Quantity += quantity
		buyerOwnership.Quantity -= quantity
		_ = e.state.MarketplaceOwnershipPut(sellerOwnership)
		if !sameOwnership {
			_ = e.state.MarketplaceOwnershipPut(buyerOwnership)
		}
	}
	listing.Quantity -= quantity
	if listing.Quantity == 0 {
		listing.Active = false
	}
	if err := e.state.MarketplaceListingPut(listing); err != nil {
		revertOwnership()
		revertAccounts()
		return err
	}
	// Royalty earnings accrue on the creator profile when one exists; its
	// absence is a documented no-op, not an error.
	if profile, ok, err := e.state.MarketplaceProfileGet(work.Creator); err != nil {
		return err
	} else if ok {
		if profile.TotalEarnings == nil {
			profile.TotalEarnings = big.NewInt(0)
		}
		profile.TotalEarnings = new(big.Int).Add(profile.TotalEarnings, royalty)
		if err := e.state.MarketplaceProfilePut(profile); err != nil {
			return err
		}
	}
	e.emit(WorkPurchasedEvent(formatWorkID(workID), hexAddr(buyer), hexAddr(seller), strconv.FormatUint(quantity, 10), total.String()))
	e.emit(RoyaltyPaidEvent(formatWorkID(workID), hexAddr(work.Creator), royalty.String()))
	return nil
}

// SetPlatformFee updates the platform fee basis points. Only the contract
// owner may call; the new fee carries no upper bound, the negative-proceeds
// check in PurchaseWork is the backstop.
func (e *Engine) SetPlatformFee(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != e.owner || isZeroAddress(e.owner) {
		return ErrUnauthorized
	}
	return e.state.MarketplaceSetPlatformFeeBps(bps)
}

// VerifyCreator marks a creator profile as verified. Owner only.
func (e *Engine) VerifyCreator(caller [20]byte, creator [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != e.owner || isZeroAddress(e.owner) {
		return ErrUnauthorized
	}
	profile, ok, err := e.state.MarketplaceProfileGet(creator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	profile.Verified = true
	return e.state.MarketplaceProfilePut(profile)
}

// DeactivateWork retires a work from the marketplace. Callable by the
// contract owner or the work's creator.
func (e *Engine) DeactivateWork(caller [20]byte, workID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	work, ok, err := e.state.MarketplaceWorkGet(workID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if caller != work.Creator && (caller != e.owner || isZeroAddress(e.owner)) {
		return ErrUnauthorized
	}
	work.Active = false
	return e.state.MarketplaceWorkPut(work)
}

// --- Queries ---

// GetWork returns the work record for the supplied id.
func (e *Engine) GetWork(workID uint64) (*Work, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.MarketplaceWorkGet(workID)
}

// GetOwnership returns the ownership record for a (work, owner) pair.
func (e *Engine) GetOwnership(workID uint64, owner [20]byte) (*Ownership, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.MarketplaceOwnershipGet(workID, owner)
}

// GetProfile returns the creator profile for the supplied identity.
func (e *Engine) GetProfile(creator [20]byte) (*CreatorProfile, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.MarketplaceProfileGet(creator)
}

// GetListing returns the listing for a (work, seller) pair.
func (e *Engine) GetListing(workID uint64, seller [20]byte) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.MarketplaceListingGet(workID, seller)
}

// GetRoyaltySplit returns the advisory split for a (work, recipient) pair.
func (e *Engine) GetRoyaltySplit(workID uint64, recipient [20]byte) (*RoyaltySplit, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.MarketplaceRoyaltySplitGet(workID, recipient)
}

// NextWorkID returns the id the next successful CreateWork call will use.
func (e *Engine) NextWorkID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.MarketplaceNextWorkID()
}

// PlatformFeeBps returns the current platform fee, falling back to the
// default when no override has been stored.
func (e *Engine) PlatformFeeBps() (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	bps, ok, err := e.state.MarketplacePlatformFeeBps()
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultPlatformFeeBps, nil
	}
	return bps, nil
}

// accountSet loads each touched account exactly once so that transfer legs
// between aliased parties (seller doubling as creator, owner buying their own
// work) compose on a single in-memory copy. persist writes every account in
// load order; restore rewrites the pristine copies after a downstream write
// fails.
type accountSet struct {
	state    engineState
	working  map[[20]byte]*types.Account
	pristine map[[20]byte]*types.Account
	order    [][20]byte
}

func newAccountSet(state engineState) *accountSet {
	return &accountSet{
		state:    state,
		working:  make(map[[20]byte]*types.Account),
		pristine: make(map[[20]byte]*types.Account),
	}
}

func (s *accountSet) get(addr [20]byte) (*types.Account, error) {
	if acc, ok := s.working[addr]; ok {
		return acc, nil
	}
	loaded, err := s.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	loaded = ensureAccount(loaded)
	pristine := &types.Account{Nonce: loaded.Nonce, Balance: new(big.Int).Set(loaded.Balance)}
	s.working[addr] = loaded
	s.pristine[addr] = pristine
	s.order = append(s.order, addr)
	return loaded, nil
}

func (s *accountSet) persist() error {
	for i, addr := range s.order {
		if err := s.state.PutAccount(addr[:], s.working[addr]); err != nil {
			for j := 0; j < i; j++ {
				prev := s.order[j]
				_ = s.state.PutAccount(prev[:], s.pristine[prev])
			}
			return err
		}
	}
	return nil
}

func (s *accountSet) restore() error {
	var firstErr error
	for _, addr := range s.order {
		if err := s.state.PutAccount(addr[:], s.pristine[addr]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
