package types

import "math/big"

// Account is the value-transfer substrate for the marketplace ledger. Every
// caller identity maps to exactly one account holding the chain's single
// settlement token.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
