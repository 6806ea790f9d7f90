package marketplace

import "math/big"

const (
	// BpsDenominator is the basis-point scale: 10,000 = 100%.
	BpsDenominator = 10_000
	// MaxRoyaltyBps caps the royalty share a creator may attach to a work.
	MaxRoyaltyBps = 5_000
	// MaxSplitBps caps a single advisory royalty-split entry.
	MaxSplitBps = 10_000
	// DefaultPlatformFeeBps is the platform fee applied until the contract
	// owner overrides it.
	DefaultPlatformFeeBps = 250
)

var bpsDenom = big.NewInt(BpsDenominator)

// bpsShare returns floor(total * bps / 10000). The truncation matches the
// integer division of the settlement arithmetic; remainders stay with the
// seller leg.
func bpsShare(total *big.Int, bps uint32) *big.Int {
	if total == nil || total.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(total, big.NewInt(int64(bps)))
	return share.Div(share, bpsDenom)
}

// grossPrice returns quantity * pricePerUnit.
func grossPrice(quantity uint64, pricePerUnit *big.Int) *big.Int {
	if pricePerUnit == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(quantity), pricePerUnit)
}

// sellerProceeds returns total - fee - royalty. The result is negative when
// the combined fee and royalty basis points exceed 100%; callers must reject
// that case before moving funds.
func sellerProceeds(total, fee, royalty *big.Int) *big.Int {
	proceeds := new(big.Int).Sub(total, fee)
	return proceeds.Sub(proceeds, royalty)
}
