package marketplace

import "math/big"

// Work represents a tokenized creative work with a fixed total supply divided
// among owners.
type Work struct {
	ID              uint64   `json:"id"`
	Creator         [20]byte `json:"creator"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Price           *big.Int `json:"price"`
	RoyaltyBps      uint32   `json:"royaltyBps"`
	TotalSupply     uint64   `json:"totalSupply"`
	AvailableSupply uint64   `json:"availableSupply"`
	CreatedAt       uint64   `json:"createdAt"`
	Active          bool     `json:"active"`
}

// Clone returns a deep copy of the work record.
func (w *Work) Clone() *Work {
	if w == nil {
		return nil
	}
	clone := *w
	if w.Price != nil {
		clone.Price = new(big.Int).Set(w.Price)
	}
	return &clone
}

// Ownership records how many units of a work an account currently holds. A
// record with quantity zero is kept rather than deleted.
type Ownership struct {
	WorkID   uint64   `json:"workId"`
	Owner    [20]byte `json:"owner"`
	Quantity uint64   `json:"quantity"`
}

// Clone returns a copy of the ownership record.
func (o *Ownership) Clone() *Ownership {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// RoyaltySplit is an advisory record of how a work's royalty should be shared
// with a collaborator. Settlement does not consult splits; the full royalty
// leg pays the work's creator.
type RoyaltySplit struct {
	WorkID    uint64   `json:"workId"`
	Recipient [20]byte `json:"recipient"`
	Bps       uint32   `json:"bps"`
}

// Clone returns a copy of the royalty split record.
func (r *RoyaltySplit) Clone() *RoyaltySplit {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Listing is an offer by a current owner to sell some quantity of a work at a
// fixed per-unit price. Listings are soft-cancelled or soft-completed; they
// are never deleted.
type Listing struct {
	WorkID       uint64   `json:"workId"`
	Seller       [20]byte `json:"seller"`
	Quantity     uint64   `json:"quantity"`
	PricePerUnit *big.Int `json:"pricePerUnit"`
	ListedAt     uint64   `json:"listedAt"`
	Active       bool     `json:"active"`
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.PricePerUnit != nil {
		clone.PricePerUnit = new(big.Int).Set(l.PricePerUnit)
	}
	return &clone
}

// CreatorProfile maintains the public identity and cumulative counters for a
// creator. TotalEarnings tracks royalty income only.
type CreatorProfile struct {
	Creator       [20]byte `json:"creator"`
	Name          string   `json:"name"`
	Bio           string   `json:"bio"`
	PortfolioURL  string   `json:"portfolioUrl"`
	TotalWorks    uint64   `json:"totalWorks"`
	TotalEarnings *big.Int `json:"totalEarnings"`
	Verified      bool     `json:"verified"`
}

// Clone returns a deep copy of the profile.
func (p *CreatorProfile) Clone() *CreatorProfile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.TotalEarnings != nil {
		clone.TotalEarnings = new(big.Int).Set(p.TotalEarnings)
	}
	return &clone
}
