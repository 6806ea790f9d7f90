package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"atelier/native/marketplace"
)

var (
	marketplaceWorkPrefix      = []byte("marketplace/work/")
	marketplaceOwnershipPrefix = []byte("marketplace/ownership/")
	marketplaceSplitPrefix     = []byte("marketplace/split/")
	marketplaceListingPrefix   = []byte("marketplace/listing/")
	marketplaceProfilePrefix   = []byte("marketplace/profile/")
	marketplaceNextWorkIDKey   = ethcrypto.Keccak256([]byte("marketplace/next-work-id"))
	marketplacePlatformFeeKey  = ethcrypto.Keccak256([]byte("marketplace/platform-fee-bps"))
	marketplaceClockKey        = ethcrypto.Keccak256([]byte("marketplace/clock"))
)

func marketplaceWorkKey(id uint64) []byte {
	buf := make([]byte, len(marketplaceWorkPrefix)+8)
	copy(buf, marketplaceWorkPrefix)
	binary.BigEndian.PutUint64(buf[len(marketplaceWorkPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func marketplacePairKey(prefix []byte, workID uint64, addr [20]byte) []byte {
	buf := make([]byte, len(prefix)+8+len(addr))
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], workID)
	copy(buf[len(prefix)+8:], addr[:])
	return ethcrypto.Keccak256(buf)
}

func marketplaceProfileKey(creator [20]byte) []byte {
	buf := make([]byte, len(marketplaceProfilePrefix)+len(creator))
	copy(buf, marketplaceProfilePrefix)
	copy(buf[len(marketplaceProfilePrefix):], creator[:])
	return ethcrypto.Keccak256(buf)
}

type storedWork struct {
	ID              uint64
	Creator         [20]byte
	Title           string
	Description     string
	Category        string
	Price           *big.Int
	RoyaltyBps      uint64
	TotalSupply     uint64
	AvailableSupply uint64
	CreatedAt       uint64
	Active          bool
}

func newStoredWork(w *marketplace.Work) *storedWork {
	price := big.NewInt(0)
	if w.Price != nil {
		price = new(big.Int).Set(w.Price)
	}
	return &storedWork{
		ID:              w.ID,
		Creator:         w.Creator,
		Title:           w.Title,
		Description:     w.Description,
		Category:        w.Category,
		Price:           price,
		RoyaltyBps:      uint64(w.RoyaltyBps),
		TotalSupply:     w.TotalSupply,
		AvailableSupply: w.AvailableSupply,
		CreatedAt:       w.CreatedAt,
		Active:          w.Active,
	}
}

func (s *storedWork) toWork() (*marketplace.Work, error) {
	if s == nil {
		return nil, fmt.Errorf("marketplace: nil work record")
	}
	if s.RoyaltyBps > marketplace.MaxRoyaltyBps {
		return nil, fmt.Errorf("marketplace: stored royalty out of range")
	}
	out := &marketplace.Work{
		ID:              s.ID,
		Creator:         s.Creator,
		Title:           s.Title,
		Description:     s.Description,
		Category:        s.Category,
		Price:           big.NewInt(0),
		RoyaltyBps:      uint32(s.RoyaltyBps),
		TotalSupply:     s.TotalSupply,
		AvailableSupply: s.AvailableSupply,
		CreatedAt:       s.CreatedAt,
		Active:          s.Active,
	}
	if s.Price != nil {
		out.Price = new(big.Int).Set(s.Price)
	}
	return out, nil
}

// MarketplaceWorkPut persists a work record.
func (m *Manager) MarketplaceWorkPut(w *marketplace.Work) error {
	if w == nil {
		return fmt.Errorf("marketplace: nil work")
	}
	encoded, err := rlp.EncodeToBytes(newStoredWork(w))
	if err != nil {
		return err
	}
	return m.db.Put(marketplaceWorkKey(w.ID), encoded)
}

// MarketplaceWorkGet loads a work record by id.
func (m *Manager) MarketplaceWorkGet(id uint64) (*marketplace.Work, bool, error) {
	data, ok, err := m.readRecord(marketplaceWorkKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedWork)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("marketplace: decode work: %w", err)
	}
	work, err := stored.toWork()
	if err != nil {
		return nil, false, err
	}
	return work, true, nil
}

type storedOwnership struct {
	WorkID   uint64
	Owner    [20]byte
	Quantity uint64
}

// MarketplaceOwnershipPut persists an ownership record. Zero-quantity records
// are written rather than deleted.
func (m *Manager) MarketplaceOwnershipPut(o *marketplace.Ownership) error {
	if o == nil {
		return fmt.Errorf("marketplace: nil ownership")
	}
	encoded, err := rlp.EncodeToBytes(&storedOwnership{WorkID: o.WorkID, Owner: o.Owner, Quantity: o.Quantity})
	if err != nil {
		return err
	}
	return m.db.Put(marketplacePairKey(marketplaceOwnershipPrefix, o.WorkID, o.Owner), encoded)
}

// MarketplaceOwnershipGet loads the ownership record for a (work, owner) pair.
func (m *Manager) MarketplaceOwnershipGet(workID uint64, owner [20]byte) (*marketplace.Ownership, bool, error) {
	data, ok, err := m.readRecord(marketplacePairKey(marketplaceOwnershipPrefix, workID, owner))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedOwnership)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("marketplace: decode ownership: %w", err)
	}
	return &marketplace.Ownership{WorkID: stored.WorkID, Owner: stored.Owner, Quantity: stored.Quantity}, true, nil
}

type storedRoyaltySplit struct {
	WorkID    uint64
	Recipient [20]byte
	Bps       uint64
}

// MarketplaceRoyaltySplitPut persists an advisory royalty split.
func (m *Manager) MarketplaceRoyaltySplitPut(r *marketplace.RoyaltySplit) error {
	if r == nil {
		return fmt.Errorf("marketplace: nil royalty split")
	}
	encoded, err := rlp.EncodeToBytes(&storedRoyaltySplit{WorkID: r.WorkID, Recipient: r.Recipient, Bps: uint64(r.Bps)})
	if err != nil {
		return err
	}
	return m.db.Put(marketplacePairKey(marketplaceSplitPrefix, r.WorkID, r.Recipient), encoded)
}

// MarketplaceRoyaltySplitGet loads the split for a (work, recipient) pair.
func (m *Manager) MarketplaceRoyaltySplitGet(workID uint64, recipient [20]byte) (*marketplace.RoyaltySplit, bool, error) {
	data, ok, err := m.readRecord(marketplacePairKey(marketplaceSplitPrefix, workID, recipient))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedRoyaltySplit)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("marketplace: decode royalty split: %w", err)
	}
	if stored.Bps > marketplace.MaxSplitBps {
		return nil, false, fmt.Errorf("marketplace: stored split out of range")
	}
	return &marketplace.RoyaltySplit{WorkID: stored.WorkID, Recipient: stored.Recipient, Bps: uint32(stored.Bps)}, true, nil
}

type storedListing struct {
	WorkID       uint64
	Seller       [20]byte
	Quantity     uint64
	PricePerUnit *big.Int
	ListedAt     uint64
	Active       bool
}

// MarketplaceListingPut persists a listing, overwriting any prior listing for
// the same (work, seller) pair.
func (m *Manager) MarketplaceListingPut(l *marketplace.Listing) error {
	if l == nil {
		return fmt.Errorf("marketplace: nil listing")
	}
	price := big.NewInt(0)
	if l.PricePerUnit != nil {
		price = new(big.Int).Set(l.PricePerUnit)
	}
	encoded, err := rlp.EncodeToBytes(&storedListing{
		WorkID:       l.WorkID,
		Seller:       l.Seller,
		Quantity:     l.Quantity,
		PricePerUnit: price,
		ListedAt:     l.ListedAt,
		Active:       l.Active,
	})
	if err != nil {
		return err
	}
	return m.db.Put(marketplacePairKey(marketplaceListingPrefix, l.WorkID, l.Seller), encoded)
}

// MarketplaceListingGet loads the listing for a (work, seller) pair.
func (m *Manager) MarketplaceListingGet(workID uint64, seller [20]byte) (*marketplace.Listing, bool, error) {
	data, ok, err := m.readRecord(marketplacePairKey(marketplaceListingPrefix, workID, seller))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("marketplace: decode listing: %w", err)
	}
	out := &marketplace.Listing{
		WorkID:       stored.WorkID,
		Seller:       stored.Seller,
		Quantity:     stored.Quantity,
		PricePerUnit: big.NewInt(0),
		ListedAt:     stored.ListedAt,
		Active:       stored.Active,
	}
	if stored.PricePerUnit != nil {
		out.PricePerUnit = new(big.Int).Set(stored.PricePerUnit)
	}
	return out, true, nil
}

type storedProfile struct {
	Creator       [20]byte
	Name          string
	Bio           string
	PortfolioURL  string
	TotalWorks    uint64
	TotalEarnings *big.Int
	Verified      bool
}

// MarketplaceProfilePut persists a creator profile.
func (m *Manager) MarketplaceProfilePut(p *marketplace.CreatorProfile) error {
	if p == nil {
		return fmt.Errorf("marketplace: nil profile")
	}
	earnings := big.NewInt(0)
	if p.TotalEarnings != nil {
		earnings = new(big.Int).Set(p.TotalEarnings)
	}
	encoded, err := rlp.EncodeToBytes(&storedProfile{
		Creator:       p.Creator,
		Name:          p.Name,
		Bio:           p.Bio,
		PortfolioURL:  p.PortfolioURL,
		TotalWorks:    p.TotalWorks,
		TotalEarnings: earnings,
		Verified:      p.Verified,
	})
	if err != nil {
		return err
	}
	return m.db.Put(marketplaceProfileKey(p.Creator), encoded)
}

// MarketplaceProfileGet loads the profile for a creator identity.
func (m *Manager) MarketplaceProfileGet(creator [20]byte) (*marketplace.CreatorProfile, bool, error) {
	data, ok, err := m.readRecord(marketplaceProfileKey(creator))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedProfile)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("marketplace: decode profile: %w", err)
	}
	out := &marketplace.CreatorProfile{
		Creator:       stored.Creator,
		Name:          stored.Name,
		Bio:           stored.Bio,
		PortfolioURL:  stored.PortfolioURL,
		TotalWorks:    stored.TotalWorks,
		TotalEarnings: big.NewInt(0),
		Verified:      stored.Verified,
	}
	if stored.TotalEarnings != nil {
		out.TotalEarnings = new(big.Int).Set(stored.TotalEarnings)
	}
	return out, true, nil
}

// MarketplaceNextWorkID returns the id the next work creation will consume.
// Work ids start at 1 and are never reused.
func (m *Manager) MarketplaceNextWorkID() (uint64, error) {
	value, err := m.loadCounter(marketplaceNextWorkIDKey)
	if err != nil {
		return 0, err
	}
	if value.Sign() == 0 {
		return 1, nil
	}
	if value.BitLen() > 63 {
		return 0, fmt.Errorf("marketplace: work id overflow")
	}
	return value.Uint64(), nil
}

// MarketplaceSetNextWorkID stores the next work id counter.
func (m *Manager) MarketplaceSetNextWorkID(id uint64) error {
	return m.writeCounter(marketplaceNextWorkIDKey, new(big.Int).SetUint64(id))
}

// MarketplacePlatformFeeBps returns the stored platform fee override. The
// second return reports whether an override exists; callers fall back to the
// module default otherwise.
func (m *Manager) MarketplacePlatformFeeBps() (uint32, bool, error) {
	data, ok, err := m.readRecord(marketplacePlatformFeeKey)
	if err != nil || !ok {
		return 0, false, err
	}
	var bps uint64
	if err := rlp.DecodeBytes(data, &bps); err != nil {
		return 0, false, fmt.Errorf("marketplace: decode platform fee: %w", err)
	}
	if bps > uint64(^uint32(0)) {
		return 0, false, fmt.Errorf("marketplace: stored platform fee out of range")
	}
	return uint32(bps), true, nil
}

// MarketplaceSetPlatformFeeBps stores the platform fee basis points.
func (m *Manager) MarketplaceSetPlatformFeeBps(bps uint32) error {
	encoded, err := rlp.EncodeToBytes(uint64(bps))
	if err != nil {
		return err
	}
	return m.db.Put(marketplacePlatformFeeKey, encoded)
}

// MarketplaceClockTick advances the ledger's logical clock and returns the
// new reading. The clock is strictly increasing across restarts because it is
// persisted on every read.
func (m *Manager) MarketplaceClockTick() (uint64, error) {
	value, err := m.loadCounter(marketplaceClockKey)
	if err != nil {
		return 0, err
	}
	if value.BitLen() > 63 {
		return 0, fmt.Errorf("marketplace: clock overflow")
	}
	next := value.Uint64() + 1
	if err := m.writeCounter(marketplaceClockKey, new(big.Int).SetUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}
