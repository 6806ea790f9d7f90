package marketplace

import (
	"errors"
	"math/big"
	"testing"

	"atelier/core/events"
	"atelier/core/types"
	nativecommon "atelier/native/common"
)

type mockState struct {
	works      map[uint64]*Work
	ownerships map[string]*Ownership
	splits     map[string]*RoyaltySplit
	listings   map[string]*Listing
	profiles   map[string]*CreatorProfile
	accounts   map[string]*types.Account
	nextWorkID uint64
	feeBps     *uint32
	clock      uint64
}

func newMockState() *mockState {
	return &mockState{
		works:      make(map[uint64]*Work),
		ownerships: make(map[string]*Ownership),
		splits:     make(map[string]*RoyaltySplit),
		listings:   make(map[string]*Listing),
		profiles:   make(map[string]*CreatorProfile),
		accounts:   make(map[string]*types.Account),
	}
}

func pairKey(workID uint64, addr [20]byte) string {
	buf := make([]byte, 8+20)
	buf[0] = byte(workID >> 56)
	buf[1] = byte(workID >> 48)
	buf[2] = byte(workID >> 40)
	buf[3] = byte(workID >> 32)
	buf[4] = byte(workID >> 24)
	buf[5] = byte(workID >> 16)
	buf[6] = byte(workID >> 8)
	buf[7] = byte(workID)
	copy(buf[8:], addr[:])
	return string(buf)
}

func (m *mockState) MarketplaceWorkGet(id uint64) (*Work, bool, error) {
	work, ok := m.works[id]
	if !ok {
		return nil, false, nil
	}
	return work.Clone(), true, nil
}

func (m *mockState) MarketplaceWorkPut(w *Work) error {
	if w == nil {
		return nil
	}
	m.works[w.ID] = w.Clone()
	return nil
}

func (m *mockState) MarketplaceOwnershipGet(workID uint64, owner [20]byte) (*Ownership, bool, error) {
	o, ok := m.ownerships[pairKey(workID, owner)]
	if !ok {
		return nil, false, nil
	}
	return o.Clone(), true, nil
}

func (m *mockState) MarketplaceOwnershipPut(o *Ownership) error {
	if o == nil {
		return nil
	}
	m.ownerships[pairKey(o.WorkID, o.Owner)] = o.Clone()
	return nil
}

func (m *mockState) MarketplaceRoyaltySplitGet(workID uint64, recipient [20]byte) (*RoyaltySplit, bool, error) {
	r, ok := m.splits[pairKey(workID, recipient)]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *mockState) MarketplaceRoyaltySplitPut(r *RoyaltySplit) error {
	if r == nil {
		return nil
	}
	m.splits[pairKey(r.WorkID, r.Recipient)] = r.Clone()
	return nil
}

func (m *mockState) MarketplaceListingGet(workID uint64, seller [20]byte) (*Listing, bool, error) {
	l, ok := m.listings[pairKey(workID, seller)]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (m *mockState) MarketplaceListingPut(l *Listing) error {
	if l == nil {
		return nil
	}
	m.listings[pairKey(l.WorkID, l.Seller)] = l.Clone()
	return nil
}

func (m *mockState) MarketplaceProfileGet(creator [20]byte) (*CreatorProfile, bool, error) {
	p, ok := m.profiles[string(creator[:])]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) MarketplaceProfilePut(p *CreatorProfile) error {
	if p == nil {
		return nil
	}
	m.profiles[string(p.Creator[:])] = p.Clone()
	return nil
}

func (m *mockState) MarketplaceNextWorkID() (uint64, error) {
	if m.nextWorkID == 0 {
		return 1, nil
	}
	return m.nextWorkID, nil
}

func (m *mockState) MarketplaceSetNextWorkID(id uint64) error {
	m.nextWorkID = id
	return nil
}

func (m *mockState) MarketplacePlatformFeeBps() (uint32, bool, error) {
	if m.feeBps == nil {
		return 0, false, nil
	}
	return *m.feeBps, true, nil
}

func (m *mockState) MarketplaceSetPlatformFeeBps(bps uint32) error {
	m.feeBps = &bps
	return nil
}

func (m *mockState) MarketplaceClockTick() (uint64, error) {
	m.clock++
	return m.clock, nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok {
		return &types.Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}, nil
	}
	return nil, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		delete(m.accounts, string(addr))
		return nil
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	m.accounts[string(addr)] = &types.Account{Nonce: account.Nonce, Balance: balance}
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[string(addr[:])] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[string(addr[:])]; ok {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func newTestEngine(state *mockState, owner [20]byte) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetOwner(owner)
	return engine
}

func mustCreateWork(t *testing.T, engine *Engine, creator [20]byte, price int64, royaltyBps uint32, supply uint64) uint64 {
	t.Helper()
	id, err := engine.CreateWork(creator, "Title", "Description", "art", big.NewInt(price), royaltyBps, supply)
	if err != nil {
		t.Fatalf("create work failed: %v", err)
	}
	return id
}

func TestCreateWorkAllocatesMonotonicIDs(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)

	for want := uint64(1); want <= 4; want++ {
		id := mustCreateWork(t, engine, creator, 1_000, 500, 10)
		if id != want {
			t.Fatalf("expected work id %d, got %d", want, id)
		}
		next, err := engine.NextWorkID()
		if err != nil {
			t.Fatalf("next work id failed: %v", err)
		}
		if next != want+1 {
			t.Fatalf("expected next id %d after creation, got %d", want+1, next)
		}
	}
}

func TestCreateProfileUniqueness(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)

	if err := engine.CreateCreatorProfile(creator, "Ada", "painter", "https://ada.example"); err != nil {
		t.Fatalf("first profile creation failed: %v", err)
	}
	// A prior failed operation must not consume the identity.
	if _, err := engine.CreateWork(creator, "t", "d", "c", big.NewInt(0), 0, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := engine.CreateCreatorProfile(creator, "Ada", "painter", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestUpdateProfilePreservesCounters(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)

	if err := engine.UpdateCreatorProfile(creator, "x", "y", "z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing profile, got %v", err)
	}
	if err := engine.CreateCreatorProfile(creator, "Ada", "painter", ""); err != nil {
		t.Fatalf("profile creation failed: %v", err)
	}
	mustCreateWork(t, engine, creator, 1_000, 0, 5)
	if err := engine.VerifyCreator(addr(0xFF), creator); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := engine.UpdateCreatorProfile(creator, "Ada L.", "printmaker", "https://ada.example"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	profile, ok, err := engine.GetProfile(creator)
	if err != nil || !ok {
		t.Fatalf("profile lookup failed: ok=%v err=%v", ok, err)
	}
	if profile.Name != "Ada L." || profile.Bio != "printmaker" {
		t.Fatalf("text fields not updated: %+v", profile)
	}
	if profile.TotalWorks != 1 || !profile.Verified {
		t.Fatalf("counters or verification lost on update: %+v", profile)
	}
}

func TestCreateWorkValidationShortCircuits(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)

	cases := []struct {
		name       string
		price      *big.Int
		royaltyBps uint32
		supply     uint64
	}{
		{"royalty above cap", big.NewInt(1_000), MaxRoyaltyBps + 1, 10},
		{"zero supply", big.NewInt(1_000), 500, 0},
		{"zero price", big.NewInt(0), 500, 10},
		{"nil price", nil, 500, 10},
	}
	for _, tc := range cases {
		if _, err := engine.CreateWork(creator, "t", "d", "c", tc.price, tc.royaltyBps, tc.supply); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%s: expected invalid amount, got %v", tc.name, err)
		}
	}
	if len(state.works) != 0 || len(state.ownerships) != 0 {
		t.Fatalf("invalid creation left records behind: works=%d ownerships=%d", len(state.works), len(state.ownerships))
	}
	if state.nextWorkID != 0 || state.clock != 0 {
		t.Fatalf("invalid creation advanced counters: nextID=%d clock=%d", state.nextWorkID, state.clock)
	}
	// Royalty at exactly the cap is accepted, zero royalty too.
	mustCreateWork(t, engine, creator, 1, MaxRoyaltyBps, 1)
	mustCreateWork(t, engine, creator, 1, 0, 1)
}

func setupListedWork(t *testing.T, state *mockState, engine *Engine, creator, buyer [20]byte) uint64 {
	t.Helper()
	state.setBalance(buyer, 100_000_000)
	workID := mustCreateWork(t, engine, creator, 1_000_000, 1_000, 100)
	if err := engine.ListWorkForSale(creator, workID, 10, big.NewInt(1_100_000)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	return workID
}

func TestPurchaseConservesOwnership(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	sellerBefore, _, _ := engine.GetOwnership(workID, creator)
	if err := engine.PurchaseWork(buyer, workID, creator, 4); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	sellerAfter, _, _ := engine.GetOwnership(workID, creator)
	buyerAfter, _, _ := engine.GetOwnership(workID, buyer)
	if sellerAfter.Quantity+buyerAfter.Quantity != sellerBefore.Quantity {
		t.Fatalf("ownership not conserved: seller=%d buyer=%d before=%d",
			sellerAfter.Quantity, buyerAfter.Quantity, sellerBefore.Quantity)
	}
}

func TestSelfPurchaseConservesOwnership(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)

	state.setBalance(creator, 10_000_000)
	workID := mustCreateWork(t, engine, creator, 1_000_000, 1_000, 10)
	if err := engine.ListWorkForSale(creator, workID, 5, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}

	// Buyer and seller are the same party: both ownership legs hit one
	// record and must cancel out instead of minting units.
	if err := engine.PurchaseWork(creator, workID, creator, 2); err != nil {
		t.Fatalf("self purchase failed: %v", err)
	}

	record, ok, err := engine.GetOwnership(workID, creator)
	if err != nil || !ok {
		t.Fatalf("missing ownership after self purchase: ok=%v err=%v", ok, err)
	}
	if record.Quantity != 10 {
		t.Fatalf("ownership quantity = %d, want 10", record.Quantity)
	}

	listing, ok, err := engine.GetListing(workID, creator)
	if err != nil || !ok {
		t.Fatalf("missing listing after self purchase: ok=%v err=%v", ok, err)
	}
	if listing.Quantity != 3 || !listing.Active {
		t.Fatalf("listing = %d units active=%v, want 3 units active", listing.Quantity, listing.Active)
	}

	// total 2,000,000: fee 50,000 (250 bps default) leaves the party, while
	// proceeds 1,750,000 and royalty 200,000 flow back to the same account.
	if got, want := state.balance(creator), big.NewInt(9_950_000); got.Cmp(want) != 0 {
		t.Fatalf("creator balance = %s, want %s", got, want)
	}
	if got, want := state.balance(owner), big.NewInt(50_000); got.Cmp(want) != 0 {
		t.Fatalf("owner balance = %s, want %s", got, want)
	}
}

func TestPurchaseSettlementArithmetic(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	holder := addr(0x02)
	buyer := addr(0x03)

	// Royalty 750 bps on the work, default platform fee raised to 250 bps
	// explicitly to pin the arithmetic.
	if err := engine.SetPlatformFee(owner, 250); err != nil {
		t.Fatalf("set fee failed: %v", err)
	}
	state.setBalance(holder, 10_000_000)
	state.setBalance(buyer, 10_000_000)
	workID := mustCreateWork(t, engine, creator, 1_000_000, 750, 100)

	// Move units to a non-creator holder first so proceeds and royalty land
	// on different accounts.
	if err := engine.ListWorkForSale(creator, workID, 50, big.NewInt(100)); err != nil {
		t.Fatalf("creator listing failed: %v", err)
	}
	if err := engine.PurchaseWork(holder, workID, creator, 50); err != nil {
		t.Fatalf("seed purchase failed: %v", err)
	}

	if err := engine.ListWorkForSale(holder, workID, 10, big.NewInt(2_000_000)); err != nil {
		t.Fatalf("holder listing failed: %v", err)
	}
	holderBefore := state.balance(holder)
	ownerBefore := state.balance(owner)
	creatorBefore := state.balance(creator)
	buyerBefore := state.balance(buyer)

	if err := engine.PurchaseWork(buyer, workID, holder, 1); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// total 2,000,000: fee 50,000 (250 bps), royalty 150,000 (750 bps),
	// proceeds 1,800,000.
	if diff := new(big.Int).Sub(state.balance(holder), holderBefore); diff.Cmp(big.NewInt(1_800_000)) != 0 {
		t.Fatalf("unexpected seller proceeds: %s", diff)
	}
	if diff := new(big.Int).Sub(state.balance(owner), ownerBefore); diff.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("unexpected platform fee: %s", diff)
	}
	if diff := new(big.Int).Sub(state.balance(creator), creatorBefore); diff.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("unexpected royalty: %s", diff)
	}
	if diff := new(big.Int).Sub(buyerBefore, state.balance(buyer)); diff.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("unexpected buyer debit: %s", diff)
	}
}

func TestPurchaseFeeTruncation(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	buyer := addr(0x02)

	state.setBalance(buyer, 10_000_000)
	workID := mustCreateWork(t, engine, creator, 1, 0, 10)
	if err := engine.ListWorkForSale(creator, workID, 1, big.NewInt(1_000_001)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	ownerBefore := state.balance(owner)
	if err := engine.PurchaseWork(buyer, workID, creator, 1); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	// floor(1,000,001 * 250 / 10,000) = 25,000: the fractional remainder
	// stays with the seller leg.
	if diff := new(big.Int).Sub(state.balance(owner), ownerBefore); diff.Cmp(big.NewInt(25_000)) != 0 {
		t.Fatalf("expected truncated fee 25000, got %s", diff)
	}
}

func TestListingExhaustion(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	if err := engine.PurchaseWork(buyer, workID, creator, 4); err != nil {
		t.Fatalf("partial purchase failed: %v", err)
	}
	listing, ok, _ := engine.GetListing(workID, creator)
	if !ok || !listing.Active || listing.Quantity != 6 {
		t.Fatalf("partial purchase should leave active listing with 6 units: %+v", listing)
	}

	if err := engine.PurchaseWork(buyer, workID, creator, 6); err != nil {
		t.Fatalf("exhausting purchase failed: %v", err)
	}
	listing, ok, _ = engine.GetListing(workID, creator)
	if !ok || listing.Active || listing.Quantity != 0 {
		t.Fatalf("full purchase should deactivate listing: %+v", listing)
	}

	if err := engine.PurchaseWork(buyer, workID, creator, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("purchase from exhausted listing should fail: %v", err)
	}
}

func TestPurchaseValidationLeavesNoTrace(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	buyerBefore := state.balance(buyer)
	cases := []struct {
		name     string
		quantity uint64
		want     error
	}{
		{"zero quantity", 0, ErrInvalidAmount},
		{"over listing quantity", 11, ErrInvalidAmount},
	}
	for _, tc := range cases {
		if err := engine.PurchaseWork(buyer, workID, creator, tc.quantity); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if err := engine.PurchaseWork(buyer, workID+7, creator, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing work: expected not found, got %v", err)
	}
	if state.balance(buyer).Cmp(buyerBefore) != 0 {
		t.Fatalf("failed purchases moved funds")
	}
	ownership, _, _ := engine.GetOwnership(workID, creator)
	if ownership.Quantity != 100 {
		t.Fatalf("failed purchases mutated ownership: %d", ownership.Quantity)
	}
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	state.setBalance(buyer, 1_000) // well below one unit at 1,100,000
	if err := engine.PurchaseWork(buyer, workID, creator, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	listing, _, _ := engine.GetListing(workID, creator)
	if listing.Quantity != 10 || !listing.Active {
		t.Fatalf("failed purchase mutated listing: %+v", listing)
	}
}

func TestPurchaseRejectsNegativeProceeds(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	buyer := addr(0x02)

	// Fee policy has no upper bound; combined with the royalty it can
	// exceed the full price. Settlement must reject rather than clamp.
	if err := engine.SetPlatformFee(owner, 6_000); err != nil {
		t.Fatalf("set fee failed: %v", err)
	}
	state.setBalance(buyer, 10_000_000)
	workID := mustCreateWork(t, engine, creator, 1_000, MaxRoyaltyBps, 10)
	if err := engine.ListWorkForSale(creator, workID, 5, big.NewInt(1_000)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	buyerBefore := state.balance(buyer)
	if err := engine.PurchaseWork(buyer, workID, creator, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative proceeds, got %v", err)
	}
	if state.balance(buyer).Cmp(buyerBefore) != 0 {
		t.Fatalf("rejected settlement moved funds")
	}
}

func TestListingPreconditions(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	stranger := addr(0x03)
	workID := mustCreateWork(t, engine, creator, 1_000, 500, 10)

	if err := engine.ListWorkForSale(creator, workID+1, 1, big.NewInt(10)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing work: expected not found, got %v", err)
	}
	if err := engine.ListWorkForSale(stranger, workID, 1, big.NewInt(10)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no ownership record: expected not found, got %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 11, big.NewInt(10)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("over-supply listing: expected invalid amount, got %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 0, big.NewInt(10)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero quantity: expected invalid amount, got %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 1, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero price: expected invalid amount, got %v", err)
	}

	// Relisting replaces rather than accumulates.
	if err := engine.ListWorkForSale(creator, workID, 3, big.NewInt(10)); err != nil {
		t.Fatalf("first listing failed: %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 5, big.NewInt(20)); err != nil {
		t.Fatalf("replacement listing failed: %v", err)
	}
	listing, _, _ := engine.GetListing(workID, creator)
	if listing.Quantity != 5 || listing.PricePerUnit.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("replacement listing not applied: %+v", listing)
	}
}

func TestCancelListing(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	workID := mustCreateWork(t, engine, creator, 1_000, 500, 10)

	if err := engine.CancelListing(creator, workID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel without listing: expected not found, got %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 3, big.NewInt(10)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if err := engine.CancelListing(creator, workID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	listing, ok, _ := engine.GetListing(workID, creator)
	if !ok || listing.Active {
		t.Fatalf("cancelled listing should remain stored but inactive: %+v", listing)
	}
	if listing.Quantity != 3 || listing.PricePerUnit.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("cancel should retain quantity and price for audit: %+v", listing)
	}
}

func TestRoyaltySplitsAreAdvisory(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	collaborator := addr(0x04)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	if err := engine.AddRoyaltySplit(creator, workID+1, collaborator, 5_000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing work: expected not found, got %v", err)
	}
	if err := engine.AddRoyaltySplit(buyer, workID, collaborator, 5_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-creator: expected unauthorized, got %v", err)
	}
	if err := engine.AddRoyaltySplit(creator, workID, collaborator, MaxSplitBps+1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("split above 100%%: expected unauthorized, got %v", err)
	}
	if err := engine.AddRoyaltySplit(creator, workID, collaborator, 5_000); err != nil {
		t.Fatalf("split storage failed: %v", err)
	}
	split, ok, _ := engine.GetRoyaltySplit(workID, collaborator)
	if !ok || split.Bps != 5_000 {
		t.Fatalf("split not stored: %+v", split)
	}

	collaboratorBefore := state.balance(collaborator)
	if err := engine.PurchaseWork(buyer, workID, creator, 2); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if state.balance(collaborator).Cmp(collaboratorBefore) != 0 {
		t.Fatalf("settlement must not pay split recipients")
	}
}

func TestAdminAuthorization(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	creator := addr(0x01)
	stranger := addr(0x09)

	if err := engine.SetPlatformFee(stranger, 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("set fee by non-owner: expected unauthorized, got %v", err)
	}
	if err := engine.SetPlatformFee(owner, 100); err != nil {
		t.Fatalf("set fee by owner failed: %v", err)
	}
	fee, err := engine.PlatformFeeBps()
	if err != nil || fee != 100 {
		t.Fatalf("fee not applied: fee=%d err=%v", fee, err)
	}

	if err := engine.VerifyCreator(stranger, creator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("verify by non-owner: expected unauthorized, got %v", err)
	}
	if err := engine.VerifyCreator(owner, creator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("verify missing profile: expected not found, got %v", err)
	}
	if err := engine.CreateCreatorProfile(creator, "Ada", "", ""); err != nil {
		t.Fatalf("profile creation failed: %v", err)
	}
	if err := engine.VerifyCreator(owner, creator); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	profile, _, _ := engine.GetProfile(creator)
	if !profile.Verified {
		t.Fatalf("profile not verified")
	}

	workID := mustCreateWork(t, engine, creator, 1_000, 0, 10)
	if err := engine.DeactivateWork(creator, workID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deactivate missing work: expected not found, got %v", err)
	}
	if err := engine.DeactivateWork(stranger, workID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deactivate by third party: expected unauthorized, got %v", err)
	}
	if err := engine.DeactivateWork(creator, workID); err != nil {
		t.Fatalf("deactivate by creator failed: %v", err)
	}
	secondID := mustCreateWork(t, engine, creator, 1_000, 0, 10)
	if err := engine.DeactivateWork(owner, secondID); err != nil {
		t.Fatalf("deactivate by owner failed: %v", err)
	}
	work, _, _ := engine.GetWork(secondID)
	if work.Active {
		t.Fatalf("work still active after deactivation")
	}
}

func TestDefaultPlatformFee(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	fee, err := engine.PlatformFeeBps()
	if err != nil {
		t.Fatalf("platform fee lookup failed: %v", err)
	}
	if fee != DefaultPlatformFeeBps {
		t.Fatalf("expected default fee %d, got %d", DefaultPlatformFeeBps, fee)
	}
}

func TestAvailableSupplyUntouchedByPurchases(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	creator := addr(0x01)
	buyer := addr(0x02)
	workID := setupListedWork(t, state, engine, creator, buyer)

	if err := engine.PurchaseWork(buyer, workID, creator, 10); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	work, _, _ := engine.GetWork(workID)
	if work.AvailableSupply != work.TotalSupply {
		t.Fatalf("available supply tracks issuance only, got %d of %d", work.AvailableSupply, work.TotalSupply)
	}
}

type pauseAll struct{}

func (pauseAll) IsPaused(module string) bool { return true }

func TestPauseGuardBlocksMutations(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, addr(0xFF))
	engine.SetPauses(pauseAll{})

	if err := engine.CreateCreatorProfile(addr(0x01), "Ada", "", ""); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
	if _, err := engine.CreateWork(addr(0x01), "t", "d", "c", big.NewInt(1), 0, 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
	if err := engine.PurchaseWork(addr(0x02), 1, addr(0x01), 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
}

func TestMarketplaceEndToEnd(t *testing.T) {
	state := newMockState()
	owner := addr(0xFF)
	engine := newTestEngine(state, owner)
	log := events.NewLog()
	engine.SetEmitter(log)

	creator := addr(0x01)
	buyer := addr(0x02)
	state.setBalance(buyer, 100_000_000)

	if err := engine.CreateCreatorProfile(creator, "Ada", "painter", "https://ada.example"); err != nil {
		t.Fatalf("profile creation failed: %v", err)
	}
	workID, err := engine.CreateWork(creator, "Dusk", "oil on canvas", "painting", big.NewInt(1_000_000), 1_000, 100)
	if err != nil {
		t.Fatalf("work creation failed: %v", err)
	}
	if err := engine.ListWorkForSale(creator, workID, 10, big.NewInt(1_100_000)); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if err := engine.PurchaseWork(buyer, workID, creator, 4); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	sellerOwn, _, _ := engine.GetOwnership(workID, creator)
	if sellerOwn.Quantity != 96 {
		t.Fatalf("expected seller ownership 96, got %d", sellerOwn.Quantity)
	}
	buyerOwn, _, _ := engine.GetOwnership(workID, buyer)
	if buyerOwn.Quantity != 4 {
		t.Fatalf("expected buyer ownership 4, got %d", buyerOwn.Quantity)
	}
	listing, _, _ := engine.GetListing(workID, creator)
	if listing.Quantity != 6 || !listing.Active {
		t.Fatalf("expected active listing with 6 units, got %+v", listing)
	}
	profile, _, _ := engine.GetProfile(creator)
	// floor(4 * 1,100,000 * 1000 / 10,000) = 440,000
	if profile.TotalEarnings.Cmp(big.NewInt(440_000)) != 0 {
		t.Fatalf("expected creator earnings 440000, got %s", profile.TotalEarnings)
	}
	if profile.TotalWorks != 1 {
		t.Fatalf("expected total works 1, got %d", profile.TotalWorks)
	}

	var seen []string
	for _, evt := range log.Events() {
		seen = append(seen, evt.EventType())
	}
	want := []string{EventTypeWorkCreated, EventTypeWorkPurchased, EventTypeRoyaltyPaid}
	if len(seen) != len(want) {
		t.Fatalf("unexpected event sequence: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("event %d: want %s, got %s", i, want[i], seen[i])
		}
	}
}
