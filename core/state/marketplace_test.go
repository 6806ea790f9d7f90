package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"atelier/core/types"
	"atelier/native/marketplace"
	"atelier/storage"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestWorkRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	_, ok, err := manager.MarketplaceWorkGet(1)
	require.NoError(t, err)
	require.False(t, ok)

	work := &marketplace.Work{
		ID:              1,
		Creator:         testAddr(0x01),
		Title:           "Dusk",
		Description:     "oil on canvas",
		Category:        "painting",
		Price:           big.NewInt(1_000_000),
		RoyaltyBps:      1_000,
		TotalSupply:     100,
		AvailableSupply: 100,
		CreatedAt:       7,
		Active:          true,
	}
	require.NoError(t, manager.MarketplaceWorkPut(work))

	loaded, ok, err := manager.MarketplaceWorkGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, work, loaded)

	// Mutating the loaded copy must not leak back into storage.
	loaded.Price.SetInt64(1)
	again, _, err := manager.MarketplaceWorkGet(1)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), again.Price.Int64())
}

func TestOwnershipAndListingKeysAreDisjoint(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	holder := testAddr(0x02)

	require.NoError(t, manager.MarketplaceOwnershipPut(&marketplace.Ownership{WorkID: 3, Owner: holder, Quantity: 9}))
	require.NoError(t, manager.MarketplaceListingPut(&marketplace.Listing{
		WorkID:       3,
		Seller:       holder,
		Quantity:     4,
		PricePerUnit: big.NewInt(50),
		ListedAt:     2,
		Active:       true,
	}))
	require.NoError(t, manager.MarketplaceRoyaltySplitPut(&marketplace.RoyaltySplit{WorkID: 3, Recipient: holder, Bps: 2_500}))

	ownership, ok, err := manager.MarketplaceOwnershipGet(3, holder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), ownership.Quantity)

	listing, ok, err := manager.MarketplaceListingGet(3, holder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4), listing.Quantity)
	require.True(t, listing.Active)

	split, ok, err := manager.MarketplaceRoyaltySplitGet(3, holder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(2_500), split.Bps)

	// A different work id misses all three records.
	_, ok, err = manager.MarketplaceOwnershipGet(4, holder)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProfileRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	creator := testAddr(0x05)

	_, ok, err := manager.MarketplaceProfileGet(creator)
	require.NoError(t, err)
	require.False(t, ok)

	profile := &marketplace.CreatorProfile{
		Creator:       creator,
		Name:          "Ada",
		Bio:           "painter",
		PortfolioURL:  "https://ada.example",
		TotalWorks:    2,
		TotalEarnings: big.NewInt(440_000),
		Verified:      true,
	}
	require.NoError(t, manager.MarketplaceProfilePut(profile))

	loaded, ok, err := manager.MarketplaceProfileGet(creator)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, profile, loaded)
}

func TestNextWorkIDStartsAtOne(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	id, err := manager.MarketplaceNextWorkID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, manager.MarketplaceSetNextWorkID(2))
	id, err = manager.MarketplaceNextWorkID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
}

func TestPlatformFeeOverride(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	_, ok, err := manager.MarketplacePlatformFeeBps()
	require.NoError(t, err)
	require.False(t, ok, "no override until one is stored")

	require.NoError(t, manager.MarketplaceSetPlatformFeeBps(400))
	bps, ok, err := manager.MarketplacePlatformFeeBps()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(400), bps)

	require.NoError(t, manager.MarketplaceSetPlatformFeeBps(0))
	bps, ok, err = manager.MarketplacePlatformFeeBps()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), bps)
}

func TestClockPersistsAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	for want := uint64(1); want <= 3; want++ {
		tick, err := manager.MarketplaceClockTick()
		require.NoError(t, err)
		require.Equal(t, want, tick)
	}

	reopened := NewManager(db)
	tick, err := reopened.MarketplaceClockTick()
	require.NoError(t, err)
	require.Equal(t, uint64(4), tick, "clock must stay strictly increasing across restarts")
}

func TestAccountRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	holder := testAddr(0x03)

	acc, err := manager.GetAccount(holder[:])
	require.NoError(t, err)
	require.Nil(t, acc)

	require.NoError(t, manager.PutAccount(holder[:], &types.Account{Nonce: 3, Balance: big.NewInt(1_234)}))
	acc, err = manager.GetAccount(holder[:])
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Nonce)
	require.Equal(t, int64(1_234), acc.Balance.Int64())

	require.Error(t, manager.PutAccount(holder[:], &types.Account{Balance: big.NewInt(-1)}))
}

func TestManagerSatisfiesEngineState(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	engine := marketplace.NewEngine()
	engine.SetState(manager)
	engine.SetOwner(testAddr(0xFF))

	creator := testAddr(0x01)
	buyer := testAddr(0x02)
	require.NoError(t, manager.PutAccount(buyer[:], &types.Account{Balance: big.NewInt(10_000_000)}))

	id, err := engine.CreateWork(creator, "Dusk", "oil on canvas", "painting", big.NewInt(1_000), 1_000, 10)
	require.NoError(t, err)
	require.NoError(t, engine.ListWorkForSale(creator, id, 5, big.NewInt(1_000)))
	require.NoError(t, engine.PurchaseWork(buyer, id, creator, 2))

	ownership, ok, err := manager.MarketplaceOwnershipGet(id, buyer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), ownership.Quantity)

	buyerAcc, err := manager.GetAccount(buyer[:])
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000-2_000), buyerAcc.Balance.Int64())
}
