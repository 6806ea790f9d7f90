package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	coretypes "atelier/core/types"
	"atelier/crypto"
	"atelier/native/marketplace"
	"atelier/observability"
)

func decodeAddressParam(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("invalid address: %w", err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.ArtPrefix, addr[:]).String()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

type workResult struct {
	ID              uint64 `json:"id"`
	Creator         string `json:"creator"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Price           string `json:"price"`
	RoyaltyBps      uint32 `json:"royaltyBps"`
	TotalSupply     uint64 `json:"totalSupply"`
	AvailableSupply uint64 `json:"availableSupply"`
	CreatedAt       uint64 `json:"createdAt"`
	Active          bool   `json:"active"`
}

func formatWork(work *marketplace.Work) *workResult {
	return &workResult{
		ID:              work.ID,
		Creator:         formatAddress(work.Creator),
		Title:           work.Title,
		Description:     work.Description,
		Category:        work.Category,
		Price:           formatAmount(work.Price),
		RoyaltyBps:      work.RoyaltyBps,
		TotalSupply:     work.TotalSupply,
		AvailableSupply: work.AvailableSupply,
		CreatedAt:       work.CreatedAt,
		Active:          work.Active,
	}
}

type ownershipResult struct {
	WorkID   uint64 `json:"workId"`
	Owner    string `json:"owner"`
	Quantity uint64 `json:"quantity"`
}

type listingResult struct {
	WorkID       uint64 `json:"workId"`
	Seller       string `json:"seller"`
	Quantity     uint64 `json:"quantity"`
	PricePerUnit string `json:"pricePerUnit"`
	ListedAt     uint64 `json:"listedAt"`
	Active       bool   `json:"active"`
}

type profileResult struct {
	Creator       string `json:"creator"`
	Name          string `json:"name"`
	Bio           string `json:"bio"`
	PortfolioURL  string `json:"portfolioUrl"`
	TotalWorks    uint64 `json:"totalWorks"`
	TotalEarnings string `json:"totalEarnings"`
	Verified      bool   `json:"verified"`
}

func formatProfile(profile *marketplace.CreatorProfile) *profileResult {
	return &profileResult{
		Creator:       formatAddress(profile.Creator),
		Name:          profile.Name,
		Bio:           profile.Bio,
		PortfolioURL:  profile.PortfolioURL,
		TotalWorks:    profile.TotalWorks,
		TotalEarnings: formatAmount(profile.TotalEarnings),
		Verified:      profile.Verified,
	}
}

type royaltySplitResult struct {
	WorkID    uint64 `json:"workId"`
	Recipient string `json:"recipient"`
	Bps       uint32 `json:"bps"`
}

type createProfileParams struct {
	Caller       string `json:"caller"`
	Name         string `json:"name"`
	Bio          string `json:"bio"`
	PortfolioURL string `json:"portfolioUrl"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params createProfileParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.CreateCreatorProfile(caller, params.Name, params.Bio, params.PortfolioURL); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "created"})
	return "ok"
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params createProfileParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.UpdateCreatorProfile(caller, params.Name, params.Bio, params.PortfolioURL); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "updated"})
	return "ok"
}

type createWorkParams struct {
	Caller      string `json:"caller"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	RoyaltyBps  uint32 `json:"royaltyBps"`
	TotalSupply uint64 `json:"totalSupply"`
}

func (s *Server) handleCreateWork(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params createWorkParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	workID, err := s.engine.CreateWork(caller, params.Title, params.Description, params.Category, price, params.RoyaltyBps, params.TotalSupply)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]uint64{"workId": workID})
	return "ok"
}

type royaltySplitParams struct {
	Caller    string `json:"caller"`
	WorkID    uint64 `json:"workId"`
	Recipient string `json:"recipient"`
	Bps       uint32 `json:"bps"`
}

func (s *Server) handleAddRoyaltySplit(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params royaltySplitParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	recipient, err := decodeAddressParam(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.AddRoyaltySplit(caller, params.WorkID, recipient, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "added"})
	return "ok"
}

type listParams struct {
	Caller       string `json:"caller"`
	WorkID       uint64 `json:"workId"`
	Quantity     uint64 `json:"quantity"`
	PricePerUnit string `json:"pricePerUnit"`
}

func (s *Server) handleListForSale(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params listParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	price, err := parseAmount(params.PricePerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.ListWorkForSale(caller, params.WorkID, params.Quantity, price); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "listed"})
	return "ok"
}

type cancelListingParams struct {
	Caller string `json:"caller"`
	WorkID uint64 `json:"workId"`
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params cancelListingParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.CancelListing(caller, params.WorkID); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "cancelled"})
	return "ok"
}

type purchaseParams struct {
	Buyer    string `json:"buyer"`
	WorkID   uint64 `json:"workId"`
	Seller   string `json:"seller"`
	Quantity uint64 `json:"quantity"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params purchaseParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	buyer, err := decodeAddressParam(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	seller, err := decodeAddressParam(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	listing, listed, _ := s.engine.GetListing(params.WorkID, seller)
	if err := s.engine.PurchaseWork(buyer, params.WorkID, seller, params.Quantity); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if listed && listing.PricePerUnit != nil {
		gross := new(big.Int).Mul(listing.PricePerUnit, new(big.Int).SetUint64(params.Quantity))
		observability.MarketplaceMetrics().ObservePurchase(gross)
	}
	writeResult(w, req.ID, map[string]string{"status": "settled"})
	return "ok"
}

type setPlatformFeeParams struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"feeBps"`
}

func (s *Server) handleSetPlatformFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params setPlatformFeeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.SetPlatformFee(caller, params.FeeBps); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "updated"})
	return "ok"
}

type verifyCreatorParams struct {
	Caller  string `json:"caller"`
	Creator string `json:"creator"`
}

func (s *Server) handleVerifyCreator(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params verifyCreatorParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	creator, err := decodeAddressParam(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.VerifyCreator(caller, creator); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "verified"})
	return "ok"
}

type deactivateWorkParams struct {
	Caller string `json:"caller"`
	WorkID uint64 `json:"workId"`
}

func (s *Server) handleDeactivateWork(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return "unauthorized"
	}
	var params deactivateWorkParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := decodeAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.DeactivateWork(caller, params.WorkID); err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]string{"status": "deactivated"})
	return "ok"
}

type workIDParams struct {
	WorkID uint64 `json:"workId"`
}

func (s *Server) handleGetWork(w http.ResponseWriter, req *RPCRequest) string {
	var params workIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	work, ok, err := s.engine.GetWork(params.WorkID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if !ok {
		writeEngineError(w, req.ID, marketplace.ErrNotFound)
		return "not_found"
	}
	writeResult(w, req.ID, formatWork(work))
	return "ok"
}

type ownershipParams struct {
	WorkID uint64 `json:"workId"`
	Owner  string `json:"owner"`
}

func (s *Server) handleGetOwnership(w http.ResponseWriter, req *RPCRequest) string {
	var params ownershipParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	owner, err := decodeAddressParam(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	record, ok, err := s.engine.GetOwnership(params.WorkID, owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if !ok {
		writeEngineError(w, req.ID, marketplace.ErrNotFound)
		return "not_found"
	}
	writeResult(w, req.ID, &ownershipResult{
		WorkID:   record.WorkID,
		Owner:    formatAddress(record.Owner),
		Quantity: record.Quantity,
	})
	return "ok"
}

type profileParams struct {
	Creator string `json:"creator"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, req *RPCRequest) string {
	var params profileParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	creator, err := decodeAddressParam(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	profile, ok, err := s.engine.GetProfile(creator)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if !ok {
		writeEngineError(w, req.ID, marketplace.ErrNotFound)
		return "not_found"
	}
	writeResult(w, req.ID, formatProfile(profile))
	return "ok"
}

type listingParams struct {
	WorkID uint64 `json:"workId"`
	Seller string `json:"seller"`
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) string {
	var params listingParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	seller, err := decodeAddressParam(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	listing, ok, err := s.engine.GetListing(params.WorkID, seller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if !ok {
		writeEngineError(w, req.ID, marketplace.ErrNotFound)
		return "not_found"
	}
	writeResult(w, req.ID, &listingResult{
		WorkID:       listing.WorkID,
		Seller:       formatAddress(listing.Seller),
		Quantity:     listing.Quantity,
		PricePerUnit: formatAmount(listing.PricePerUnit),
		ListedAt:     listing.ListedAt,
		Active:       listing.Active,
	})
	return "ok"
}

type royaltyQueryParams struct {
	WorkID    uint64 `json:"workId"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleGetRoyaltySplit(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltyQueryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	recipient, err := decodeAddressParam(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	split, ok, err := s.engine.GetRoyaltySplit(params.WorkID, recipient)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	if !ok {
		writeEngineError(w, req.ID, marketplace.ErrNotFound)
		return "not_found"
	}
	writeResult(w, req.ID, &royaltySplitResult{
		WorkID:    split.WorkID,
		Recipient: formatAddress(split.Recipient),
		Bps:       split.Bps,
	})
	return "ok"
}

func (s *Server) handleNextWorkID(w http.ResponseWriter, req *RPCRequest) string {
	next, err := s.engine.NextWorkID()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]uint64{"nextWorkId": next})
	return "ok"
}

func (s *Server) handlePlatformFee(w http.ResponseWriter, req *RPCRequest) string {
	bps, err := s.engine.PlatformFeeBps()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]uint32{"feeBps": bps})
	return "ok"
}

type eventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleEvents(w http.ResponseWriter, req *RPCRequest) string {
	if s.log == nil {
		writeResult(w, req.ID, []eventResult{})
		return "ok"
	}
	recorded := s.log.Events()
	out := make([]eventResult, 0, len(recorded))
	for _, evt := range recorded {
		entry := eventResult{Type: evt.EventType()}
		if payload, ok := evt.(interface{ Event() *coretypes.Event }); ok {
			if raw := payload.Event(); raw != nil {
				entry.Attributes = raw.Attributes
			}
		}
		out = append(out, entry)
	}
	writeResult(w, req.ID, out)
	return "ok"
}
