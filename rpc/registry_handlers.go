package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"estatechain/crypto"
	"estatechain/native/registry"
)

const (
	codeRegistryInvalidParams      = -32030
	codeRegistryNotFound           = -32031
	codeRegistryForbidden          = -32032
	codeRegistryPriceTooLow        = -32033
	codeRegistryNotForSale         = -32034
	codeRegistryApprovalIncomplete = -32035
	codeRegistryFundsMismatch      = -32036
	codeRegistryInvalidBuyer       = -32037
)

type registerParams struct {
	Caller      string `json:"caller"`
	Location    string `json:"location"`
	MetadataURI string `json:"metadataURI"`
	Price       string `json:"price"`
}

type updateListingParams struct {
	Caller  string `json:"caller"`
	ID      uint64 `json:"id"`
	Price   string `json:"price"`
	ForSale bool   `json:"forSale"`
}

type approvalParams struct {
	Caller   string `json:"caller"`
	ID       uint64 `json:"id"`
	Approval bool   `json:"approval"`
}

type completePurchaseParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
	Funds  string `json:"funds"`
}

type propertyIDParams struct {
	ID uint64 `json:"id"`
}

type registerResult struct {
	ID uint64 `json:"id"`
}

type countResult struct {
	Count uint64 `json:"count"`
}

type minPriceResult struct {
	MinPrice string `json:"minPrice"`
	Decimals int    `json:"decimals"`
}

// propertyJSON is the wire form of a property record. Amounts are decimal wei
// strings; addresses are bech32.
type propertyJSON struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Location       string `json:"location"`
	MetadataURI    string `json:"metadataURI"`
	Price          string `json:"price"`
	IsForSale      bool   `json:"isForSale"`
	AIApproved     bool   `json:"aiApproved"`
	BuyerApproved  bool   `json:"buyerApproved"`
	SellerApproved bool   `json:"sellerApproved"`
}

type receiptJSON struct {
	PropertyID uint64 `json:"propertyId"`
	From       string `json:"from"`
	To         string `json:"to"`
	Price      string `json:"price"`
}

func formatProperty(p *registry.Property) propertyJSON {
	return propertyJSON{
		ID:             p.ID,
		Owner:          crypto.NewAddress(crypto.ESTPrefix, p.Owner[:]).String(),
		Location:       p.Location,
		MetadataURI:    p.MetadataURI,
		Price:          p.Price.String(),
		IsForSale:      p.IsForSale,
		AIApproved:     p.AIApproved,
		BuyerApproved:  p.BuyerApproved,
		SellerApproved: p.SellerApproved,
	}
}

func formatReceipt(r *registry.TransferReceipt) receiptJSON {
	return receiptJSON{
		PropertyID: r.PropertyID,
		From:       crypto.NewAddress(crypto.ESTPrefix, r.From[:]).String(),
		To:         crypto.NewAddress(crypto.ESTPrefix, r.To[:]).String(),
		Price:      r.Price.String(),
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseCaller(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return amount, nil
}

func (s *Server) invalidParams(w http.ResponseWriter, req *RPCRequest, method string, err error) string {
	s.metrics.ObserveError(method, strconv.Itoa(codeRegistryInvalidParams))
	writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
	return "error"
}

func (s *Server) unauthorized(w http.ResponseWriter, req *RPCRequest, method string, rpcErr *RPCError) string {
	s.metrics.ObserveError(method, strconv.Itoa(rpcErr.Code))
	writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	return "error"
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	const method = "registry_register"
	if authErr := s.requireAuth(r); authErr != nil {
		return s.unauthorized(w, req, method, authErr)
	}
	var params registerParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	caller, err := parseCaller(params.Caller)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	id, err := s.registry.Register(caller, params.Location, params.MetadataURI, price)
	if err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, registerResult{ID: id})
	return "ok"
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	const method = "registry_updateListing"
	if authErr := s.requireAuth(r); authErr != nil {
		return s.unauthorized(w, req, method, authErr)
	}
	var params updateListingParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	caller, err := parseCaller(params.Caller)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	if err := s.registry.UpdateListing(caller, params.ID, price, params.ForSale); err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleApprovePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	const method = "registry_approvePurchase"
	if authErr := s.requireAuth(r); authErr != nil {
		return s.unauthorized(w, req, method, authErr)
	}
	var params approvalParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	caller, err := parseCaller(params.Caller)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	if err := s.registry.ApprovePurchase(caller, params.ID, params.Approval); err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleAIApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	const method = "registry_aiApprove"
	if authErr := s.requireAuth(r); authErr != nil {
		return s.unauthorized(w, req, method, authErr)
	}
	var params approvalParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	caller, err := parseCaller(params.Caller)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	if err := s.registry.AIApprove(caller, params.ID, params.Approval); err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleCompletePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	const method = "registry_completePurchase"
	if authErr := s.requireAuth(r); authErr != nil {
		return s.unauthorized(w, req, method, authErr)
	}
	var params completePurchaseParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	caller, err := parseCaller(params.Caller)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	funds, err := parseAmount(params.Funds)
	if err != nil {
		return s.invalidParams(w, req, method, err)
	}
	receipt, err := s.registry.CompletePurchase(caller, params.ID, funds)
	if err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, formatReceipt(receipt))
	return "ok"
}

func (s *Server) handleGetProperty(w http.ResponseWriter, req *RPCRequest) string {
	const method = "registry_getProperty"
	var params propertyIDParams
	if err := decodeParams(req, &params); err != nil {
		return s.invalidParams(w, req, method, err)
	}
	prop, err := s.registry.GetProperty(params.ID)
	if err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, formatProperty(prop))
	return "ok"
}

func (s *Server) handlePropertyCount(w http.ResponseWriter, req *RPCRequest) string {
	const method = "registry_propertyCount"
	count, err := s.registry.Count()
	if err != nil {
		return s.rpcError(w, req, method, err)
	}
	writeResult(w, req.ID, countResult{Count: count})
	return "ok"
}

func (s *Server) handleMinPrice(w http.ResponseWriter, req *RPCRequest) string {
	writeResult(w, req.ID, minPriceResult{MinPrice: registry.MinListingPrice().String(), Decimals: 18})
	return "ok"
}
