package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"estatechain/crypto"
	"estatechain/native/registry"
)

func bech(fill byte) string {
	payload := bytes.Repeat([]byte{fill}, 20)
	return crypto.NewAddress(crypto.ESTPrefix, payload).String()
}

var (
	testValidator = bech(0xA1)
	testSeller    = bech(0xB2)
	testBuyer     = bech(0xC3)
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	validator, err := crypto.DecodeAddress(testValidator)
	require.NoError(t, err)
	reg := registry.NewRegistry(validator.Raw())
	server := NewServer(reg, nil)
	server.SetAuthToken("")
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) RPCResponse {
	t.Helper()
	var rawParams []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		require.NoError(t, err)
		rawParams = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected RPC error: %+v", resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, out))
}

func TestRegisterAndGetProperty(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, "", "registry_register", registerParams{
		Caller:      testSeller,
		Location:    "Downtown Toronto",
		MetadataURI: "ipfs://QmXyZ123abc/property1.json",
		Price:       "750000000000000000",
	})
	var registered registerResult
	decodeResult(t, resp, &registered)
	require.Equal(t, uint64(1), registered.ID)

	resp = call(t, ts, "", "registry_getProperty", propertyIDParams{ID: 1})
	var prop propertyJSON
	decodeResult(t, resp, &prop)
	require.Equal(t, testSeller, prop.Owner)
	require.Equal(t, "750000000000000000", prop.Price)
	require.False(t, prop.IsForSale)
}

func TestRegisterBelowMinimum(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts, "", "registry_register", registerParams{
		Caller:   testSeller,
		Location: "Invalid Property",
		Price:    "400000000000000000",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRegistryPriceTooLow, resp.Error.Code)

	count := call(t, ts, "", "registry_propertyCount", nil)
	var counted countResult
	decodeResult(t, count, &counted)
	require.Zero(t, counted.Count)
}

func TestFullPurchaseFlow(t *testing.T) {
	_, ts := newTestServer(t)

	decodeResult(t, call(t, ts, "", "registry_register", registerParams{
		Caller: testSeller, Location: "Downtown Toronto", Price: "750000000000000000",
	}), &registerResult{})
	require.Nil(t, call(t, ts, "", "registry_updateListing", updateListingParams{
		Caller: testSeller, ID: 1, Price: "1250000000000000000", ForSale: true,
	}).Error)
	require.Nil(t, call(t, ts, "", "registry_approvePurchase", approvalParams{
		Caller: testBuyer, ID: 1, Approval: true,
	}).Error)
	require.Nil(t, call(t, ts, "", "registry_approvePurchase", approvalParams{
		Caller: testSeller, ID: 1, Approval: true,
	}).Error)
	require.Nil(t, call(t, ts, "", "registry_aiApprove", approvalParams{
		Caller: testValidator, ID: 1, Approval: true,
	}).Error)

	resp := call(t, ts, "", "registry_completePurchase", completePurchaseParams{
		Caller: testBuyer, ID: 1, Funds: "1250000000000000000",
	})
	var receipt receiptJSON
	decodeResult(t, resp, &receipt)
	require.Equal(t, testSeller, receipt.From)
	require.Equal(t, testBuyer, receipt.To)
	require.Equal(t, "1250000000000000000", receipt.Price)

	var prop propertyJSON
	decodeResult(t, call(t, ts, "", "registry_getProperty", propertyIDParams{ID: 1}), &prop)
	require.Equal(t, testBuyer, prop.Owner)
	require.False(t, prop.IsForSale)
	require.False(t, prop.AIApproved)
	require.False(t, prop.BuyerApproved)
	require.False(t, prop.SellerApproved)
}

func TestFundsMismatchCode(t *testing.T) {
	_, ts := newTestServer(t)
	decodeResult(t, call(t, ts, "", "registry_register", registerParams{
		Caller: testSeller, Location: "Lot", Price: "1250000000000000000",
	}), &registerResult{})
	require.Nil(t, call(t, ts, "", "registry_updateListing", updateListingParams{
		Caller: testSeller, ID: 1, Price: "1250000000000000000", ForSale: true,
	}).Error)
	require.Nil(t, call(t, ts, "", "registry_approvePurchase", approvalParams{Caller: testBuyer, ID: 1, Approval: true}).Error)
	require.Nil(t, call(t, ts, "", "registry_approvePurchase", approvalParams{Caller: testSeller, ID: 1, Approval: true}).Error)
	require.Nil(t, call(t, ts, "", "registry_aiApprove", approvalParams{Caller: testValidator, ID: 1, Approval: true}).Error)

	resp := call(t, ts, "", "registry_completePurchase", completePurchaseParams{
		Caller: testBuyer, ID: 1, Funds: "1000000000000000000",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRegistryFundsMismatch, resp.Error.Code)
}

func TestAIApproveForbiddenCode(t *testing.T) {
	_, ts := newTestServer(t)
	decodeResult(t, call(t, ts, "", "registry_register", registerParams{
		Caller: testSeller, Location: "Lot", Price: "750000000000000000",
	}), &registerResult{})
	resp := call(t, ts, "", "registry_aiApprove", approvalParams{Caller: testBuyer, ID: 1, Approval: true})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRegistryForbidden, resp.Error.Code)
}

func TestNotFoundCode(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts, "", "registry_getProperty", propertyIDParams{ID: 404})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRegistryNotFound, resp.Error.Code)
}

func TestInvalidCallerAddress(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts, "", "registry_register", registerParams{
		Caller: "nonsense", Location: "Lot", Price: "750000000000000000",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRegistryInvalidParams, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts, "", "registry_unknown", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMinPrice(t *testing.T) {
	_, ts := newTestServer(t)
	var result minPriceResult
	decodeResult(t, call(t, ts, "", "registry_minPrice", nil), &result)
	require.Equal(t, registry.MinListingPrice().String(), result.MinPrice)
	require.Equal(t, 18, result.Decimals)
}

func TestMutationsRequireToken(t *testing.T) {
	server, ts := newTestServer(t)
	server.SetAuthToken("secret")

	resp := call(t, ts, "", "registry_register", registerParams{
		Caller: testSeller, Location: "Lot", Price: "750000000000000000",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = call(t, ts, "secret", "registry_register", registerParams{
		Caller: testSeller, Location: "Lot", Price: "750000000000000000",
	})
	require.Nil(t, resp.Error)

	// Reads stay open.
	resp = call(t, ts, "", "registry_propertyCount", nil)
	require.Nil(t, resp.Error)
}
