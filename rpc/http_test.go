package rpc

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"cdfichain/core"
	"cdfichain/core/genesis"
	"cdfichain/core/types"
	"cdfichain/native/oracle"
	"cdfichain/storage"
)

const (
	testChainID   = 31337
	testJWTSecret = "rpc-test-secret"
)

var (
	feedAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	usdtAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	usdcAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	cdfiAddr = common.HexToAddress("0x00000000000000000000000000000000000000a3")
)

type fixture struct {
	node   *core.Node
	server *Server
	owner  *ecdsa.PrivateKey
	buyer  *ecdsa.PrivateKey
}

type stubEvents struct {
	gotType  string
	gotLimit int
}

func (s *stubEvents) Events(eventType string, limit int) ([]types.Event, error) {
	s.gotType, s.gotLimit = eventType, limit
	return []types.Event{{Type: eventType, Attributes: map[string]string{"height": "1"}}}, nil
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	owner, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	buyer, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	body := fmt.Sprintf(`{
  "chainId": %d,
  "owner": %q,
  "subscription": {"name": "CDFiSubscription", "symbol": "CDS", "priceUsd": "400", "discountPercent": 40,
    "maxSupply": "100", "usdt": %q, "usdc": %q, "cdfi": %q},
  "oracles": [{"chainId": %d, "feed": %q, "pool": %q}],
  "native": {%q: "10000000000000000000"}
}`, testChainID, ethcrypto.PubkeyToAddress(owner.PublicKey).Hex(), usdtAddr.Hex(), usdcAddr.Hex(), cdfiAddr.Hex(),
		testChainID, feedAddr.Hex(), poolAddr.Hex(), ethcrypto.PubkeyToAddress(buyer.PublicKey).Hex())
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	spec, err := genesis.LoadGenesisSpec(path)
	require.NoError(t, err)

	dir := oracle.NewStaticDirectory()
	dir.AddFeed(feedAddr, oracle.NewStaticFeed(big.NewInt(300000000000), 8, uint64(time.Now().Unix())))
	dir.AddPool(poolAddr, oracle.NewStaticPool(usdtAddr, cdfiAddr, new(big.Int).Lsh(big.NewInt(2), 96)))

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.Config{ChainID: testChainID, Directory: dir}, spec)
	require.NoError(t, err)
	srv := NewServer(node, cfg)
	node.AddReceiptSink(srv.Hub())
	return &fixture{node: node, server: srv, owner: owner, buyer: buyer}
}

func (f *fixture) signedTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, method string, value *big.Int, params interface{}) *types.Transaction {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	tx := &types.Transaction{ChainID: big.NewInt(testChainID), Nonce: nonce, Method: method, Value: value, Params: raw}
	require.NoError(t, tx.Sign(key))
	return tx
}

func call(t *testing.T, handler http.Handler, header http.Header, method string, params ...interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.RemoteAddr = "10.0.0.5:1234"
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func bearer(t *testing.T, secret string, exp time.Time) http.Header {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "exp": exp.Unix()})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + signed}}
}

func TestQueriesReadSubscriptionState(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	h := f.server.Handler()

	_, resp := call(t, h, nil, "cdfi_getNativePrice")
	require.Nil(t, resp.Error)
	require.Equal(t, "300000000000", resp.Result)

	_, resp = call(t, h, nil, "cdfi_requiredNative")
	require.Nil(t, resp.Error)
	require.Equal(t, "133333333333333333", resp.Result)

	_, resp = call(t, h, nil, "cdfi_getPriceInCDFi")
	require.Nil(t, resp.Error)
	require.Equal(t, "960000000000000000000", resp.Result)

	_, resp = call(t, h, nil, "cdfi_getConfig")
	require.Nil(t, resp.Error)
	cfg := resp.Result.(map[string]interface{})
	require.Equal(t, "CDFiSubscription", cfg["name"])
	require.Equal(t, "400000000000000000000", cfg["priceUsd"])
	require.Equal(t, float64(40), cfg["discountPercent"])

	_, resp = call(t, h, nil, "cdfi_priceFeed", testChainID)
	require.Nil(t, resp.Error)
	require.Equal(t, feedAddr.Hex(), resp.Result)
	_, resp = call(t, h, nil, "cdfi_pool")
	require.Nil(t, resp.Error)
	require.Equal(t, poolAddr.Hex(), resp.Result)
	_, resp = call(t, h, nil, "cdfi_pool", "999")
	require.Nil(t, resp.Error)
	require.Equal(t, common.Address{}.Hex(), resp.Result)

	_, resp = call(t, h, nil, "cdfi_balance", "native", ethcrypto.PubkeyToAddress(f.buyer.PublicKey).Hex())
	require.Nil(t, resp.Error)
	require.Equal(t, "10000000000000000000", resp.Result)

	rec, resp := call(t, h, nil, "cdfi_ownerOf", 0)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "ERC721NonexistentToken(0)", resp.Error.Message)

	rec, resp = call(t, h, nil, "vesting_get", "advisors")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = call(t, h, nil, "vesting_get", "team")
	require.Nil(t, resp.Error)
	require.Equal(t, "not_started", resp.Result.(map[string]interface{})["phase"])
}

func TestSendTransactionExecutesAndStoresReceipt(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	h := f.server.Handler()

	tx := f.signedTx(t, f.buyer, 0, core.MethodBuyWithNative, big.NewInt(133333333333333333), core.PurchaseParams{URI: "ipfs://meta"})
	_, resp := call(t, h, nil, "cdfi_sendTransaction", tx)
	require.Nil(t, resp.Error)
	receipt := resp.Result.(map[string]interface{})
	require.Equal(t, float64(types.ReceiptStatusSuccess), receipt["status"])

	_, resp = call(t, h, nil, "cdfi_ownerOf", "0")
	require.Nil(t, resp.Error)
	require.Equal(t, ethcrypto.PubkeyToAddress(f.buyer.PublicKey).Hex(), resp.Result)
	_, resp = call(t, h, nil, "cdfi_tokenURI", 0)
	require.Equal(t, "ipfs://meta", resp.Result)

	_, resp = call(t, h, nil, "cdfi_getReceipt", receipt["txHash"])
	require.Nil(t, resp.Error)
	require.Equal(t, receipt["stateRoot"], resp.Result.(map[string]interface{})["stateRoot"])

	rec, resp := call(t, h, nil, "cdfi_getReceipt", common.Hash{1}.Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeNotFound, resp.Error.Code)

	// Replaying the same nonce is rejected before execution.
	rec, resp = call(t, h, nil, "cdfi_sendTransaction", tx)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, resp.Error.Message, "wrong nonce")

	_, resp = call(t, h, nil, "cdfi_nonce", ethcrypto.PubkeyToAddress(f.buyer.PublicKey).Hex())
	require.Equal(t, float64(1), resp.Result)
}

func TestSendTransactionRequiresBearerToken(t *testing.T) {
	f := newFixture(t, ServerConfig{JWTSecret: testJWTSecret})
	h := f.server.Handler()
	tx := f.signedTx(t, f.buyer, 0, core.MethodNativeTransfer, nil, core.TransferParams{To: usdtAddr.Hex(), Amount: "1"})

	rec, resp := call(t, h, nil, "cdfi_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	rec, _ = call(t, h, bearer(t, "wrong-secret", time.Now().Add(time.Hour)), "cdfi_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = call(t, h, bearer(t, testJWTSecret, time.Now().Add(-time.Hour)), "cdfi_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, resp = call(t, h, bearer(t, testJWTSecret, time.Now().Add(time.Hour)), "cdfi_sendTransaction", tx)
	require.Nil(t, resp.Error)

	// Reads stay open.
	_, resp = call(t, h, nil, "cdfi_chainId")
	require.Nil(t, resp.Error)
}

func TestRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	h := f.server.Handler()

	rec, resp := call(t, h, nil, "cdfi_doesNotExist")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	_, resp = call(t, h, nil, "cdfi_nonce", "not-an-address")
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), fmt.Sprint(codeParseError))
}

func TestRateLimitPerSource(t *testing.T) {
	f := newFixture(t, ServerConfig{RequestsPerMinute: 1, Burst: 2})
	h := f.server.Handler()

	for i := 0; i < 2; i++ {
		_, resp := call(t, h, nil, "cdfi_chainId")
		require.Nil(t, resp.Error)
	}
	rec, resp := call(t, h, nil, "cdfi_chainId")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestGetEvents(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	_, resp := call(t, f.server.Handler(), nil, "cdfi_getEvents", "SubscriptionPurchased", 5)
	require.Equal(t, "event indexer disabled", resp.Error.Message)

	events := &stubEvents{}
	f = newFixture(t, ServerConfig{Events: events})
	_, resp = call(t, f.server.Handler(), nil, "cdfi_getEvents", "SubscriptionPurchased", 5)
	require.Nil(t, resp.Error)
	require.Equal(t, "SubscriptionPurchased", events.gotType)
	require.Equal(t, 5, events.gotLimit)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	h := f.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	call(t, h, nil, "cdfi_chainId")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cdfi_rpc")
}

func TestReceiptStream(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return f.server.Hub().Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	tx := f.signedTx(t, f.buyer, 0, core.MethodNativeTransfer, nil, core.TransferParams{To: usdtAddr.Hex(), Amount: "5"})
	_, err = f.node.Execute(ctx, tx)
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var streamed ReceiptResult
	require.NoError(t, json.Unmarshal(data, &streamed))
	require.Equal(t, core.MethodNativeTransfer, streamed.Method)
	require.Equal(t, uint64(1), streamed.Height)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Start(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
