package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale-ledger/internal/account"
	"presale-ledger/internal/domain"
	"presale-ledger/internal/host"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
	"presale-ledger/internal/storage/memory"
)

const usdc = "uusdc"

var (
	adminAddr = mustAddr(1)
	tokenAddr = mustAddr(2)
	aliceAddr = mustAddr(3)

	genesis = time.Unix(1_700_000_000, 0)
	secret  = []byte("test-secret-0123456789")
)

func mustAddr(b byte) string {
	s, err := account.FromBytes(bytes.Repeat([]byte{b}, account.KeyLength))
	if err != nil {
		panic(err)
	}
	return s
}

type fixture struct {
	srv   *httptest.Server
	clock *host.ManualClock
	hub   *Hub
	auth  *Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	escrow, err := account.DeriveSaleAddress(tokenAddr, "api")
	require.NoError(t, err)

	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokens()
	require.NoError(t, tokens.Create(tokenAddr, escrow, decimal.NewFromInt(1_000_000_000_000_000)))
	require.NoError(t, bank.Mint(aliceAddr, domain.NewCoin(usdc, 1_000_000_000_000), domain.NewCoin("uluna", 1_000)))

	clock := host.NewManualClock(genesis)
	hub := NewHub(DefaultHubConfig(), zerolog.Nop())

	h, err := host.New(ctx, host.Options{
		Store:     memory.NewSaleStore(),
		Events:    memory.NewEventStore(),
		Bank:      bank,
		Tokens:    tokens,
		Address:   escrow,
		Clock:     clock,
		Publisher: hub,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = h.Instantiate(ctx, adminAddr, presale.InstantiateMsg{
		Admin:                  adminAddr,
		TokenAddress:           tokenAddr,
		AcceptedRates:          []domain.Rate{{Denom: usdc, Rate: decimal.NewFromInt(1_000_000)}},
		StartTime:              uint64(genesis.Unix() + 100),
		EndTime:                uint64(genesis.Unix() + 200),
		SoftCap:                decimal.NewFromInt(100_000_000_000),
		HardCap:                decimal.NewFromInt(500_000_000_000),
		MaxContributionPerUser: decimal.NewFromInt(200_000_000_000),
		TokenPrice:             decimal.NewFromInt(10_000),
	})
	require.NoError(t, err)

	auth := NewAuthenticator(secret)
	srv := httptest.NewServer(NewServer(h, hub, auth, zerolog.Nop()).Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &fixture{srv: srv, clock: clock, hub: hub, auth: auth}
}

func (f *fixture) token(t *testing.T, acct string) string {
	t.Helper()
	tok, err := f.auth.Issue(acct, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func buyBody(amount string) map[string]interface{} {
	return map[string]interface{}{
		"funds": []map[string]string{{"denom": usdc, "amount": amount}},
	}
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMutationsRequireToken(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/buy", "", buyBody("1000000"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrMissingToken.Error(), body["error"])

	resp, _ = f.do(t, http.MethodPost, "/v1/buy", "not-a-jwt", buyBody("1000000"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other := NewAuthenticator([]byte("another-secret-0123456"))
	forged, err := other.Issue(aliceAddr, time.Hour)
	require.NoError(t, err)
	resp, _ = f.do(t, http.MethodPost, "/v1/buy", forged, buyBody("1000000"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuyFlow(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, aliceAddr)

	resp, body := f.do(t, http.MethodPost, "/v1/buy", alice, buyBody("1000000000"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, presale.ErrSaleNotActive.Error(), body["error"])

	f.clock.Advance(150 * time.Second)

	resp, body = f.do(t, http.MethodPost, "/v1/buy", alice, buyBody("1000000000"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "buy", body["action"])
	assert.Equal(t, aliceAddr, body["sender"])
	assert.Equal(t, "ACTIVE", body["status"])

	resp, body = f.do(t, http.MethodGet, "/v1/accounts/"+aliceAddr+"/valuation", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000000000", body["amount"])

	resp, body = f.do(t, http.MethodGet, "/v1/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000000000", body["total_raised"])
}

func TestBuyValidationErrors(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, aliceAddr)
	f.clock.Advance(150 * time.Second)

	body := map[string]interface{}{
		"funds": []map[string]string{{"denom": "uluna", "amount": "5"}},
	}
	resp, out := f.do(t, http.MethodPost, "/v1/buy", alice, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "uluna")

	resp, _ = f.do(t, http.MethodPost, "/v1/buy", alice, map[string]interface{}{"funds": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = map[string]interface{}{
		"funds": []map[string]string{{"denom": usdc, "amount": "999999999999999"}},
	}
	resp, _ = f.do(t, http.MethodPost, "/v1/buy", alice, body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/buy", alice, map[string]interface{}{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)
	admin := f.token(t, adminAddr)
	alice := f.token(t, aliceAddr)

	resp, _ := f.do(t, http.MethodPost, "/v1/admin/end-sale", alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/admin/pause", admin, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/admin/pause", admin, map[string]interface{}{"paused": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := f.do(t, http.MethodGet, "/v1/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["paused"])

	resp, _ = f.do(t, http.MethodPost, "/v1/admin/whitelist", admin, map[string]interface{}{"accounts": []string{aliceAddr}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = f.do(t, http.MethodGet, "/v1/whitelist/"+aliceAddr, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["whitelisted"])

	resp, _ = f.do(t, http.MethodDelete, "/v1/admin/whitelist", admin, map[string]interface{}{"accounts": []string{aliceAddr}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = f.do(t, http.MethodGet, "/v1/whitelist/"+aliceAddr, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["whitelisted"])

	resp, _ = f.do(t, http.MethodPost, "/v1/admin/migrate", admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestQueryRoutes(t *testing.T) {
	f := newFixture(t)

	resp, out := f.do(t, http.MethodGet, "/v1/config", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, adminAddr, out["admin"])

	resp, out = f.do(t, http.MethodGet, "/v1/accounts/"+aliceAddr+"/allocation", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", out["amount"])

	resp, _ = f.do(t, http.MethodGet, "/v1/accounts/not-base58!/valuation", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rates, err := http.Get(f.srv.URL + "/v1/rates")
	require.NoError(t, err)
	defer rates.Body.Close()
	var list []domain.Rate
	require.NoError(t, json.NewDecoder(rates.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, usdc, list[0].Denom)

	contrib, err := http.Get(f.srv.URL + "/v1/accounts/" + aliceAddr + "/contributions")
	require.NoError(t, err)
	defer contrib.Body.Close()
	var entry domain.Contribution
	require.NoError(t, json.NewDecoder(contrib.Body).Decode(&entry))
	assert.Empty(t, entry.Coins)
}

func TestEventsRoute(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, aliceAddr)
	f.clock.Advance(150 * time.Second)

	resp, _ := f.do(t, http.MethodPost, "/v1/buy", alice, buyBody("2000000"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get := func(query string) []eventView {
		resp, err := http.Get(f.srv.URL + "/v1/events" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []eventView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	all := get("")
	require.Len(t, all, 2)
	assert.Equal(t, "instantiate", all[0].Action)
	assert.Equal(t, "buy", all[1].Action)

	mine := get("?sender=" + aliceAddr)
	require.Len(t, mine, 1)
	assert.Equal(t, uint64(2), mine[0].Sequence)

	late := get(fmt.Sprintf("?start=%d", genesis.Unix()+100))
	require.Len(t, late, 1)

	resp, err := http.Get(f.srv.URL + "/v1/events?start=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketReceivesEvents(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, aliceAddr)
	f.clock.Advance(150 * time.Second)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := f.do(t, http.MethodPost, "/v1/buy", alice, buyBody("3000000"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev eventView
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "buy", ev.Action)
	assert.Equal(t, aliceAddr, ev.Sender)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{presale.ErrUnauthorized, http.StatusForbidden},
		{presale.ErrNotWhitelisted, http.StatusForbidden},
		{presale.ErrNotInstantiated, http.StatusNotFound},
		{&presale.UnacceptedDenomError{Denom: "x"}, http.StatusBadRequest},
		{&presale.ConfigError{Details: "x"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", account.ErrInvalidAddress), http.StatusBadRequest},
		{fmt.Errorf("attach funds: %w", ledger.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{presale.ErrHardCapReached, http.StatusConflict},
		{presale.ErrNothingToClaim, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAuthenticator_Expired(t *testing.T) {
	auth := NewAuthenticator(secret)
	auth.now = func() time.Time { return genesis }

	tok, err := auth.Issue(aliceAddr, time.Minute)
	require.NoError(t, err)

	sub, err := auth.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, aliceAddr, sub)

	auth.now = func() time.Time { return genesis.Add(2 * time.Minute) }
	_, err = auth.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
