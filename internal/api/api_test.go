package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/timbro-mach/stock-simulator-backend/internal/api"
	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/oracle"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// captureMailer records the last reset link instead of sending mail.
type captureMailer struct {
	lastEmail string
	lastLink  string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.lastEmail = email
	m.lastLink = link
	return nil
}

// newTestEnv creates the API service over an in-memory store and a
// static price oracle.
func newTestEnv(t *testing.T, prices map[string]decimal.Decimal) (http.Handler, *store.MemoryStore, *oracle.Static, *captureMailer) {
	t.Helper()
	ms := store.NewMemoryStore()
	o := oracle.NewStatic(prices)
	svc := ledger.NewService(ms, o)
	tokens := auth.NewManager("test-secret", time.Hour)
	mailer := &captureMailer{}
	apiSvc := api.NewService(svc, tokens, nil, mailer)
	return apiSvc.Router(), ms, o, mailer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return m
}

func register(t *testing.T, h http.Handler, username string) {
	t.Helper()
	w := doJSON(t, h, "POST", "/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}
}

// --- Auth ---

func TestRegister_AndDuplicate(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)

	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/register", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "x",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", w.Code)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)

	w := doJSON(t, h, "POST", "/register", map[string]string{"username": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/login", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["token"] == "" || body["token"] == nil {
		t.Error("expected a session token")
	}

	w = doJSON(t, h, "POST", "/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/login", map[string]string{
		"username": "nobody", "password": "hunter2",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: expected 401, got %d", w.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h, _, _, mailer := newTestEnv(t, nil)
	register(t, h, "alice")

	// Unknown email gets the same generic answer as a known one.
	w := doJSON(t, h, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown email: expected 200, got %d", w.Code)
	}
	unknownMsg := decodeBody(t, w)["message"]

	w = doJSON(t, h, "POST", "/api/auth/forgot-password", map[string]string{
		"email": "alice@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("known email: expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["message"] != unknownMsg {
		t.Error("known and unknown emails should get identical responses")
	}
	if mailer.lastEmail != "alice@example.com" {
		t.Fatalf("reset mail should go to alice, got %q", mailer.lastEmail)
	}

	// Pull the raw token out of the captured link.
	u, err := url.Parse(mailer.lastLink)
	if err != nil {
		t.Fatalf("bad reset link %q: %v", mailer.lastLink, err)
	}
	raw := u.Query().Get("token")
	if raw == "" {
		t.Fatalf("reset link carries no token: %q", mailer.lastLink)
	}

	w = doJSON(t, h, "POST", "/api/auth/reset-password", map[string]string{
		"token": raw, "new_password": "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// New password works, old one does not.
	w = doJSON(t, h, "POST", "/login", map[string]string{
		"username": "alice", "password": "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login with new password: expected 200, got %d", w.Code)
	}
	w = doJSON(t, h, "POST", "/login", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login with old password: expected 401, got %d", w.Code)
	}

	// The token is single-use.
	w = doJSON(t, h, "POST", "/api/auth/reset-password", map[string]string{
		"token": raw, "new_password": "again",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("reused token: expected 400, got %d", w.Code)
	}
}

func TestResetPassword_BogusToken(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)

	w := doJSON(t, h, "POST", "/api/auth/reset-password", map[string]string{
		"token": "bogus", "new_password": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- Quotes ---

func TestStockQuote(t *testing.T) {
	h, _, o, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(187.44)})
	o.Series["AAPL"] = []oracle.PricePoint{
		{Date: "2026-08-28", Close: d(187.44)},
	}

	w := doJSON(t, h, "GET", "/stock/aapl", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["symbol"] != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %v", body["symbol"])
	}

	w = doJSON(t, h, "GET", "/stock_chart/AAPL", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("chart: expected 200, got %d", w.Code)
	}

	w = doJSON(t, h, "GET", "/stock/UNKNOWN", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("unknown symbol: expected 502, got %d", w.Code)
	}

	w = doJSON(t, h, "GET", "/stock/123", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid symbol: expected 400, got %d", w.Code)
	}
}

// --- Global trading ---

func TestBuySellUserFlow(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/buy", map[string]any{
		"username": "alice", "symbol": "AAPL", "quantity": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["cash_balance"] != "99000" {
		t.Errorf("expected cash 99000, got %v", body["cash_balance"])
	}

	w = doJSON(t, h, "GET", "/user?username=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user: expected 200, got %d", w.Code)
	}
	body = decodeBody(t, w)
	if body["total_value"] != "100000" {
		t.Errorf("expected total 100000 at unchanged price, got %v", body["total_value"])
	}
	portfolio, ok := body["portfolio"].([]any)
	if !ok || len(portfolio) != 1 {
		t.Fatalf("expected 1 position, got %v", body["portfolio"])
	}

	w = doJSON(t, h, "POST", "/sell", map[string]any{
		"username": "alice", "symbol": "AAPL", "quantity": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sell: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["cash_balance"] != "100000" {
		t.Errorf("round trip should restore 100000")
	}
}

func TestBuy_InsufficientFunds(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(60000)})
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/buy", map[string]any{
		"username": "alice", "symbol": "AAPL", "quantity": 2,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSell_NothingHeld(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/sell", map[string]any{
		"username": "alice", "symbol": "AAPL", "quantity": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestBuy_UnknownUser(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})

	w := doJSON(t, h, "POST", "/buy", map[string]any{
		"username": "nobody", "symbol": "AAPL", "quantity": 1,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Competitions ---

func createCompetition(t *testing.T, h http.Handler, username, name, limit string) string {
	t.Helper()
	w := doJSON(t, h, "POST", "/competition/create", map[string]string{
		"username": username, "name": name, "position_limit": limit,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create competition: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	code, _ := decodeBody(t, w)["code"].(string)
	if code == "" {
		t.Fatal("expected a competition code")
	}
	return code
}

func TestCompetitionFlow(t *testing.T) {
	h, ms, o, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")
	register(t, h, "bob")

	code := createCompetition(t, h, "alice", "Fall League", "")

	w := doJSON(t, h, "POST", "/competition/join", map[string]string{
		"username": "bob", "code": code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Joining again succeeds without a second membership.
	w = doJSON(t, h, "POST", "/competition/join", map[string]string{
		"username": "bob", "code": code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("re-join: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	comp, err := ms.GetCompetitionByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("competition should exist: %v", err)
	}
	members, _ := ms.ListCompetitionMembers(context.Background(), comp.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members (creator + bob), got %d", len(members))
	}

	// Bob trades in the competition, price doubles, bob leads.
	w = doJSON(t, h, "POST", "/competition/buy", map[string]any{
		"username": "bob", "competition_code": code, "symbol": "AAPL", "quantity": 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("competition buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	o.Prices["AAPL"] = d(200)

	w = doJSON(t, h, "GET", fmt.Sprintf("/competition/%s/leaderboard", code), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	board, ok := body["leaderboard"].([]any)
	if !ok || len(board) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %v", body["leaderboard"])
	}
	first := board[0].(map[string]any)
	if first["display_name"] != "bob" {
		t.Errorf("expected bob on top, got %v", first["display_name"])
	}
	if first["total_value"] != "110000" {
		t.Errorf("expected bob at 110000, got %v", first["total_value"])
	}
}

func TestClosedCompetition_JoinableByExactCode(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")
	register(t, h, "bob")

	w := doJSON(t, h, "POST", "/competition/create", map[string]any{
		"username": "alice", "name": "Private League", "open": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create closed competition: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	code := decodeBody(t, w)["code"].(string)

	// Hidden from the public listing.
	w = doJSON(t, h, "GET", "/competitions", nil)
	if strings.Contains(w.Body.String(), code) {
		t.Errorf("closed competition should not be listed: %s", w.Body.String())
	}

	// The code itself admits anyone who has it.
	w = doJSON(t, h, "POST", "/competition/join", map[string]string{
		"username": "bob", "code": code,
	})
	if w.Code != http.StatusOK {
		t.Errorf("join closed competition by code: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCloseCompetition(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")
	register(t, h, "bob")

	code := createCompetition(t, h, "alice", "Fall League", "")

	// Only the creator may close it.
	w := doJSON(t, h, "POST", fmt.Sprintf("/competition/%s/close", code), map[string]string{
		"username": "bob",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-creator close: expected 403, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", fmt.Sprintf("/competition/%s/close", code), map[string]string{
		"username": "alice",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/competitions", nil)
	if strings.Contains(w.Body.String(), code) {
		t.Errorf("closed competition should drop out of the listing: %s", w.Body.String())
	}

	// The code still works after closing.
	w = doJSON(t, h, "POST", "/competition/join", map[string]string{
		"username": "bob", "code": code,
	})
	if w.Code != http.StatusOK {
		t.Errorf("join after close: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompetitionReJoin_NoExtraAccounts(t *testing.T) {
	h, ms, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")
	register(t, h, "bob")
	code := createCompetition(t, h, "alice", "League", "")

	join := func() {
		w := doJSON(t, h, "POST", "/competition/join", map[string]string{
			"username": "bob", "code": code,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	join()
	accounts, _ := ms.ListAccounts(context.Background())
	before := len(accounts)

	join()
	join()
	accounts, _ = ms.ListAccounts(context.Background())
	if len(accounts) != before {
		t.Errorf("re-joins must not open accounts: before=%d after=%d", before, len(accounts))
	}
}

func TestCompetitionJoin_UnknownCode(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/competition/join", map[string]string{
		"username": "alice", "code": "NOPE1234",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCompetitionBuy_PositionLimit(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")

	code := createCompetition(t, h, "alice", "Limited League", "50%")

	w := doJSON(t, h, "POST", "/competition/buy", map[string]any{
		"username": "alice", "competition_code": code, "symbol": "AAPL", "quantity": 400,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("within-limit buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "POST", "/competition/buy", map[string]any{
		"username": "alice", "competition_code": code, "symbol": "AAPL", "quantity": 200,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("over-limit buy: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompetitionCreate_BadLimitRejected(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/competition/create", map[string]string{
		"username": "alice", "name": "Broken", "position_limit": "banana",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for unparsable limit, got %d", w.Code)
	}
}

func TestCompetitionAccountsAreIsolated(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")
	code := createCompetition(t, h, "alice", "League", "")

	// Trade only in the competition; the global account is untouched.
	doJSON(t, h, "POST", "/competition/buy", map[string]any{
		"username": "alice", "competition_code": code, "symbol": "AAPL", "quantity": 50,
	})

	w := doJSON(t, h, "GET", "/user?username=alice", nil)
	body := decodeBody(t, w)
	if body["cash_balance"] != "100000" {
		t.Errorf("global cash should be untouched, got %v", body["cash_balance"])
	}
	comps, ok := body["competitions"].([]any)
	if !ok || len(comps) != 1 {
		t.Fatalf("expected 1 competition account, got %v", body["competitions"])
	}
	cs := comps[0].(map[string]any)
	if cs["cash_balance"] != "95000" {
		t.Errorf("competition cash should be 95000, got %v", cs["cash_balance"])
	}
}

// --- Teams ---

func createTeam(t *testing.T, h http.Handler, username, name string) string {
	t.Helper()
	w := doJSON(t, h, "POST", "/team/create", map[string]string{
		"username": username, "team_name": name,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create team: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	id, _ := decodeBody(t, w)["team_id"].(string)
	if id == "" {
		t.Fatal("expected a team id")
	}
	return id
}

func TestTeamFlow(t *testing.T) {
	h, _, _, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")
	register(t, h, "bob")
	register(t, h, "mallory")

	teamID := createTeam(t, h, "alice", "bulls")

	w := doJSON(t, h, "POST", "/team/join", map[string]string{
		"username": "bob", "team_id": teamID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("join team: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Both members trade the same shared account.
	w = doJSON(t, h, "POST", "/team/buy", map[string]any{
		"username": "alice", "team_id": teamID, "symbol": "AAPL", "quantity": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("alice team buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "POST", "/team/sell", map[string]any{
		"username": "bob", "team_id": teamID, "symbol": "AAPL", "quantity": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bob team sell: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["cash_balance"] != "100000" {
		t.Errorf("team round trip should restore 100000")
	}

	// A non-member cannot trade the team account.
	w = doJSON(t, h, "POST", "/team/buy", map[string]any{
		"username": "mallory", "team_id": teamID, "symbol": "AAPL", "quantity": 1,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("non-member trade: expected 404, got %d", w.Code)
	}
}

func TestCompetitionTeamFlow(t *testing.T) {
	h, _, o, _ := newTestEnv(t, map[string]decimal.Decimal{"AAPL": d(100)})
	register(t, h, "alice")
	register(t, h, "bob")

	code := createCompetition(t, h, "alice", "Team League", "")
	teamID := createTeam(t, h, "bob", "bears")

	w := doJSON(t, h, "POST", "/competition/team/join", map[string]string{
		"username": "bob", "competition_code": code, "team_id": teamID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("competition team join: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "POST", "/competition/team/buy", map[string]any{
		"username": "bob", "competition_code": code, "team_id": teamID,
		"symbol": "AAPL", "quantity": 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("competition team buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	o.Prices["AAPL"] = d(150)
	w = doJSON(t, h, "GET", fmt.Sprintf("/competition/%s/team_leaderboard", code), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("team leaderboard: expected 200, got %d", w.Code)
	}
	board := decodeBody(t, w)["leaderboard"].([]any)
	if len(board) != 1 {
		t.Fatalf("expected 1 team entry, got %d", len(board))
	}
	entry := board[0].(map[string]any)
	if entry["display_name"] != "bears" {
		t.Errorf("expected team name bears, got %v", entry["display_name"])
	}
	// 90000 cash + 100 shares at 150.
	if entry["total_value"] != "105000" {
		t.Errorf("expected 105000, got %v", entry["total_value"])
	}
}

func TestCompetitionTeamReJoin_NoExtraAccounts(t *testing.T) {
	h, ms, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")
	register(t, h, "bob")
	code := createCompetition(t, h, "alice", "Team League", "")
	teamID := createTeam(t, h, "bob", "bears")

	enter := func() {
		w := doJSON(t, h, "POST", "/competition/team/join", map[string]string{
			"username": "bob", "competition_code": code, "team_id": teamID,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("competition team join: expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	enter()
	accounts, _ := ms.ListAccounts(context.Background())
	before := len(accounts)

	enter()
	enter()
	accounts, _ = ms.ListAccounts(context.Background())
	if len(accounts) != before {
		t.Errorf("re-entering must not open accounts: before=%d after=%d", before, len(accounts))
	}
}

// --- Admin ---

func adminToken(t *testing.T, h http.Handler, ms *store.MemoryStore, username string) string {
	t.Helper()
	register(t, h, username)
	if err := ms.SetUserAdmin(context.Background(), username, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	w := doJSON(t, h, "POST", "/login", map[string]string{
		"username": username, "password": "hunter2",
	})
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatal("expected admin token")
	}
	return token
}

func doAuthed(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAdmin_RequiresAuth(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)

	w := doJSON(t, h, "GET", "/admin/users", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
}

func TestAdmin_RejectsNonAdmin(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)
	register(t, h, "alice")

	w := doJSON(t, h, "POST", "/login", map[string]string{
		"username": "alice", "password": "hunter2",
	})
	token := decodeBody(t, w)["token"].(string)

	w = doAuthed(t, h, "GET", "/admin/users", token, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin: expected 403, got %d", w.Code)
	}
}

func TestAdmin_ListPromoteDelete(t *testing.T) {
	h, ms, _, _ := newTestEnv(t, nil)
	token := adminToken(t, h, ms, "root")
	register(t, h, "alice")

	w := doAuthed(t, h, "GET", "/admin/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", w.Code)
	}
	users := decodeBody(t, w)["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	w = doAuthed(t, h, "POST", "/admin/users/alice/promote", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	alice, _ := ms.GetUserByUsername(context.Background(), "alice")
	if !alice.IsAdmin {
		t.Error("alice should be admin after promotion")
	}

	w = doAuthed(t, h, "DELETE", "/admin/users/alice", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := ms.GetUserByUsername(context.Background(), "alice"); err == nil {
		t.Error("alice should be gone")
	}
	if !strings.Contains(w.Body.String(), "deleted") {
		t.Errorf("unexpected delete response: %s", w.Body.String())
	}

	w = doAuthed(t, h, "DELETE", "/admin/users/alice", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete: expected 404, got %d", w.Code)
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	h, _, _, _ := newTestEnv(t, nil)

	w := doJSON(t, h, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}
