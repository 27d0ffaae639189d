package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marble-royale/internal/api"
	"marble-royale/internal/game"
	"marble-royale/internal/roster"
	"marble-royale/internal/session"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockBattle implements api.BattleService for testing
type MockBattle struct {
	mu       sync.Mutex
	running  bool
	started  []string
	startErr error
	speed    int
	message  string
	events   []game.Event
}

func NewMockBattle() *MockBattle {
	events := make([]game.Event, 3)
	for i := range events {
		events[i] = game.NewEvent(game.EventTypeDamage, uint64(i), "AAA", "hit", nil)
		events[i].Sequence = uint64(i + 1)
	}
	return &MockBattle{speed: 1, events: events}
}

func (m *MockBattle) Start(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		m.message = session.UserMessage(m.startErr, 2)
		return m.startErr
	}
	if m.running {
		return session.ErrBattleRunning
	}
	m.running = true
	m.started = ids
	return nil
}

func (m *MockBattle) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return session.ErrNoBattle
	}
	m.running = false
	return nil
}

func (m *MockBattle) Skip() (string, error) {
	if !m.isRunning() {
		return "", session.ErrNoBattle
	}
	return "AAA", nil
}

func (m *MockBattle) SetSpeed(n int) (int, error) {
	if !m.isRunning() {
		return 0, session.ErrNoBattle
	}
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	m.mu.Lock()
	m.speed = n
	m.mu.Unlock()
	return n, nil
}

func (m *MockBattle) Status() session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := session.Status{Phase: session.PhaseSelecting, Message: m.message, Fighters: m.started}
	if m.running {
		st.Phase = session.PhaseBattling
		st.Battles = 1
	}
	return st
}

func (m *MockBattle) Snapshot() (*game.Snapshot, error) {
	if !m.isRunning() {
		return nil, session.ErrNoBattle
	}
	return &game.Snapshot{
		Tick:       42,
		AliveCount: 2,
		Marbles: []game.MarbleSnapshot{
			{ID: "AAA", FighterID: "AAA", Name: "Alpha", Alive: true, HP: 80, MaxHP: 100},
			{ID: "BBB", FighterID: "BBB", Name: "Bravo", Alive: true, HP: 50, MaxHP: 100},
		},
	}, nil
}

func (m *MockBattle) Events(since uint64) ([]game.Event, error) {
	if !m.isRunning() {
		return nil, session.ErrNoBattle
	}
	out := make([]game.Event, 0)
	for _, ev := range m.events {
		if ev.Sequence > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockBattle) Standings() ([]game.StandingEntry, error) {
	if !m.isRunning() {
		return nil, session.ErrNoBattle
	}
	return []game.StandingEntry{
		{Rank: 1, FighterID: "AAA", Alive: true},
		{Rank: 2, FighterID: "BBB", Alive: true},
	}, nil
}

func (m *MockBattle) FramePNG() ([]byte, error) {
	if !m.isRunning() {
		return nil, session.ErrNoBattle
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (m *MockBattle) AudioWAV(d time.Duration) ([]byte, error) {
	if !m.isRunning() {
		return nil, session.ErrNoBattle
	}
	return nil, session.ErrAudioDisabled
}

func (m *MockBattle) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func newTestRouter(battle api.BattleService, opts ...func(*api.RouterConfig)) *httptest.Server {
	cfg := api.RouterConfig{
		Battle:         battle,
		DisableLogging: true,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return httptest.NewServer(api.NewRouter(cfg))
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// ============================================================================
// Router Purity Tests
// ============================================================================

// TestNewRouterHasNoSideEffects verifies that NewRouter opens no listeners
// and needs nothing beyond its config.
func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Battle: NewMockBattle(),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
}

// ============================================================================
// Battle Endpoint Tests
// ============================================================================

// TestAPIStartBattle verifies both selection forms and the error mapping
func TestAPIStartBattle(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		startErr   error
		preRunning bool
		wantStatus int
		wantIDs    []string
	}{
		{name: "ids", body: `{"ids": ["aapl", "MSFT", "aapl"]}`, wantStatus: http.StatusOK, wantIDs: []string{"AAPL", "MSFT"}},
		{name: "share list", body: `{"share": "aapl-msft,nvda"}`, wantStatus: http.StatusOK, wantIDs: []string{"AAPL", "MSFT", "NVDA"}},
		{name: "empty", body: `{"ids": []}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{invalid}`, wantStatus: http.StatusBadRequest},
		{name: "already running", body: `{"share": "AAA,BBB"}`, preRunning: true, wantStatus: http.StatusConflict},
		{name: "too few", body: `{"share": "AAA,ZZZ"}`, startErr: fmt.Errorf("load: %w", roster.ErrTooFewFighters), wantStatus: http.StatusUnprocessableEntity},
		{name: "internal", body: `{"share": "AAA,BBB"}`, startErr: fmt.Errorf("disk on fire"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			battle := NewMockBattle()
			battle.startErr = tt.startErr
			battle.running = tt.preRunning
			ts := newTestRouter(battle)
			defer ts.Close()

			resp := postJSON(t, ts.URL+"/api/battle", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantIDs != nil && !reflect.DeepEqual(battle.started, tt.wantIDs) {
				t.Errorf("Expected ids %v, got %v", tt.wantIDs, battle.started)
			}
			if tt.wantStatus == http.StatusUnprocessableEntity {
				var body map[string]string
				json.NewDecoder(resp.Body).Decode(&body)
				if !strings.Contains(body["error"], "at least 2") {
					t.Errorf("Expected the user-facing message, got %q", body["error"])
				}
			}
		})
	}
}

// TestAPIWithoutBattle verifies every battle endpoint answers 404 before a start
func TestAPIWithoutBattle(t *testing.T) {
	ts := newTestRouter(NewMockBattle())
	defer ts.Close()

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/battle/snapshot"},
		{"GET", "/api/battle/events"},
		{"GET", "/api/battle/standings"},
		{"GET", "/api/battle/frame.png"},
		{"GET", "/api/battle/audio.wav"},
		{"POST", "/api/battle/skip"},
		{"POST", "/api/battle/stop"},
		{"POST", "/api/battle/speed"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(`{"speed": 2}`))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("Expected 404, got %d", resp.StatusCode)
			}
		})
	}
}

// TestAPIBattleControls verifies the endpoints of a running battle
func TestAPIBattleControls(t *testing.T) {
	battle := NewMockBattle()
	battle.running = true
	ts := newTestRouter(battle)
	defer ts.Close()

	var speed map[string]int
	decode(t, postJSON(t, ts.URL+"/api/battle/speed", `{"speed": 99}`), &speed)
	if speed["speed"] != 8 {
		t.Errorf("Expected clamped speed 8, got %d", speed["speed"])
	}

	var skip map[string]string
	decode(t, postJSON(t, ts.URL+"/api/battle/skip", `{}`), &skip)
	if skip["winnerId"] != "AAA" {
		t.Errorf("Expected winner AAA, got %q", skip["winnerId"])
	}

	resp, err := http.Get(ts.URL + "/api/battle/snapshot")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var snap struct {
		Tick    int64                 `json:"tick"`
		Marbles []game.MarbleSnapshot `json:"marbles"`
	}
	decode(t, resp, &snap)
	if snap.Tick != 42 || len(snap.Marbles) != 2 {
		t.Errorf("Unexpected snapshot tick %d with %d marbles", snap.Tick, len(snap.Marbles))
	}

	resp, err = http.Get(ts.URL + "/api/battle/events?since=1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var events []map[string]interface{}
	decode(t, resp, &events)
	if len(events) != 2 || events[0]["type"] != "damage" {
		t.Errorf("Expected 2 damage events, got %v", events)
	}

	resp, err = http.Get(ts.URL + "/api/battle/events?since=-3")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad since, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/battle/standings?top=1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var standings []game.StandingEntry
	decode(t, resp, &standings)
	if len(standings) != 1 || standings[0].FighterID != "AAA" {
		t.Errorf("Expected only the leader, got %v", standings)
	}

	resp, err = http.Get(ts.URL + "/api/battle/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("Expected a PNG, got %q", resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(ts.URL + "/api/battle/audio.wav")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 with audio disabled, got %d", resp.StatusCode)
	}

	var stop map[string]bool
	decode(t, postJSON(t, ts.URL+"/api/battle/stop", `{}`), &stop)
	if !stop["success"] || battle.isRunning() {
		t.Error("Expected the battle to stop")
	}
}

// TestAPIGetBattle verifies the status endpoint reports the phase
func TestAPIGetBattle(t *testing.T) {
	ts := newTestRouter(NewMockBattle())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/battle")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var st session.Status
	decode(t, resp, &st)
	if st.Phase != session.PhaseSelecting {
		t.Errorf("Expected selecting, got %s", st.Phase)
	}
}

// ============================================================================
// Catalog Endpoint Tests
// ============================================================================

// TestAPIGetSkills verifies the full skill catalog is served
func TestAPIGetSkills(t *testing.T) {
	ts := newTestRouter(NewMockBattle())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/skills")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var skills []game.Skill
	decode(t, resp, &skills)
	if len(skills) != len(game.AllSkills()) {
		t.Errorf("Expected %d skills, got %d", len(game.AllSkills()), len(skills))
	}
}

// TestAPIGetRoster verifies selectable fighters are listed with normalized stats
func TestAPIGetRoster(t *testing.T) {
	src, err := roster.ParseRoster([]byte(`
fighters:
  - id: aapl
    name: Apple
    scale: 3.0e12
    sector: technology
  - id: xom
    name: Exxon
    scale: 4.0e11
    sector: energy
`))
	if err != nil {
		t.Fatalf("ParseRoster failed: %v", err)
	}
	ts := newTestRouter(NewMockBattle(), func(c *api.RouterConfig) { c.Roster = src })
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/roster")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var entries []struct {
		ID      string       `json:"id"`
		Element game.Element `json:"element"`
		Stats   game.Stats   `json:"stats"`
		Skills  []string     `json:"skills"`
	}
	decode(t, resp, &entries)

	if len(entries) != 2 || entries[0].ID != "AAPL" {
		t.Fatalf("Unexpected roster %v", entries)
	}
	if entries[0].Stats.MaxHP < roster.MinHP || entries[0].Stats.MaxHP > roster.MaxHP {
		t.Errorf("Expected normalized hp, got %d", entries[0].Stats.MaxHP)
	}
	if entries[0].Element != game.ElementLightning {
		t.Errorf("Expected lightning for technology, got %v", entries[0].Element)
	}
	if len(entries[0].Skills) == 0 {
		t.Error("Expected a loadout")
	}
}

// ============================================================================
// Admin Guard Tests
// ============================================================================

// TestAPIAdminGuard verifies bearer tokens, login cookies and logout
func TestAPIAdminGuard(t *testing.T) {
	ts := newTestRouter(NewMockBattle(), func(c *api.RouterConfig) {
		c.Admin = api.NewAdminGuard("s3cret")
	})
	defer ts.Close()

	stop := func(setup func(*http.Request)) int {
		req, _ := http.NewRequest("POST", ts.URL+"/api/battle/stop", nil)
		if setup != nil {
			setup(req)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := stop(nil); code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", code)
	}
	if code := stop(func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }); code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a wrong token, got %d", code)
	}
	// Passing the guard reaches the handler, which has no battle to stop
	if code := stop(func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }); code != http.StatusNotFound {
		t.Errorf("Expected 404 past the guard, got %d", code)
	}

	resp := postJSON(t, ts.URL+"/api/admin/login", `{"token": "nope"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad login, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/admin/login", `{"token": "s3cret"}`)
	resp.Body.Close()
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == api.AdminCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected a session cookie")
	}
	if code := stop(func(r *http.Request) { r.AddCookie(cookie) }); code != http.StatusNotFound {
		t.Errorf("Expected the cookie to pass the guard, got %d", code)
	}

	tampered := *cookie
	tampered.Value = "x" + cookie.Value
	if code := stop(func(r *http.Request) { r.AddCookie(&tampered) }); code != http.StatusUnauthorized {
		t.Errorf("Expected a tampered cookie to fail, got %d", code)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/admin/logout", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if code := stop(func(r *http.Request) { r.AddCookie(cookie) }); code != http.StatusUnauthorized {
		t.Errorf("Expected the cookie to stop working after logout, got %d", code)
	}
}

// TestAPIAdminGuardDisabled verifies an empty token leaves controls open
func TestAPIAdminGuardDisabled(t *testing.T) {
	ts := newTestRouter(NewMockBattle(), func(c *api.RouterConfig) {
		c.Admin = api.NewAdminGuard("")
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/battle/stop", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected the handler to run, got %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/api/admin/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var st map[string]bool
	decode(t, resp, &st)
	if st["enabled"] || !st["authenticated"] {
		t.Errorf("Unexpected guard status %v", st)
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

// TestAPICORSHeaders verifies CORS headers are set correctly
func TestAPICORSHeaders(t *testing.T) {
	ts := newTestRouter(NewMockBattle(), func(c *api.RouterConfig) {
		c.CORSOrigins = []string{"http://test.example.com"}
	})
	defer ts.Close()

	req, _ := http.NewRequest("GET", ts.URL+"/api/battle", nil)
	req.Header.Set("Origin", "http://test.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	allowOrigin := resp.Header.Get("Access-Control-Allow-Origin")
	if allowOrigin != "http://test.example.com" {
		t.Errorf("Expected Access-Control-Allow-Origin 'http://test.example.com', got '%s'", allowOrigin)
	}
}

// TestAPIRateLimiting verifies rate limiting works
func TestAPIRateLimiting(t *testing.T) {
	ts := newTestRouter(NewMockBattle(), func(c *api.RouterConfig) {
		c.RateLimitConfig = &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		}
	})
	defer ts.Close()

	var gotRateLimited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/battle")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			gotRateLimited = true
			break
		}
	}

	if !gotRateLimited {
		t.Error("Expected to be rate limited after burst exceeded")
	}
}

// TestAPIRedirects tests the root redirect
func TestAPIRedirects(t *testing.T) {
	ts := newTestRouter(NewMockBattle())
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302 redirect, got %d", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); location != "/api/battle" {
		t.Errorf("Expected redirect to /api/battle, got %s", location)
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

// TestWebSocketFeed verifies connected clients receive battle:state and battle:events
func TestWebSocketFeed(t *testing.T) {
	battle := NewMockBattle()
	battle.running = true
	server := api.NewServer(api.RouterConfig{Battle: battle, DisableLogging: true})
	defer server.Stop()
	go server.Hub().Run()
	server.Hub().StartBroadcastLoop(battle)

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(seen["battle:state"] && seen["battle:events"]) {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Read failed after %v: %v", seen, err)
		}
		seen[msg.Event] = true
	}
}

// TestWebSocketRejectsOrigin verifies foreign origins can't open the feed
func TestWebSocketRejectsOrigin(t *testing.T) {
	server := api.NewServer(api.RouterConfig{Battle: NewMockBattle(), DisableLogging: true})
	defer server.Stop()
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("Expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

// BenchmarkAPIGetSnapshot benchmarks the snapshot endpoint
func BenchmarkAPIGetSnapshot(b *testing.B) {
	battle := NewMockBattle()
	battle.running = true
	router := api.NewRouter(api.RouterConfig{
		Battle:          battle,
		DisableLogging:  true,
		RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1e9, Burst: 1e9, CleanupInterval: time.Hour},
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := http.Get(ts.URL + "/api/battle/snapshot")
		if err != nil {
			b.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
	}
}
