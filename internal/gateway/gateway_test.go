package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quietloop/remora/internal/relay"
)

// fakeRelay satisfies RelayControl for handler tests.
type fakeRelay struct {
	status    relay.Status
	events    *relay.EventHub
	bans      *relay.BanList
	reloadErr error
	reloads   int
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		status: relay.Status{Model: "test-model", Chats: 2},
		events: relay.NewEventHub(),
		bans:   relay.NewBanList(),
	}
}

func (f *fakeRelay) Status() relay.Status     { return f.status }
func (f *fakeRelay) Events() *relay.EventHub  { return f.events }
func (f *fakeRelay) Bans() *relay.BanList     { return f.bans }
func (f *fakeRelay) ReloadPrompts() error     { f.reloads++; return f.reloadErr }

func newTestGateway(t *testing.T, rc RelayControl) *Gateway {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	g := &Gateway{
		logger:     logger,
		dispatcher: NewWebhookDispatcher(logger),
		relay:      rc,
	}
	g.config.defaults()
	g.config.Auth = AuthConfig{BearerToken: "admin-token"}
	return g
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t, newFakeRelay())
	rec := get(t, g.buildRouter(), "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t, newFakeRelay())
	mux := g.buildRouter()

	if rec := get(t, mux, "/status", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /status = %d, want 401", rec.Code)
	}
	if rec := get(t, mux, "/status", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token /status = %d, want 401", rec.Code)
	}

	rec := get(t, mux, "/status", "admin-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("/status = %d", rec.Code)
	}
	var st relay.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Model != "test-model" || st.Chats != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestAdminNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t, newFakeRelay())
	g.config.Auth = AuthConfig{}
	rec := get(t, g.buildRouter(), "/status", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("/status without auth config = %d, want 404", rec.Code)
	}
}

func TestBasicAuthAccepted(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t, newFakeRelay())
	g.config.Auth = AuthConfig{BasicUser: "ops", BasicPass: "hunter2"}
	mux := g.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.SetBasicAuth("ops", "hunter2")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("basic auth /status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.SetBasicAuth("ops", "wrong")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad basic auth /status = %d, want 401", rec.Code)
	}
}

func TestBanEndpoints(t *testing.T) {
	t.Parallel()
	fake := newFakeRelay()
	g := newTestGateway(t, fake)
	mux := g.buildRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/bans/user-9", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/bans = %d", rec.Code)
	}
	if !fake.bans.Banned("user-9") {
		t.Error("user-9 not banned after PUT")
	}

	rec = get(t, mux, "/api/bans", "admin-token")
	var list banListJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Banned) != 1 || list.Banned[0] != "user-9" {
		t.Errorf("ban list = %v", list.Banned)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/bans/user-9", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /api/bans = %d", rec.Code)
	}
	if fake.bans.Banned("user-9") {
		t.Error("user-9 still banned after DELETE")
	}
}

func TestReloadPrompts(t *testing.T) {
	t.Parallel()
	fake := newFakeRelay()
	g := newTestGateway(t, fake)
	mux := g.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/prompts/reload", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/prompts/reload = %d", rec.Code)
	}
	if fake.reloads != 1 {
		t.Errorf("reloads = %d, want 1", fake.reloads)
	}

	fake.reloadErr = errors.New("template broken")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("failed reload = %d, want 500", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t, newFakeRelay())
	rec := get(t, g.buildRouter(), "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}
