package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/speaksmart/internal/app"
	"github.com/MrWong99/speaksmart/internal/chat"
	chatmock "github.com/MrWong99/speaksmart/internal/chat/mock"
	"github.com/MrWong99/speaksmart/internal/config"
	"github.com/MrWong99/speaksmart/internal/discord"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
	sttmock "github.com/MrWong99/speaksmart/pkg/provider/stt/mock"
)

const operatorID int64 = 900

var alice = chat.User{ID: 11, Username: "alice"}

// fakePlatform hands the handler it is run with to the test.
type fakePlatform struct {
	*chatmock.Transport

	mu      sync.Mutex
	handler discord.Handler
	ready   chan struct{}
	closed  int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{Transport: &chatmock.Transport{}, ready: make(chan struct{})}
}

func (p *fakePlatform) Run(ctx context.Context, h discord.Handler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	close(p.ready)
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePlatform) Handler() discord.Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

// pingStore fails its health probe on demand.
type pingStore struct {
	*store.MemStore
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }

const faqJSON = `[
  {"q": "Changing plan", "keywords": ["plan", "tariff", "change"], "a": "Open Settings > Plan and pick a new one."}
]`

// testConfig returns a config whose corpus and work files live in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	faqPath := filepath.Join(dir, "faq.json")
	practicePath := filepath.Join(dir, "practice_sets.json")
	if err := os.WriteFile(faqPath, []byte(faqJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(practicePath, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Discord: config.DiscordConfig{Token: "unused", OperatorID: operatorID},
		Storage: config.StorageConfig{Driver: config.StorageMemory},
		Corpus:  config.CorpusConfig{FAQPath: faqPath, PracticePath: practicePath},
		Audio:   config.AudioConfig{FFmpegPath: "ffmpeg", WorkDir: filepath.Join(dir, "tmp")},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	base := []app.Option{
		app.WithSessionStore(session.NewMemoryStore()),
		app.WithSTT(&sttmock.Provider{Text: "hello"}),
		app.WithMetrics(testMetrics(t)),
	}
	a, err := app.New(context.Background(), cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNew_RequiresOperator(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Discord.OperatorID = 0
	platform := newFakePlatform()

	_, err := app.New(context.Background(), cfg,
		app.WithStore(store.NewMemStore()),
		app.WithPlatform(platform),
		app.WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected error for missing operator id")
	}
	if !strings.Contains(err.Error(), "operator id") {
		t.Errorf("error should mention the operator id, got: %v", err)
	}
}

func TestNew_OpensConfiguredStores(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage = config.StorageConfig{
		Driver: config.StorageSQLite,
		DSN:    filepath.Join(t.TempDir(), "db", "speaksmart.db"),
	}
	a := newApp(t, cfg, app.WithPlatform(newFakePlatform()))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(cfg.Storage.DSN); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
}

func TestNew_UnknownStorageDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Driver = "mysql"
	_, err := app.New(context.Background(), cfg, app.WithPlatform(newFakePlatform()))
	if err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestApp_RunDeliversEvents(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	a := newApp(t, testConfig(t), app.WithStore(store.NewMemStore()), app.WithPlatform(platform))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case <-platform.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("platform was not started")
	}
	h := platform.Handler()

	events := []chat.Event{
		{Kind: chat.KindCommand, User: alice, ChatID: alice.ID, Text: "/support", Command: "support"},
		{Kind: chat.KindMessage, User: alice, ChatID: alice.ID, Text: "How do I change my plan?"},
	}
	for _, ev := range events {
		if err := h.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle(%q): %v", ev.Text, err)
		}
	}
	last, ok := platform.Last(alice.ID)
	if !ok {
		t.Fatal("nothing was sent to the user")
	}
	if !strings.Contains(last.Text, "Open Settings > Plan") {
		t.Errorf("last reply = %q, want the FAQ answer", last.Text)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}
}

func TestApp_Handler(t *testing.T) {
	t.Parallel()

	scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("scraped"))
	})

	tests := []struct {
		name       string
		storeErr   error
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", path: "/healthz", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "ready", path: "/readyz", wantStatus: http.StatusOK, wantBody: `"store":"ok"`},
		{name: "store down", storeErr: errors.New("connection refused"), path: "/readyz", wantStatus: http.StatusServiceUnavailable, wantBody: "connection refused"},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "scraped"},
		{name: "unknown", path: "/nope", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := newApp(t, testConfig(t),
				app.WithStore(pingStore{MemStore: store.NewMemStore(), err: tc.storeErr}),
				app.WithPlatform(newFakePlatform()),
				app.WithMetricsHandler(scrape),
			)
			srv := httptest.NewServer(a.Handler())
			defer srv.Close()

			resp, err := http.Get(srv.URL + tc.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tc.path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantBody == "" {
				return
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(body), tc.wantBody) {
				t.Errorf("body %q should contain %q", body, tc.wantBody)
			}
		})
	}
}

func TestApp_ReadyzReportsChecks(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t), app.WithStore(store.NewMemStore()), app.WithPlatform(newFakePlatform()))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	// An injected recogniser carries no breaker and in-memory sessions have
	// no probe, so only the store is checked.
	if len(body.Checks) != 1 || body.Checks["store"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	platform := newFakePlatform()
	a, err := app.New(context.Background(), cfg,
		app.WithSessionStore(session.NewMemoryStore()),
		app.WithSTT(&sttmock.Provider{}),
		app.WithPlatform(platform),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	// Injected collaborators belong to the caller.
	if platform.closed != 0 {
		t.Errorf("platform closed %d times, want 0", platform.closed)
	}
}

func TestApp_ShutdownDeadline(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t),
		app.WithSessionStore(session.NewMemoryStore()),
		app.WithSTT(&sttmock.Provider{}),
		app.WithPlatform(newFakePlatform()),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() = %v, want context.Canceled", err)
	}
}
