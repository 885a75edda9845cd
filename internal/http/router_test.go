package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-roster-backend/internal/config"
	"github.com/tbourn/go-roster-backend/internal/domain"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Player{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newFeedServer serves n players in the upstream feed's raw key style and
// counts how many times it is hit.
func newFeedServer(t *testing.T, n int, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		records := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			records = append(records, map[string]any{
				"Player name": fmt.Sprintf("Player %02d", i),
				"position":    "CF",
				"Games":       100 + i,
				"Hits":        150,
				"AVG":         0.301,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(feedURL, ollamaHost string) config.Config {
	return config.Config{
		RateRPS:   1000,
		RateBurst: 100,
		FeedURL:   feedURL,
		Ollama:    config.OllamaConfig{Host: ollamaHost, Model: "llama3.2:1b"},
		CORS:      config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:  config.SecurityConfig{EnableHSTS: false},
		OTEL:      config.OTELConfig{ServiceName: "test-svc"},
	}
}

func do(t *testing.T, r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacksCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cache := RegisterRoutes(r, newTestDB(t), testConfig("http://feed.invalid", "http://ollama.invalid"))
	t.Cleanup(cache.Stop)

	// /health works
	w := do(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	// request id issued
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	// /metrics is wired
	w = do(t, r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// root welcome message
	w = do(t, r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("Hello World from Backend")) {
		t.Fatalf("GET / = %d body=%s", w.Code, w.Body.String())
	}

	// unknown route → JSON 404 envelope
	w = do(t, r, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound || !bytes.Contains(w.Body.Bytes(), []byte("not_found")) {
		t.Fatalf("GET /nope = %d body=%s", w.Code, w.Body.String())
	}

	// wrong method on known route → 405
	w = do(t, r, http.MethodDelete, "/players/1", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /players/1 = %d", w.Code)
	}
}

func TestRegisterRoutes_ListPopulatesAndCaches(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var feedHits atomic.Int64
	feedSrv := newFeedServer(t, 12, &feedHits)

	r := gin.New()
	cache := RegisterRoutes(r, newTestDB(t), testConfig(feedSrv.URL, "http://ollama.invalid"))
	t.Cleanup(cache.Stop)

	// First listing populates from the feed.
	w := do(t, r, http.MethodGet, "/players?page=1&page_size=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /players = %d body=%s", w.Code, w.Body.String())
	}
	var page struct {
		Players      []map[string]any `json:"players"`
		TotalPlayers int64            `json:"total_players"`
		TotalPages   int              `json:"total_pages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Players) != 5 || page.TotalPlayers != 12 || page.TotalPages != 3 {
		t.Fatalf("page = %+v", page)
	}
	if feedHits.Load() != 1 {
		t.Fatalf("feed hits = %d", feedHits.Load())
	}
	first := append([]byte(nil), w.Body.Bytes()...)

	// Mutate a record. The cached listing must keep serving the old bytes.
	upd := []byte(`{"player_name":"Player 00","position":"CF","team":"NYM","hits":1}`)
	if w := do(t, r, http.MethodPut, "/players/1", upd); w.Code != http.StatusOK {
		t.Fatalf("PUT /players/1 = %d body=%s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/players?page=1&page_size=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat GET /players = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), first) {
		t.Fatal("cached listing changed after update")
	}
	// And the store was never asked to repopulate.
	if feedHits.Load() != 1 {
		t.Fatalf("feed hits after repeat = %d", feedHits.Load())
	}

	// A different page misses the cache and reflects the update.
	w = do(t, r, http.MethodGet, "/players?page=1&page_size=12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET full page = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"team":"NYM"`)) {
		t.Fatalf("update not visible on fresh page: %s", w.Body.String())
	}

	// Malformed pagination is rejected up front.
	if w := do(t, r, http.MethodGet, "/players?page=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("GET /players?page=abc = %d", w.Code)
	}
}

func TestRegisterRoutes_DescriptionEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var feedHits atomic.Int64
	feedSrv := newFeedServer(t, 2, &feedHits)

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/chat" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"A disciplined center fielder."}}`))
	}))
	t.Cleanup(ollama.Close)

	r := gin.New()
	cache := RegisterRoutes(r, newTestDB(t), testConfig(feedSrv.URL, ollama.URL))
	t.Cleanup(cache.Stop)

	// Populate via listing first.
	if w := do(t, r, http.MethodGet, "/players", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /players = %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/player/1/description", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET description = %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["description"] != "A disciplined center fielder." {
		t.Fatalf("description = %q", body["description"])
	}

	// Unknown player → 404 envelope.
	w = do(t, r, http.MethodGet, "/player/999/description", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET missing description = %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig("http://feed.invalid", "http://ollama.invalid")
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	r := gin.New()
	cache := RegisterRoutes(r, newTestDB(t), cfg)
	t.Cleanup(cache.Stop)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allowlisted origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "http://evil.example" {
		t.Fatalf("disallowed origin echoed: %q", got)
	}
}
