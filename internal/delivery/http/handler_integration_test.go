package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Firecrawl: config.FirecrawlConfig{APIKey: "test-api-key"},
		Cache:     config.CacheConfig{Type: "memory"},
	}
}

func testRetailers() []domain.RetailerConfig {
	return []domain.RetailerConfig{
		{Key: "maisonette", Name: "Maisonette", Baseline: true},
		{Key: "target", Name: "Target"},
		{Key: "cbkids", Name: "Crate & Kids"},
	}
}

// fakeAggregator answers with fixed prices and records the identifiers it saw
type fakeAggregator struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeAggregator) Aggregate(_ context.Context, upc string) (*domain.PriceRecord, error) {
	id, err := usecase.NormalizeIdentifier(upc)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.seen = append(f.seen, id)
	f.mu.Unlock()

	baseline := 207.20
	name := "Tumbling Mat, Ivory"
	if id != "734126195622" {
		name = "Play Couch " + id
	}
	return &domain.PriceRecord{
		ProductName:      name,
		Identifier:       id,
		BaselineRetailer: "maisonette",
		BaselinePrice:    &baseline,
		Prices:           map[string]float64{"maisonette": 207.20, "target": 255.99, "cbkids": 220.15},
		LastUpdated:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Source:           domain.SourceLive,
		RunID:            "run-1",
	}, nil
}

func (f *fakeAggregator) AggregateMany(ctx context.Context, upcs []string) []*domain.PriceRecord {
	var out []*domain.PriceRecord
	for _, upc := range upcs {
		if r, err := f.Aggregate(ctx, upc); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// setupTestRouter creates a test router. With configured=false the handler
// has no services and the price endpoints answer 501.
func setupTestRouter(configured bool) (*gin.Engine, *fakeAggregator) {
	agg := &fakeAggregator{}
	var handler *Handler
	if configured {
		handler = NewHandler(agg, usecase.NewComparisonService(testRetailers()), HandlerConfig{DefaultUPC: "734126195622", MaxBatch: 3}, nil)
	} else {
		handler = NewHandler(nil, nil, HandlerConfig{}, nil)
	}
	return SetupRouter(testConfig(), handler, nil), agg
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, "GET", "/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "pricelens-backend" {
			t.Errorf("service = %v, want pricelens-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router, _ := setupTestRouter(false)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			if w := doJSON(router, method, "/health", ""); w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(false)
	w := doJSON(router, "GET", "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestScrapeEndpoint(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, "POST", "/api/v1/prices/scrape", `{"upc":"1"}`)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Contains(t, w.Body.String(), "not configured")
	})

	t.Run("uses the default upc without a body", func(t *testing.T) {
		router, agg := setupTestRouter(true)
		w := doJSON(router, "POST", "/api/v1/prices/scrape", "")
		require.Equal(t, http.StatusOK, w.Code)

		var record domain.PriceRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, "734126195622", record.Identifier)
		assert.Equal(t, "Tumbling Mat, Ivory", record.ProductName)
		assert.Equal(t, 255.99, record.Prices["target"])
		assert.Equal(t, domain.SourceLive, record.Source)
		assert.Equal(t, []string{"734126195622"}, agg.seen)
	})

	t.Run("scrapes the requested upc", func(t *testing.T) {
		router, agg := setupTestRouter(true)
		w := doJSON(router, "POST", "/api/v1/prices/scrape", `{"upc":"000111"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"000111"}, agg.seen)
		assert.Contains(t, w.Body.String(), `"upc":"000111"`)
	})

	t.Run("blank upc is rejected", func(t *testing.T) {
		router, _ := setupTestRouter(true)
		w := doJSON(router, "POST", "/api/v1/prices/scrape", `{"upc":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		router, _ := setupTestRouter(true)
		w := doJSON(router, "POST", "/api/v1/prices/scrape", `{"upc":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBatchEndpoint(t *testing.T) {
	router, _ := setupTestRouter(true)

	t.Run("returns results in order", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/batch", `{"upcs":["111","222"]}`)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Results []domain.PriceRecord `json:"results"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Results, 2)
		assert.Equal(t, "111", body.Results[0].Identifier)
		assert.Equal(t, "222", body.Results[1].Identifier)
	})

	t.Run("requires upcs", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/batch", `{"upcs":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("enforces max batch", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/batch", `{"upcs":["1","2","3","4"]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "at most 3")
	})
}

func TestCompareEndpoint(t *testing.T) {
	router, _ := setupTestRouter(true)

	t.Run("filters, sorts and derives deltas", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/compare",
			`{"upcs":["734126195622","222","111"],"search":"couch","sortBy":"upc","direction":"desc"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var body CompareResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Rows, 2)
		assert.Equal(t, "222", body.Rows[0].Identifier)
		assert.Equal(t, "111", body.Rows[1].Identifier)

		require.Len(t, body.Retailers, 3)
		assert.True(t, body.Retailers[0].Baseline)

		target := body.Rows[0].Cells[1]
		assert.Equal(t, "target", target.Retailer)
		require.NotNil(t, target.Delta)
		assert.Equal(t, 23.5, target.Delta.Rounded)
	})

	t.Run("defaults to the default upc", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/compare", `{}`)
		require.Equal(t, http.StatusOK, w.Code)

		var body CompareResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Rows, 1)
		assert.Equal(t, "734126195622", body.Rows[0].Identifier)
	})

	t.Run("bad sort key", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/compare", `{"sortBy":"rating"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad direction", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/prices/compare", `{"direction":"up"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		unconfigured, _ := setupTestRouter(false)
		w := doJSON(unconfigured, "POST", "/api/v1/prices/compare", `{}`)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestPriceRoutes(t *testing.T) {
	router, _ := setupTestRouter(false)

	t.Run("validates HTTP method", func(t *testing.T) {
		for _, method := range []string{"GET", "PUT", "DELETE", "PATCH"} {
			if w := doJSON(router, method, "/api/v1/prices/scrape", ""); w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})

	t.Run("requires correct path", func(t *testing.T) {
		for _, path := range []string{"/api/v1/prices", "/api/v1/prices/", "/api/prices/scrape", "/prices/scrape"} {
			if w := doJSON(router, "POST", path, ""); w.Code != http.StatusNotFound {
				t.Errorf("Path %s: Status = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	router, _ := setupTestRouter(true)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, "true")
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("X-Request-ID header missing")
	}
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	router, _ := setupTestRouter(false)
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := doJSON(router, "GET", "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
