package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// PriceAggregator produces price records for product identifiers
type PriceAggregator interface {
	Aggregate(ctx context.Context, upc string) (*domain.PriceRecord, error)
	AggregateMany(ctx context.Context, upcs []string) []*domain.PriceRecord
}

// PriceComparer renders price records into comparison rows
type PriceComparer interface {
	ParseQuery(search, sortBy, direction string) (usecase.Query, error)
	Compare(records []*domain.PriceRecord, q usecase.Query) []domain.ComparisonRow
	Retailers() []domain.RetailerConfig
}

// HandlerConfig holds request limits for the price endpoints
type HandlerConfig struct {
	DefaultUPC string
	MaxBatch   int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	aggregator PriceAggregator
	comparer   PriceComparer
	cfg        HandlerConfig
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. Nil services make their endpoints
// answer 501.
func NewHandler(aggregator PriceAggregator, comparer PriceComparer, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 20
	}
	return &Handler{
		aggregator: aggregator,
		comparer:   comparer,
		cfg:        cfg,
		logger:     logger,
	}
}

// ScrapeRequest is the body of POST /api/v1/prices/scrape
type ScrapeRequest struct {
	UPC string `json:"upc"`
}

// BatchRequest is the body of POST /api/v1/prices/batch
type BatchRequest struct {
	UPCs []string `json:"upcs" binding:"required,min=1"`
}

// CompareRequest is the body of POST /api/v1/prices/compare
type CompareRequest struct {
	UPCs      []string `json:"upcs"`
	Search    string   `json:"search"`
	SortBy    string   `json:"sortBy"`
	Direction string   `json:"direction"`
}

// RetailerColumn describes one retailer column of the comparison view
type RetailerColumn struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Baseline bool   `json:"baseline"`
}

// CompareResponse is the body returned by POST /api/v1/prices/compare
type CompareResponse struct {
	Rows      []domain.ComparisonRow `json:"rows"`
	Retailers []RetailerColumn       `json:"retailers"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": Version,
	})
}

// ScrapePrices aggregates one product across all retailers
func (h *Handler) ScrapePrices(c *gin.Context) {
	if h.aggregator == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price aggregation is not configured"})
		return
	}

	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.UPC == "" {
		req.UPC = h.cfg.DefaultUPC
	}

	record, err := h.aggregator.Aggregate(c.Request.Context(), req.UPC)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ScrapeBatch aggregates several products
func (h *Handler) ScrapeBatch(c *gin.Context) {
	if h.aggregator == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price aggregation is not configured"})
		return
	}

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if len(req.UPCs) > h.cfg.MaxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d upcs per request", h.cfg.MaxBatch)})
		return
	}

	records := h.aggregator.AggregateMany(c.Request.Context(), req.UPCs)
	c.JSON(http.StatusOK, gin.H{"results": records})
}

// ComparePrices aggregates products and returns a sorted, filtered comparison view
func (h *Handler) ComparePrices(c *gin.Context) {
	if h.aggregator == nil || h.comparer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "price comparison is not configured"})
		return
	}

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if len(req.UPCs) == 0 {
		req.UPCs = []string{h.cfg.DefaultUPC}
	}
	if len(req.UPCs) > h.cfg.MaxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d upcs per request", h.cfg.MaxBatch)})
		return
	}

	query, err := h.comparer.ParseQuery(req.Search, req.SortBy, req.Direction)
	if err != nil {
		h.respondError(c, err)
		return
	}

	records := h.aggregator.AggregateMany(c.Request.Context(), req.UPCs)

	retailers := h.comparer.Retailers()
	columns := make([]RetailerColumn, 0, len(retailers))
	for _, rc := range retailers {
		columns = append(columns, RetailerColumn{Key: rc.Key, Name: rc.Name, Baseline: rc.Baseline})
	}

	c.JSON(http.StatusOK, CompareResponse{
		Rows:      h.comparer.Compare(records, query),
		Retailers: columns,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier),
		errors.Is(err, domain.ErrInvalidSortKey),
		errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		h.logger.Error("http.handler_failed",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
