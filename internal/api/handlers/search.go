package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/litscout/backend/internal/database"
	"github.com/litscout/backend/internal/eutils"
	"github.com/litscout/backend/internal/metrics"
	"github.com/litscout/backend/internal/middleware"
	"github.com/litscout/backend/internal/models"
	"github.com/litscout/backend/internal/services"
	"github.com/litscout/backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	MsgMissingQuery    = "Missing 'query' parameter"
	MsgInvalidLimit    = "Invalid 'limit' parameter"
	MsgUpstreamFailed  = "Upstream search service failed"
	MsgUpstreamTimeout = "Upstream search service timed out"
	MsgHistoryFailed   = "Failed to load search history"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ArticleSearcher runs the lookup pipeline for a normalized query.
type ArticleSearcher interface {
	Lookup(ctx context.Context, effectiveQuery string, limit int) (*models.SearchResponse, error)
}

// ResponseCache is satisfied by database.Cache.
type ResponseCache interface {
	GetCachedSearchResponse(ctx context.Context, key string) (*models.SearchResponse, error)
	CacheSearchResponse(ctx context.Context, key string, resp *models.SearchResponse, expiration time.Duration) error
}

type Options struct {
	DefaultLimit int
	MaxLimit     int
	CacheTTL     time.Duration
}

type SearchHandler struct {
	searchService ArticleSearcher
	cache         ResponseCache
	history       models.SearchQueryRepository
	metrics       *metrics.Metrics
	logger        *logrus.Logger
	opts          Options
}

// NewSearchHandler wires the search route. cache and history may be nil.
func NewSearchHandler(
	searchService ArticleSearcher,
	cache ResponseCache,
	history models.SearchQueryRepository,
	m *metrics.Metrics,
	logger *logrus.Logger,
	opts Options,
) *SearchHandler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &SearchHandler{
		searchService: searchService,
		cache:         cache,
		history:       history,
		metrics:       m,
		logger:        logger,
		opts:          opts,
	}
}

// CacheKey identifies a response by the term actually sent upstream and
// the result limit.
func CacheKey(normalizedQuery string, limit int) string {
	return utils.MD5Hash(fmt.Sprintf("%s|%d", normalizedQuery, limit))
}

// HandleSearchArticles serves GET /search-articles?query=&limit=
func (h *SearchHandler) HandleSearchArticles(c *gin.Context) {
	startTime := time.Now()

	rawQuery := c.Query("query")
	if strings.TrimSpace(rawQuery) == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, MsgMissingQuery)
		return
	}

	limit, ok := h.parseLimit(c.Query("limit"))
	if !ok {
		utils.ErrorResponse(c, http.StatusBadRequest, MsgInvalidLimit)
		return
	}

	normalized := services.Normalize(rawQuery)

	h.logger.WithFields(logrus.Fields{
		"query":      rawQuery,
		"term":       normalized,
		"limit":      limit,
		"request_id": middleware.GetRequestID(c),
	}).Info("Processing article search")

	ctx := c.Request.Context()
	cacheKey := CacheKey(normalized, limit)

	response, cacheHit := h.fromCache(ctx, cacheKey)
	if !cacheHit {
		var err error
		response, err = h.searchService.Lookup(ctx, normalized, limit)
		if err != nil {
			status, message := upstreamFailure(err)
			h.logger.WithError(err).WithFields(logrus.Fields{
				"term":   normalized,
				"status": status,
			}).Error("Article lookup failed")
			utils.ErrorResponse(c, status, message)
			return
		}
		h.toCache(ctx, cacheKey, response)
	}

	responseTime := time.Since(startTime)
	h.metrics.ObserveArticles(len(response.Articles))

	if h.history != nil {
		record := &models.SearchQuery{
			QueryText:       rawQuery,
			NormalizedQuery: normalized,
			ResultLimit:     limit,
			ResultsCount:    len(response.Articles),
			CacheHit:        cacheHit,
			SearchTimestamp: startTime.UTC(),
			ResponseTimeMs:  int(responseTime.Milliseconds()),
			RequestID:       middleware.GetRequestID(c),
			UserAgent:       c.GetHeader("User-Agent"),
			IPAddress:       c.ClientIP(),
		}
		go h.trackSearchQuery(record)
	}

	h.logger.WithFields(logrus.Fields{
		"results_count": len(response.Articles),
		"cache_hit":     cacheHit,
		"response_time": responseTime.Milliseconds(),
	}).Info("Article search completed")

	c.JSON(http.StatusOK, response)
}

// HandleSearchHistory serves GET /search-history?limit= with the newest
// searches first and the number recorded over the last day.
func (h *SearchHandler) HandleSearchHistory(c *gin.Context) {
	if h.history == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Search history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, MsgInvalidLimit)
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	queries, err := h.history.GetRecentSearches(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load search history")
		utils.ErrorResponse(c, http.StatusInternalServerError, MsgHistoryFailed)
		return
	}
	if queries == nil {
		queries = []models.SearchQuery{}
	}

	recent, err := h.history.CountSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		h.logger.WithError(err).Error("Failed to count recent searches")
		utils.ErrorResponse(c, http.StatusInternalServerError, MsgHistoryFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"searches": queries, "last_24h": recent})
}

// parseLimit applies the default for an absent value, rejects anything
// that is not a positive integer and clamps to MaxLimit.
func (h *SearchHandler) parseLimit(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.opts.DefaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > h.opts.MaxLimit {
		limit = h.opts.MaxLimit
	}
	return limit, true
}

func (h *SearchHandler) fromCache(ctx context.Context, key string) (*models.SearchResponse, bool) {
	if h.cache == nil {
		return nil, false
	}

	cached, err := h.cache.GetCachedSearchResponse(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrCacheMiss) {
			h.logger.WithError(err).Warn("Failed to read cached search response")
		}
		h.metrics.ObserveCache(false)
		return nil, false
	}

	h.metrics.ObserveCache(true)
	h.logger.Debug("Search response served from cache")
	return cached, true
}

func (h *SearchHandler) toCache(ctx context.Context, key string, response *models.SearchResponse) {
	if h.cache == nil || h.opts.CacheTTL <= 0 {
		return
	}
	if err := h.cache.CacheSearchResponse(ctx, key, response, h.opts.CacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache search response")
	}
}

func (h *SearchHandler) trackSearchQuery(record *models.SearchQuery) {
	if err := h.history.Create(record); err != nil {
		h.logger.WithError(err).Error("Failed to track search query")
	}
}

// upstreamFailure maps a lookup error to the status and message returned
// to the caller.
func upstreamFailure(err error) (int, string) {
	if eutils.IsTimeout(err) {
		return http.StatusGatewayTimeout, MsgUpstreamTimeout
	}
	return http.StatusBadGateway, MsgUpstreamFailed
}
