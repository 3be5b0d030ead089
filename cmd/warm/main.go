// Command warm pre-populates the Redis response cache for a list of
// queries so the first user request for each is served without an
// E-utilities round trip.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/litscout/backend/internal/api/handlers"
	"github.com/litscout/backend/internal/config"
	"github.com/litscout/backend/internal/database"
	"github.com/litscout/backend/internal/eutils"
	"github.com/litscout/backend/internal/services"
	"github.com/litscout/backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

type queryList []string

func (q *queryList) String() string { return strings.Join(*q, "; ") }

func (q *queryList) Set(value string) error {
	*q = append(*q, value)
	return nil
}

var (
	queries   queryList
	queryFile = flag.String("file", "", "File with one query per line (# starts a comment)")
	limit     = flag.Int("limit", 0, "Result limit to warm (0 = configured default)")
	refresh   = flag.Bool("refresh", false, "Drop existing cache entries before fetching")
	delay     = flag.Duration("delay", 400*time.Millisecond, "Pause between queries")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Var(&queries, "query", "Query to warm (repeatable)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		utils.GetLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logger := utils.NewLogger(cfg.Log.Level)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if !cfg.CacheEnabled() {
		logger.Fatal("REDIS_URL is required to warm the cache")
	}
	if cfg.Cache.TTL <= 0 {
		logger.Fatal("CACHE_TTL must be positive to warm the cache; the server does not cache with it unset")
	}

	if *queryFile != "" {
		fromFile, err := readQueries(*queryFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to read query file")
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		logger.Fatal("No queries given; use -query or -file")
	}

	resultLimit := *limit
	if resultLimit <= 0 {
		resultLimit = cfg.PubMed.DefaultLimit
	}
	if resultLimit > cfg.PubMed.MaxLimit {
		resultLimit = cfg.PubMed.MaxLimit
	}

	dbManager, err := database.NewManager(&database.Config{
		RedisURL: cfg.Redis.URL,
		LogLevel: cfg.Log.Level,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer dbManager.Close()

	cache := database.NewCache(dbManager.Redis, logger)
	client := eutils.NewClient(cfg.PubMed.BaseURL, cfg.PubMed.Timeout, logger,
		eutils.WithIdentity(cfg.PubMed.APIKey, cfg.PubMed.Email, cfg.PubMed.Tool),
	)
	articleService := services.NewArticleService(client, logger)

	warmer := &cacheWarmer{
		search: articleService,
		cache:  cache,
		logger: logger,
		limit:  resultLimit,
		ttl:    cfg.Cache.TTL,
	}

	ctx := context.Background()
	failed := 0
	for i, query := range queries {
		if i > 0 && *delay > 0 {
			time.Sleep(*delay)
		}

		logger.WithFields(logrus.Fields{
			"query":    query,
			"progress": fmt.Sprintf("%d/%d", i+1, len(queries)),
		}).Info("Warming query")

		if err := warmer.warm(ctx, query, *refresh); err != nil {
			failed++
			logger.WithError(err).WithField("query", query).Error("Failed to warm query")
		}
	}

	logger.WithFields(logrus.Fields{
		"total":  len(queries),
		"failed": failed,
	}).Info("Cache warming completed")

	if failed > 0 {
		os.Exit(1)
	}
}

// responseStore is satisfied by database.Cache.
type responseStore interface {
	handlers.ResponseCache
	InvalidateSearchCache(ctx context.Context, key string) error
}

type cacheWarmer struct {
	search handlers.ArticleSearcher
	cache  responseStore
	logger *logrus.Logger
	limit  int
	ttl    time.Duration
}

// errCachingDisabled matches the search route, which never stores a
// response when the TTL is not positive.
var errCachingDisabled = errors.New("cache ttl is not positive")

func (w *cacheWarmer) warm(ctx context.Context, query string, refresh bool) error {
	if w.ttl <= 0 {
		return errCachingDisabled
	}

	normalized := services.Normalize(query)
	key := handlers.CacheKey(normalized, w.limit)

	if refresh {
		if err := w.cache.InvalidateSearchCache(ctx, key); err != nil {
			return fmt.Errorf("failed to invalidate cache entry: %w", err)
		}
	} else if _, err := w.cache.GetCachedSearchResponse(ctx, key); err == nil {
		w.logger.WithField("term", normalized).Debug("Already cached, skipping")
		return nil
	}

	response, err := w.search.Lookup(ctx, normalized, w.limit)
	if err != nil {
		return err
	}

	if err := w.cache.CacheSearchResponse(ctx, key, response, w.ttl); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"term":     normalized,
		"articles": len(response.Articles),
	}).Info("Cached search response")
	return nil
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
