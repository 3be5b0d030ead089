package services

import (
	"context"
	"fmt"

	"github.com/litscout/backend/internal/eutils"
	"github.com/litscout/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SortRelevance is the esearch sort order used for every lookup.
const SortRelevance = "relevance"

// LiteratureClient is the subset of the E-utilities client the lookup
// pipeline needs.
type LiteratureClient interface {
	Search(ctx context.Context, req eutils.SearchRequest) (*eutils.ESearchResponse, error)
	Summary(ctx context.Context, ids []string) (*eutils.ESummaryResponse, error)
}

type ArticleService struct {
	client LiteratureClient
	logger *logrus.Logger
}

func NewArticleService(client LiteratureClient, logger *logrus.Logger) *ArticleService {
	return &ArticleService{
		client: client,
		logger: logger,
	}
}

// Lookup resolves an already normalized query into article records. The
// esearch identifier order is kept; identifiers without a summary entry
// are dropped, and badly typed summary fields are left unset. An empty identifier list short-circuits to
// models.EmptySearchResponse without calling esummary.
func (s *ArticleService) Lookup(ctx context.Context, effectiveQuery string, limit int) (*models.SearchResponse, error) {
	s.logger.WithFields(logrus.Fields{
		"term":  effectiveQuery,
		"limit": limit,
	}).Debug("Starting article lookup")

	search, err := s.client.Search(ctx, eutils.SearchRequest{
		Term:   effectiveQuery,
		RetMax: limit,
		Sort:   SortRelevance,
	})
	if err != nil {
		return nil, fmt.Errorf("identifier search failed: %w", err)
	}

	pmids := search.IDs()
	if len(pmids) == 0 {
		s.logger.WithField("term", effectiveQuery).Info("Identifier search returned no results")
		return models.EmptySearchResponse(), nil
	}

	summary, err := s.client.Summary(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("summary lookup failed: %w", err)
	}

	articles := make([]models.ArticleRecord, 0, len(pmids))
	for _, pmid := range pmids {
		doc := summary.Document(pmid)
		if doc == nil {
			s.logger.WithField("pmid", pmid).Debug("No summary for identifier, skipping")
			continue
		}
		articles = append(articles, toArticleRecord(pmid, doc))
	}

	s.logger.WithFields(logrus.Fields{
		"identifiers": len(pmids),
		"articles":    len(articles),
	}).Debug("Article lookup completed")

	return &models.SearchResponse{Articles: articles}, nil
}

func toArticleRecord(pmid string, doc *eutils.DocumentSummary) models.ArticleRecord {
	authors := make([]models.Author, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		authors = append(authors, models.Author{
			Name:      a.Name,
			AuthType:  a.AuthType,
			ClusterID: a.ClusterID,
		})
	}

	return models.ArticleRecord{
		PMID:    pmid,
		Title:   doc.Title,
		Authors: authors,
		Journal: doc.FullJournalName,
		PubDate: doc.PubDate,
		Source:  fmt.Sprintf(models.SourceURLTemplate, pmid),
	}
}
