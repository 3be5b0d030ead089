package repository

import (
	"time"

	"github.com/litscout/backend/internal/models"
	"gorm.io/gorm"
)

// SearchQueryRepositoryImpl implements SearchQueryRepository
type SearchQueryRepositoryImpl struct {
	db *gorm.DB
}

func NewSearchQueryRepository(db *gorm.DB) models.SearchQueryRepository {
	return &SearchQueryRepositoryImpl{db: db}
}

func (r *SearchQueryRepositoryImpl) Create(query *models.SearchQuery) error {
	return r.db.Create(query).Error
}

func (r *SearchQueryRepositoryImpl) GetRecentSearches(limit int) ([]models.SearchQuery, error) {
	var queries []models.SearchQuery
	err := r.db.Order("search_timestamp DESC").
		Limit(limit).
		Find(&queries).Error
	return queries, err
}

func (r *SearchQueryRepositoryImpl) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.SearchQuery{}).
		Where("search_timestamp >= ?", since).
		Count(&count).Error
	return count, err
}

// RepositoryManager groups the repositories backed by one connection.
type RepositoryManager struct {
	SearchQuery models.SearchQueryRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		SearchQuery: NewSearchQueryRepository(db),
	}
}
