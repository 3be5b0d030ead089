package models

// GORM models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchQuery is one served /search-articles request.
type SearchQuery struct {
	BaseModel
	QueryText       string    `json:"query_text" gorm:"not null"`
	NormalizedQuery string    `json:"normalized_query" gorm:"not null"`
	ResultLimit     int       `json:"result_limit"`
	ResultsCount    int       `json:"results_count"`
	CacheHit        bool      `json:"cache_hit"`
	SearchTimestamp time.Time `json:"search_timestamp" gorm:"index"`
	ResponseTimeMs  int       `json:"response_time_ms"`
	RequestID       string    `json:"request_id" gorm:"size:64"`
	UserAgent       string    `json:"user_agent"`
	IPAddress       string    `json:"ip_address" gorm:"size:64"`
}

type SearchQueryRepository interface {
	Create(query *SearchQuery) error
	GetRecentSearches(limit int) ([]SearchQuery, error)
	CountSince(since time.Time) (int64, error)
}

func (SearchQuery) TableName() string { return "search_queries" }

func (sq *SearchQuery) Validate() error {
	if sq.QueryText == "" {
		return fmt.Errorf("query text is required")
	}
	if sq.ResultLimit <= 0 {
		return fmt.Errorf("result limit must be positive")
	}
	if sq.ResponseTimeMs < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	return nil
}

// GORM hooks
func (sq *SearchQuery) BeforeCreate(tx *gorm.DB) error {
	if sq.SearchTimestamp.IsZero() {
		sq.SearchTimestamp = time.Now().UTC()
	}
	return sq.Validate()
}
