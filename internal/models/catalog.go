package models

import (
	"time"

	"github.com/miradorstack/benford-lab/internal/catalog"
)

// CatalogStatus reports the session's catalog connection without exposing secrets.
type CatalogStatus struct {
	Connected      bool       `json:"connected"`
	Username       string     `json:"username,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RemainingCalls int        `json:"remaining_calls"`
	CallLimit      int        `json:"call_limit"`
}

// CatalogSearchResponse lists ranked datasets for a query.
type CatalogSearchResponse struct {
	Query    string            `json:"query"`
	Cached   bool              `json:"cached"`
	Datasets []catalog.Dataset `json:"datasets"`
}

// CatalogDownloadRequest selects one CSV file of a catalog dataset.
type CatalogDownloadRequest struct {
	Ref  string
	File string
}
