// internal/workers/loan/loan-search/models.go
package loansearch

import "ymfb-workers/internal/search"

// Input carries the portal's search parameters.
type Input struct {
	Query    string `json:"query,omitempty"`
	Status   string `json:"status,omitempty"`
	Ministry string `json:"ministry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Output is the result page, flagged when served from cache.
type Output struct {
	Results   []search.Document `json:"results"`
	Total     int               `json:"total"`
	FromCache bool              `json:"fromCache"`
}
