// Package search owns the Elasticsearch projection of loan applications:
// the index name, the document shape, and the write path. Postgres stays the
// system of record; the index is rebuilt opportunistically on every decision.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// IndexName is the Elasticsearch index holding loan application documents.
const IndexName = "loan_applications"

// Document is the searchable projection of a loan application.
type Document struct {
	ID                string   `json:"id"`
	ApplicationNumber string   `json:"application_number"`
	UserID            string   `json:"user_id"`
	FullName          string   `json:"full_name"`
	Phone             string   `json:"phone"`
	Ministry          string   `json:"ministry"`
	Amount            float64  `json:"amount"`
	Status            string   `json:"status"`
	ApprovedAmount    *float64 `json:"approved_amount,omitempty"`
	DeclineReason     *string  `json:"decline_reason,omitempty"`
	UpdatedAt         string   `json:"updated_at"`
}

// NewDocument projects an application record into its index document.
func NewDocument(app *models.LoanApplication) *Document {
	return &Document{
		ID:                app.ID,
		ApplicationNumber: app.ApplicationNumber,
		UserID:            app.UserID,
		FullName:          app.FullName,
		Phone:             app.Phone,
		Ministry:          app.Ministry,
		Amount:            app.Amount,
		Status:            string(app.Status),
		ApprovedAmount:    app.ApprovedAmount,
		DeclineReason:     app.DeclineReason,
		UpdatedAt:         app.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// IndexApplication upserts the application's document. Indexing is best
// effort: the database write has already committed, so failures are logged
// and swallowed; the next decision on the application re-indexes it.
func IndexApplication(ctx context.Context, es *elasticsearch.Client, app *models.LoanApplication, log logger.Logger) {
	if es == nil {
		return
	}

	doc := NewDocument(app)
	body, err := json.Marshal(doc)
	if err != nil {
		log.Warn("failed to marshal search document", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return
	}

	res, err := es.Index(
		IndexName,
		bytes.NewReader(body),
		es.Index.WithDocumentID(app.ID),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		log.Warn("failed to index application", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Warn("search index rejected document", map[string]interface{}{
			"applicationId": app.ID,
			"status":        res.Status(),
		})
	}
}

// BuildQuery assembles the Elasticsearch query body for the portal's
// application search: free text over name/number/phone plus optional filters.
func BuildQuery(text, status, ministry string, size int) ([]byte, error) {
	must := []map[string]interface{}{}
	if text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"full_name^2", "application_number", "phone"},
			},
		})
	}

	filter := []map[string]interface{}{}
	if status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": status},
		})
	}
	if ministry != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"ministry": ministry},
		})
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []map[string]interface{}{
			{"updated_at": map[string]interface{}{"order": "desc"}},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}
	return body, nil
}
