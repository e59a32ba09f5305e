// internal/workers/account/account-review-decision/models.go
package accountreviewdecision

// Input is one reviewer's decision on an account-opening application.
type Input struct {
	ApplicationID string `json:"applicationId"`
	ReviewerRole  string `json:"reviewerRole"`
	Action        string `json:"action"`
	Notes         string `json:"notes,omitempty"`
	ReviewedBy    string `json:"reviewedBy"`
}

// Output reports the application state after the decision.
type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	ApplicationStatus string `json:"applicationStatus"`
	ReviewedAt        string `json:"reviewedAt"`
}
