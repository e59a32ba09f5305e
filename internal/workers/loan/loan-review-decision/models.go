// internal/workers/loan/loan-review-decision/models.go
package loanreviewdecision

// Input is one reviewer's action on a loan application.
type Input struct {
	ApplicationID  string   `json:"applicationId"`
	ReviewerRole   string   `json:"reviewerRole"`
	Action         string   `json:"action"`
	Notes          string   `json:"notes,omitempty"`
	DeclineReason  string   `json:"declineReason,omitempty"`
	ApprovedAmount *float64 `json:"approvedAmount,omitempty"`
	DecidedBy      string   `json:"decidedBy"`
}

// Output reports the application state after the decision was applied.
type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	ApplicationStatus string `json:"applicationStatus"`
	ReviewerRole      string `json:"reviewerRole"`
	Action            string `json:"action"`
	ApprovalCount     int    `json:"approvalCount"`
	DecidedAt         string `json:"decidedAt"`
}
