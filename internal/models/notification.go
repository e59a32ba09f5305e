package models

// DecisionNotification carries what the applicant is told after a review
// decision. The decision itself is already committed when this is sent.
type DecisionNotification struct {
	ApplicationID     string   `json:"applicationId"`
	ApplicationNumber string   `json:"applicationNumber"`
	ApplicationKind   string   `json:"applicationKind"` // "loan" or "account"
	FullName          string   `json:"fullName"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Status            string   `json:"status"`
	ApprovedAmount    *float64 `json:"approvedAmount,omitempty"`
	DeclineReason     string   `json:"declineReason,omitempty"`
}
