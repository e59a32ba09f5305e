// internal/workers/loan/loan-submit/models.go
package loansubmit

// Input identifies the draft to finalize.
type Input struct {
	ApplicationID string `json:"applicationId"`
}

// Output reports the transition result.
type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	ApplicationStatus string `json:"applicationStatus"`
	SubmittedAt       string `json:"submittedAt"`
}

// applicationPayload is the subset of the stored draft that submission
// validates before the draft becomes reviewable.
type applicationPayload struct {
	FullName    string  `json:"fullName"`
	Phone       string  `json:"phone"`
	Ministry    string  `json:"ministry"`
	EmployeeID  string  `json:"employeeId"`
	BVN         string  `json:"bvn"`
	NIN         string  `json:"nin"`
	Address     string  `json:"address"`
	Amount      float64 `json:"amount"`
	Period      int     `json:"period"`
	Purpose     string  `json:"purpose"`
	AccountType string  `json:"accountType"`
}
