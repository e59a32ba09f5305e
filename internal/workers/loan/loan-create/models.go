// internal/workers/loan/loan-create/models.go
package loancreate

// Input holds the applicant's form data for a new draft application.
type Input struct {
	UserID      string  `json:"userId"`
	FullName    string  `json:"fullName"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
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

// Output identifies the created draft.
type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"`
}
