// internal/workers/auth/admin-login/models.go
package adminlogin

// Input is one admin login attempt from the portal.
type Input struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Output is returned only on successful authentication; failed attempts
// surface as BPMN errors with the verdict's message.
type Output struct {
	Phone         string `json:"phone"`
	Role          string `json:"role"`
	DisplayName   string `json:"displayName"`
	Authenticated bool   `json:"authenticated"`
}
