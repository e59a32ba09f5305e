// internal/workers/notification/decision-notify/models.go
package decisionnotify

import "ymfb-workers/internal/models"

// Input is the committed decision to relay to the applicant.
type Input struct {
	models.DecisionNotification
}

// Output reports which channels the notification went out on.
type Output struct {
	ApplicationID  string `json:"applicationId"`
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	PortalNotified bool   `json:"portalNotified"`
	NotifiedAt     string `json:"notifiedAt"`
}
