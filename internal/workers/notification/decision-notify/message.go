// internal/workers/notification/decision-notify/message.go
package decisionnotify

import (
	"fmt"

	"ymfb-workers/internal/models"
)

// buildSubject returns the email subject line for a decision.
func buildSubject(n *models.DecisionNotification) string {
	switch n.Status {
	case "approved":
		return fmt.Sprintf("Your application %s has been approved", n.ApplicationNumber)
	case "declined":
		return fmt.Sprintf("Update on your application %s", n.ApplicationNumber)
	default:
		return fmt.Sprintf("Your application %s needs further review", n.ApplicationNumber)
	}
}

// buildBody returns the long-form message used for email.
func buildBody(n *models.DecisionNotification) string {
	greeting := fmt.Sprintf("Dear %s,\n\n", n.FullName)

	switch n.Status {
	case "approved":
		if n.ApplicationKind == "loan" && n.ApprovedAmount != nil {
			return greeting + fmt.Sprintf(
				"Congratulations! Your loan application %s has been approved for ₦%.2f. "+
					"Our team will contact you with disbursement details.\n\nYakasai Microfinance Bank",
				n.ApplicationNumber, *n.ApprovedAmount)
		}
		return greeting + fmt.Sprintf(
			"Congratulations! Your application %s has been approved.\n\nYakasai Microfinance Bank",
			n.ApplicationNumber)

	case "declined":
		msg := greeting + fmt.Sprintf(
			"We regret to inform you that your application %s was not approved at this time.",
			n.ApplicationNumber)
		if n.DeclineReason != "" {
			msg += fmt.Sprintf(" Reason: %s.", n.DeclineReason)
		}
		return msg + "\n\nYakasai Microfinance Bank"

	default:
		return greeting + fmt.Sprintf(
			"Your application %s requires further review. We will notify you once a decision is made.\n\n"+
				"Yakasai Microfinance Bank",
			n.ApplicationNumber)
	}
}

// buildSMS returns the short-form message for SNS. SMS segments are 160
// characters, so this stays deliberately terse.
func buildSMS(n *models.DecisionNotification) string {
	switch n.Status {
	case "approved":
		if n.ApplicationKind == "loan" && n.ApprovedAmount != nil {
			return fmt.Sprintf("YMFB: application %s approved for N%.0f.", n.ApplicationNumber, *n.ApprovedAmount)
		}
		return fmt.Sprintf("YMFB: application %s approved.", n.ApplicationNumber)
	case "declined":
		return fmt.Sprintf("YMFB: application %s was not approved. Check your email for details.", n.ApplicationNumber)
	default:
		return fmt.Sprintf("YMFB: application %s is under further review.", n.ApplicationNumber)
	}
}
