package service

import "github.com/quecocinohoy/backend/internal/models"

// StatusDecision is what a gateway status means for premium access.
type StatusDecision string

const (
	DecisionGrant  StatusDecision = "grant"
	DecisionRevoke StatusDecision = "revoke"
	DecisionIgnore StatusDecision = "ignore"
)

// ResolveStatus maps every gateway status string to a decision. Statuses this
// service does not know are ignored.
func ResolveStatus(status string) StatusDecision {
	switch status {
	case models.StatusAuthorized, models.StatusActive:
		return DecisionGrant
	case models.StatusCancelled, models.StatusPaused:
		return DecisionRevoke
	default:
		return DecisionIgnore
	}
}
