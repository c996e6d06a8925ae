package audit

import (
	"time"

	id "verity/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing: compliance events need
// tamper-proof storage and long retention, operations events can be
// sampled.
type EventCategory string

const (
	CategoryCompliance EventCategory = "compliance"
	CategorySecurity   EventCategory = "security"
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time       `json:"timestamp"`
	SessionID    id.SessionID    `json:"session_id,omitempty"`
	OrderID      id.OrderID      `json:"order_id,omitempty"`
	CustomerID   id.CustomerID   `json:"customer_id,omitempty"`
	Jurisdiction id.Jurisdiction `json:"jurisdiction,omitempty"`
	Action       Action          `json:"action"`
	Decision     string          `json:"decision,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
}

// Action names an auditable action.
type Action string

const (
	// Session lifecycle
	ActionSessionInitiated Action = "session_initiated"
	ActionDocumentUploaded Action = "document_uploaded"
	ActionSelfieUploaded   Action = "selfie_uploaded"
	ActionSessionCompleted Action = "session_completed"
	ActionSessionFailed    Action = "session_failed"
	ActionSessionExpired   Action = "session_expired"
	ActionLateExtraction   Action = "late_extraction_recorded"

	// Compliance
	ActionComplianceChecked  Action = "compliance_checked"
	ActionReportGenerated    Action = "compliance_report_generated"
	ActionControlledDispense Action = "controlled_dispense_reported"

	// Delivery handoff
	ActionDeliveryVerified Action = "delivery_verified"
	ActionDeliveryRejected Action = "delivery_rejected"

	// Abuse signals
	ActionSuspiciousActivity Action = "suspicious_activity_flagged"
)

// actionCategories maps each action to its category. Compliance actions
// require tamper-proof storage; security actions feed alerting; operations
// actions are routine activity.
var actionCategories = map[Action]EventCategory{
	ActionSessionInitiated: CategoryOperations,
	ActionDocumentUploaded: CategoryOperations,
	ActionSelfieUploaded:   CategoryOperations,
	ActionSessionCompleted: CategoryCompliance,
	ActionSessionFailed:    CategoryCompliance,
	ActionSessionExpired:   CategoryOperations,
	ActionLateExtraction:   CategoryCompliance,

	ActionComplianceChecked:  CategoryCompliance,
	ActionReportGenerated:    CategoryCompliance,
	ActionControlledDispense: CategoryCompliance,

	ActionDeliveryVerified: CategoryCompliance,
	ActionDeliveryRejected: CategoryCompliance,

	ActionSuspiciousActivity: CategorySecurity,
}

// Category returns the EventCategory for this action. Unknown actions
// default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
