package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgentActionKind classifies an audited agent or user action.
type AgentActionKind string

const (
	ActionCreateMandate  AgentActionKind = "create_mandate"
	ActionApproveMandate AgentActionKind = "approve_mandate"
	ActionSuspendMandate AgentActionKind = "suspend_mandate"
	ActionRevokeMandate  AgentActionKind = "revoke_mandate"
	ActionCartOperation  AgentActionKind = "cart_operation"
	ActionIntentCreate   AgentActionKind = "intent_create"
	ActionPaymentExecute AgentActionKind = "payment_execute"
	ActionRotateKeys     AgentActionKind = "rotate_keys"
)

// AgentAction is one audit-trail entry for an agent acting under a mandate
// or a user managing a mandate.
type AgentAction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	MandateID *uuid.UUID      `json:"mandate_id,omitempty"`
	Action    AgentActionKind `json:"action"`
	Details   string          `json:"details,omitempty"` // JSON string
	Success   bool            `json:"success"`
	CreatedAt time.Time       `json:"created_at"`
}
