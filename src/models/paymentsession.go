package models

import (
	"time"

	"tixgate/src/types"

	"github.com/google/uuid"
)

// PaymentSession correlates an external gateway checkout with the exact
// purchase request that was priced when it was opened. It is never
// deleted: the row doubles as the idempotency record for fulfillment.
//
// FulfilledAt transitions null to non-null at most once per session; a
// non-null value means the order's tickets exist. ReconcileError records
// a paid session whose fulfillment failed (operator-visible, never
// retried automatically).
type PaymentSession struct {
	SessionID      string                 `gorm:"primarykey" json:"session_id"`
	Status         types.SessionStatus    `gorm:"default:'pending'" json:"status"`
	Snapshot       types.PurchaseSnapshot `gorm:"type:jsonb" json:"-"`
	AmountTotal    int64                  `json:"amount_total"`
	Currency       string                 `json:"currency,omitempty"`
	CheckoutURL    string                 `json:"checkout_url,omitempty"`
	ExpiresAt      time.Time              `json:"expires_at"`
	FulfilledAt    *time.Time             `json:"fulfilled_at,omitempty"`
	OrderID        *uuid.UUID             `gorm:"type:uuid" json:"order_id,omitempty"`
	ReconcileError *string                `json:"reconcile_error,omitempty"`

	types.Timestamps
}
