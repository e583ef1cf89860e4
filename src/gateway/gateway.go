package gateway

import (
	"context"
	"time"

	"tixgate/src/types"
)

// LineItem is one priced row on a hosted checkout page. UnitAmount is in
// integer minor currency units.
type LineItem struct {
	Name       string
	Qty        uint
	UnitAmount int64
}

type SessionInput struct {
	Currency  string
	Items     []LineItem
	Email     string
	ExpiresAt time.Time
	Metadata  map[string]string
}

type Session struct {
	ID          string
	CheckoutURL string
	ExpiresAt   time.Time
}

// Checkout is the slice of a payment gateway the reconciler needs:
// opening a hosted session and polling its payment status. The webhook
// path bypasses this interface entirely.
type Checkout interface {
	CreateSession(ctx context.Context, in SessionInput) (*Session, error)
	SessionStatus(ctx context.Context, sessionID string) (types.SessionStatus, error)
}
