package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tixgate/src/gateway"
	"tixgate/src/models"
	"tixgate/src/monitoring"
	"tixgate/src/purchase"
	"tixgate/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSessionTTL is how long a buyer gets to complete a hosted
// checkout before the session is swept.
const DefaultSessionTTL = 30 * time.Minute

// PurchaseCoordinator is the slice of the purchase package the
// reconciler fulfills through.
type PurchaseCoordinator interface {
	Price(ctx context.Context, req *types.PurchaseRequest) (*purchase.Quote, error)
	Purchase(ctx context.Context, req *types.PurchaseRequest, sessionID *string) (*purchase.Result, error)
}

// Reconciler owns the payment session lifecycle: open a hosted checkout
// against a priced snapshot, then turn at-least-once gateway
// notifications into exactly-once fulfillment. Seats are not held while
// a session is pending; capacity is only taken when payment confirms.
type Reconciler struct {
	db          *gorm.DB
	coordinator PurchaseCoordinator
	gateway     gateway.Checkout
	ttl         time.Duration

	locks sync.Map
}

func New(db *gorm.DB, coordinator PurchaseCoordinator, gw gateway.Checkout) *Reconciler {
	return &Reconciler{db: db, coordinator: coordinator, gateway: gw, ttl: DefaultSessionTTL}
}

func NewWithTTL(db *gorm.DB, coordinator PurchaseCoordinator, gw gateway.Checkout, ttl time.Duration) *Reconciler {
	return &Reconciler{db: db, coordinator: coordinator, gateway: gw, ttl: ttl}
}

type FulfillResult struct {
	SessionID string              `json:"session_id"`
	Status    types.SessionStatus `json:"status"`
	Fulfilled bool                `json:"fulfilled"`
	OrderID   *uuid.UUID          `json:"order_id,omitempty"`
	Tickets   []models.Ticket     `json:"tickets,omitempty"`
}

// OpenSession prices req, opens a hosted checkout for the total, and
// persists the request snapshot keyed by the gateway session id. Exactly
// this snapshot is fulfilled when payment confirms, regardless of any
// price changes in between.
func (r *Reconciler) OpenSession(ctx context.Context, req *types.PurchaseRequest) (*models.PaymentSession, error) {
	quote, err := r.coordinator.Price(ctx, req)
	if err != nil {
		return nil, err
	}

	items := make([]gateway.LineItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		items = append(items, gateway.LineItem{
			Name:       fmt.Sprintf("%s - %s", quote.Event.Title, line.Name),
			Qty:        line.Qty,
			UnitAmount: line.UnitPrice,
		})
		for _, addOn := range line.AddOns {
			items = append(items, gateway.LineItem{
				Name:       addOn.Name,
				Qty:        addOn.Qty,
				UnitAmount: addOn.UnitPrice,
			})
		}
	}

	sess, err := r.gateway.CreateSession(ctx, gateway.SessionInput{
		Currency:  quote.Currency,
		Items:     items,
		Email:     req.Email,
		ExpiresAt: time.Now().Add(r.ttl),
		Metadata: map[string]string{
			"event_id": fmt.Sprint(req.EventID),
			"buyer_id": fmt.Sprint(req.BuyerID),
		},
	})
	if err != nil {
		return nil, err
	}

	session := &models.PaymentSession{
		SessionID:   sess.ID,
		Status:      types.SESSION_PENDING,
		Snapshot:    types.PurchaseSnapshot(*req),
		AmountTotal: quote.AmountTotal,
		Currency:    quote.Currency,
		CheckoutURL: sess.CheckoutURL,
		ExpiresAt:   sess.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, &types.StorageFaultError{Err: err}
	}
	log.Printf("[reconcile] opened session %s for event %d, total %d %s\n", sess.ID, req.EventID, quote.AmountTotal, quote.Currency)
	return session, nil
}

// Confirm applies a gateway-reported status to a session. For a paid
// status it fulfills the stored snapshot exactly once; every later paid
// confirmation returns the same order. Non-paid statuses are recorded
// and reported via ErrNotPaid.
func (r *Reconciler) Confirm(ctx context.Context, sessionID string, externalStatus types.SessionStatus) (*FulfillResult, error) {
	mu := r.lockFor(sessionID)
	mu.Lock()
	res, err := r.confirmLocked(ctx, sessionID, externalStatus)
	mu.Unlock()

	var conflict *types.FulfillmentConflictError
	if (res != nil && res.Fulfilled) || errors.As(err, &conflict) {
		// Terminal outcome, the per-session lock will never be contended
		// again usefully.
		r.locks.Delete(sessionID)
	}
	return res, err
}

func (r *Reconciler) confirmLocked(ctx context.Context, sessionID string, externalStatus types.SessionStatus) (*FulfillResult, error) {
	var session models.PaymentSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrUnknownSession
	}
	if err != nil {
		return nil, &types.StorageFaultError{Err: err}
	}

	if session.FulfilledAt != nil {
		monitoring.FulfillmentsTotal.WithLabelValues("duplicate").Inc()
		return r.fulfilledResult(ctx, &session)
	}
	if session.ReconcileError != nil {
		return nil, &types.FulfillmentConflictError{SessionID: sessionID, Reason: *session.ReconcileError}
	}

	if externalStatus != types.SESSION_PAID {
		return nil, r.recordNotPaid(ctx, &session, externalStatus)
	}

	switch session.Status {
	case types.SESSION_EXPIRED:
		// Paid after the expiry sweep already closed the session. The
		// snapshot's price and availability guarantees are gone, so this
		// goes to an operator instead of silently minting tickets.
		return nil, r.markConflict(ctx, sessionID, "payment arrived after session expiry")
	case types.SESSION_FAILED:
		// Failed is terminal. A paid notification landing afterwards means
		// the money took the slow path; an operator decides, no tickets.
		return nil, r.markConflict(ctx, sessionID, "payment arrived after a failed confirmation")
	}

	claim := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("session_id = ? AND fulfilled_at IS NULL AND reconcile_error IS NULL", sessionID).
		Updates(map[string]any{
			"status":       types.SESSION_PAID,
			"fulfilled_at": time.Now(),
		})
	if claim.Error != nil {
		return nil, &types.StorageFaultError{Err: claim.Error}
	}
	if claim.RowsAffected == 0 {
		// Another process got here first. Wait for its outcome and
		// return that instead of a transient conflict.
		return r.awaitOutcome(ctx, sessionID)
	}

	snapshot := types.PurchaseRequest(session.Snapshot)
	result, err := r.coordinator.Purchase(ctx, &snapshot, &sessionID)
	if err != nil {
		// Paid money, no tickets. Release the claim, pin the error and
		// leave the session for operator reconciliation. It is never
		// retried into a second ticket set automatically.
		log.Printf("[reconcile] fulfillment of paid session %s failed: %s\n", sessionID, err.Error())
		return nil, r.markConflict(ctx, sessionID, err.Error())
	}

	update := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("session_id = ?", sessionID).
		Update("order_id", result.OrderID)
	if update.Error != nil {
		log.Printf("[reconcile] failed to record order %s on session %s: %s\n", result.OrderID, sessionID, update.Error.Error())
	}

	monitoring.FulfillmentsTotal.WithLabelValues("ok").Inc()
	log.Printf("[reconcile] session %s fulfilled as order %s (%d tickets)\n", sessionID, result.OrderID, len(result.Tickets))
	return &FulfillResult{
		SessionID: sessionID,
		Status:    types.SESSION_PAID,
		Fulfilled: true,
		OrderID:   &result.OrderID,
		Tickets:   result.Tickets,
	}, nil
}

// StatusPoll resolves the current state of a session for the buyer-facing
// poll endpoint. A pending session is checked against the gateway so a
// lost webhook cannot strand a paid buyer.
func (r *Reconciler) StatusPoll(ctx context.Context, sessionID string) (*FulfillResult, error) {
	var session models.PaymentSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrUnknownSession
	}
	if err != nil {
		return nil, &types.StorageFaultError{Err: err}
	}
	if session.FulfilledAt != nil {
		return r.fulfilledResult(ctx, &session)
	}
	if session.Status != types.SESSION_PENDING {
		return &FulfillResult{SessionID: sessionID, Status: session.Status}, nil
	}

	external, err := r.gateway.SessionStatus(ctx, sessionID)
	if err != nil {
		log.Printf("[reconcile] gateway poll for session %s failed: %s\n", sessionID, err.Error())
		return &FulfillResult{SessionID: sessionID, Status: session.Status}, nil
	}
	res, err := r.Confirm(ctx, sessionID, external)
	if errors.Is(err, types.ErrNotPaid) {
		var refreshed models.PaymentSession
		if e := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&refreshed).Error; e == nil {
			return &FulfillResult{SessionID: sessionID, Status: refreshed.Status}, nil
		}
		return &FulfillResult{SessionID: sessionID, Status: session.Status}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExpireStale sweeps pending sessions past their deadline. Nothing is
// released because pending sessions hold no capacity.
func (r *Reconciler) ExpireStale(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("status = ? AND expires_at < ?", types.SESSION_PENDING, time.Now()).
		Update("status", types.SESSION_EXPIRED)
	if res.Error != nil {
		return 0, &types.StorageFaultError{Err: res.Error}
	}
	if res.RowsAffected > 0 {
		log.Printf("[reconcile] expired %d stale payment sessions\n", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// awaitOutcome polls a session another process has claimed until that
// process records an order or a reconcile error. An order id only
// appears after the winner's purchase transaction committed, so a
// fulfilled result from here always carries the full ticket set.
func (r *Reconciler) awaitOutcome(ctx context.Context, sessionID string) (*FulfillResult, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(10 * time.Second)

	for {
		var session models.PaymentSession
		if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error; err != nil {
			return nil, &types.StorageFaultError{Err: err}
		}
		if session.FulfilledAt != nil && session.OrderID != nil {
			monitoring.FulfillmentsTotal.WithLabelValues("duplicate").Inc()
			return r.fulfilledResult(ctx, &session)
		}
		if session.ReconcileError != nil {
			return nil, &types.FulfillmentConflictError{SessionID: sessionID, Reason: *session.ReconcileError}
		}
		if time.Now().After(deadline) {
			return nil, &types.FulfillmentConflictError{SessionID: sessionID, Reason: "fulfillment claimed elsewhere"}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) lockFor(sessionID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (r *Reconciler) fulfilledResult(ctx context.Context, session *models.PaymentSession) (*FulfillResult, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("payment_session_id = ?", session.SessionID).
		Order("id ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, &types.StorageFaultError{Err: err}
	}
	return &FulfillResult{
		SessionID: session.SessionID,
		Status:    session.Status,
		Fulfilled: true,
		OrderID:   session.OrderID,
		Tickets:   tickets,
	}, nil
}

func (r *Reconciler) recordNotPaid(ctx context.Context, session *models.PaymentSession, externalStatus types.SessionStatus) error {
	if session.Status == types.SESSION_PENDING && (externalStatus == types.SESSION_FAILED || externalStatus == types.SESSION_EXPIRED) {
		res := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
			Where("session_id = ? AND status = ?", session.SessionID, types.SESSION_PENDING).
			Update("status", externalStatus)
		if res.Error != nil {
			return &types.StorageFaultError{Err: res.Error}
		}
	}
	return types.ErrNotPaid
}

func (r *Reconciler) markConflict(ctx context.Context, sessionID, reason string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":          types.SESSION_PAID,
			"fulfilled_at":    nil,
			"reconcile_error": reason,
		})
	if res.Error != nil {
		log.Printf("[reconcile] failed to mark session %s conflicted: %s\n", sessionID, res.Error.Error())
	}
	monitoring.FulfillmentsTotal.WithLabelValues("conflict").Inc()
	return &types.FulfillmentConflictError{SessionID: sessionID, Reason: reason}
}
