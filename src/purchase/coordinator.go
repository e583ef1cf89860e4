package purchase

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"tixgate/src/cache"
	"tixgate/src/config"
	"tixgate/src/inventory"
	"tixgate/src/issuer"
	"tixgate/src/lib/mailer"
	"tixgate/src/models"
	"tixgate/src/monitoring"
	"tixgate/src/types"
	"tixgate/src/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coordinator drives the purchase flow: validate and price the request,
// then reserve capacity and mint tickets in a single transaction. It is
// the only writer of orders in the system; both the immediate purchase
// endpoint and the payment reconciler fulfill through it.
type Coordinator struct {
	db       *gorm.DB
	ledger   *inventory.Ledger
	issuer   *issuer.Issuer
	cache    *cache.Cache
	notifier mailer.Notifier
}

func New(db *gorm.DB, ledger *inventory.Ledger, iss *issuer.Issuer, rc *cache.Cache, notifier mailer.Notifier) *Coordinator {
	return &Coordinator{db: db, ledger: ledger, issuer: iss, cache: rc, notifier: notifier}
}

// Line is one priced ticket-type selection of a quote.
type Line struct {
	TicketTypeID uint
	Name         string
	Qty          uint
	UnitPrice    int64
	Attendees    []types.AttendeeDetails
	AddOns       []types.IssuedAddOn
	Amount       int64
}

// Quote is a fully validated, fully priced purchase request. Lines are
// ordered by ascending ticket type id; reservations follow that order so
// two overlapping purchases always lock rows the same way.
type Quote struct {
	Event       models.Event
	Lines       []Line
	AmountTotal int64
	Currency    string
}

type Result struct {
	OrderID     uuid.UUID
	Tickets     []models.Ticket
	AmountTotal int64
	Currency    string
}

// Price validates req against the catalog and computes the total in
// minor currency units. It reserves nothing and is safe to call for
// display purposes.
func (c *Coordinator) Price(ctx context.Context, req *types.PurchaseRequest) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, types.NewValidationError("purchase must include at least one item")
	}

	var event models.Event
	err := c.db.WithContext(ctx).
		Preload("TicketTypes").
		Preload("AddOns").
		Where("id = ?", req.EventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewValidationError("unknown event %d", req.EventID)
	}
	if err != nil {
		return nil, &types.StorageFaultError{Err: err}
	}
	if !event.SalesOpen(time.Now()) {
		return nil, types.NewValidationError("sales for event %d are closed", req.EventID)
	}

	ticketTypes := make(map[uint]models.TicketType, len(event.TicketTypes))
	for _, tt := range event.TicketTypes {
		ticketTypes[tt.ID] = tt
	}
	addOns := make(map[uint]models.AddOn, len(event.AddOns))
	var required []models.AddOn
	for _, a := range event.AddOns {
		addOns[a.ID] = a
		if a.Required {
			required = append(required, a)
		}
	}

	quote := &Quote{Event: event, Currency: event.Currency}
	for _, item := range req.Items {
		tt, ok := ticketTypes[item.TicketTypeID]
		if !ok {
			return nil, types.NewValidationError("ticket type %d does not belong to event %d", item.TicketTypeID, req.EventID)
		}
		if tt.Status != types.TICKET_TYPE_OPEN {
			return nil, types.NewValidationError("ticket type %d is not on sale", item.TicketTypeID)
		}
		if item.Qty == 0 {
			return nil, types.NewValidationError("quantity for ticket type %d must be at least 1", item.TicketTypeID)
		}
		if len(item.Attendees) > 0 && uint(len(item.Attendees)) != item.Qty {
			return nil, types.NewValidationError("ticket type %d: got %d attendees for %d tickets", item.TicketTypeID, len(item.Attendees), item.Qty)
		}

		line := Line{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			Qty:          item.Qty,
			UnitPrice:    tt.UnitPrice,
			Attendees:    item.Attendees,
			Amount:       tt.UnitPrice * int64(item.Qty),
		}
		selected := make(map[uint]bool, len(item.AddOns))
		for _, sel := range item.AddOns {
			addOn, ok := addOns[sel.AddOnID]
			if !ok {
				return nil, types.NewValidationError("add-on %d does not belong to event %d", sel.AddOnID, req.EventID)
			}
			if selected[sel.AddOnID] {
				return nil, types.NewValidationError("add-on %d selected twice", sel.AddOnID)
			}
			selected[sel.AddOnID] = true
			if addOn.MaxQty > 0 && sel.Qty > addOn.MaxQty {
				return nil, types.NewValidationError("add-on %d allows at most %d per selection", sel.AddOnID, addOn.MaxQty)
			}
			line.AddOns = append(line.AddOns, types.IssuedAddOn{
				AddOnID:   addOn.ID,
				Name:      addOn.Name,
				UnitPrice: addOn.UnitPrice,
				Qty:       sel.Qty,
			})
			line.Amount += addOn.UnitPrice * int64(sel.Qty)
		}
		for _, r := range required {
			if !selected[r.ID] {
				return nil, types.NewValidationError("add-on %q is required for this event", r.Name)
			}
		}
		quote.Lines = append(quote.Lines, line)
		quote.AmountTotal += line.Amount
	}

	sort.Slice(quote.Lines, func(i, j int) bool {
		return quote.Lines[i].TicketTypeID < quote.Lines[j].TicketTypeID
	})
	return quote, nil
}

// Purchase prices req and fulfills it atomically: every line reserved
// and every ticket minted, or nothing. sessionID links the tickets to a
// payment session when fulfillment runs on behalf of the reconciler.
func (c *Coordinator) Purchase(ctx context.Context, req *types.PurchaseRequest, sessionID *string) (*Result, error) {
	quote, err := c.Price(ctx, req)
	if err != nil {
		monitoring.ReservationsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	result := &Result{
		OrderID:     uuid.New(),
		AmountTotal: quote.AmountTotal,
		Currency:    quote.Currency,
	}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range quote.Lines {
			if err := c.ledger.Reserve(tx, line.TicketTypeID, line.Qty); err != nil {
				return err
			}
		}
		for _, line := range quote.Lines {
			tickets, err := c.issuer.Issue(tx, issuer.IssueInput{
				OrderID:          result.OrderID,
				TicketTypeID:     line.TicketTypeID,
				OwnerID:          req.BuyerID,
				UnitPrice:        line.UnitPrice,
				Currency:         quote.Currency,
				PaymentSessionID: sessionID,
				Qty:              line.Qty,
				Attendees:        line.Attendees,
				AddOns:           line.AddOns,
			})
			if err != nil {
				return err
			}
			result.Tickets = append(result.Tickets, tickets...)
		}
		return nil
	})
	if err != nil {
		monitoring.ReservationsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, wrapTxError(err)
	}

	monitoring.ReservationsTotal.WithLabelValues("ok").Inc()
	monitoring.TicketsIssued.Add(float64(len(result.Tickets)))
	c.afterPurchase(quote, result, req.Email)
	return result, nil
}

// afterPurchase runs the best-effort side effects of a committed order.
// None of them can fail the purchase.
func (c *Coordinator) afterPurchase(quote *Quote, result *Result, email string) {
	if c.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, line := range quote.Lines {
			c.cache.InvalidateTicketType(ctx, quote.Event.ID, line.TicketTypeID)
		}
	}

	go func() {
		if err := models.TicketsIssuedProducer(map[string]any{
			"order_id":     result.OrderID.String(),
			"event_id":     quote.Event.ID,
			"ticket_count": len(result.Tickets),
			"amount_total": result.AmountTotal,
			"currency":     result.Currency,
		}); err != nil {
			log.Printf("[purchase] producer error for order %s: %s\n", result.OrderID, err.Error())
		}
	}()

	if c.notifier != nil && email != "" {
		go func() {
			exponent := config.CurrencyExponent(result.Currency)
			total := utils.FormatPrice(result.AmountTotal, exponent)
			if err := c.notifier.OrderConfirmation(email, result.OrderID.String(), quote.Event.Title, len(result.Tickets), total); err != nil {
				log.Printf("[purchase] confirmation mail for order %s failed: %s\n", result.OrderID, err.Error())
			}
		}()
	}
}

// wrapTxError keeps domain errors intact and wraps everything else as a
// storage fault so callers see a rolled-back, retryable failure.
func wrapTxError(err error) error {
	var (
		insufficient *types.InsufficientCapacityError
		verr         *types.ValidationError
		sfault       *types.StorageFaultError
	)
	if errors.As(err, &insufficient) || errors.As(err, &verr) || errors.As(err, &sfault) {
		return err
	}
	return &types.StorageFaultError{Err: err}
}

func resultLabel(err error) string {
	var (
		insufficient *types.InsufficientCapacityError
		verr         *types.ValidationError
	)
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_capacity"
	case errors.As(err, &verr):
		return "validation"
	default:
		return "storage_fault"
	}
}
