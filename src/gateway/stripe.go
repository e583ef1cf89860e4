package gateway

import (
	"context"
	"log"
	"os"
	"time"

	"tixgate/src/types"

	"github.com/stripe/stripe-go/v82"
)

// StripeCheckout is the production Checkout implementation over hosted
// Stripe Checkout Sessions.
type StripeCheckout struct {
	sc *stripe.Client
}

func NewStripeCheckout(sc *stripe.Client) *StripeCheckout {
	return &StripeCheckout{sc: sc}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, in SessionInput) (*Session, error) {
	successUrl := os.Getenv("APP_HOST") + "/checkout/callback/success"
	createParams := stripe.CheckoutSessionCreateParams{
		SuccessURL: stripe.String(successUrl),
		UIMode:     stripe.String("hosted"),
		Mode:       stripe.String("payment"),
		Metadata:   in.Metadata,
	}
	if in.Email != "" {
		createParams.CustomerEmail = stripe.String(in.Email)
	}
	if !in.ExpiresAt.IsZero() {
		createParams.ExpiresAt = stripe.Int64(in.ExpiresAt.Unix())
	}
	lineItems := []*stripe.CheckoutSessionCreateLineItemParams{}
	for _, item := range in.Items {
		amount := item.UnitAmount
		// Stripe rejects zero-amount lines; complimentary items still
		// charge one minor unit.
		if amount < 1 {
			amount = 1
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(int64(item.Qty)),
		})
	}
	createParams.LineItems = lineItems

	checkoutSession, err := s.sc.V1CheckoutSessions.Create(ctx, &createParams)
	if err != nil {
		log.Printf("CreateSession failed: %s\n", err.Error())
		return nil, err
	}
	log.Printf("CheckoutSessionID: %s\n", checkoutSession.ID)
	return &Session{
		ID:          checkoutSession.ID,
		CheckoutURL: checkoutSession.URL,
		ExpiresAt:   time.Unix(checkoutSession.ExpiresAt, 0),
	}, nil
}

func (s *StripeCheckout) SessionStatus(ctx context.Context, sessionID string) (types.SessionStatus, error) {
	data, err := s.sc.V1CheckoutSessions.Retrieve(ctx, sessionID, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return "", err
	}
	return MapSessionStatus(data.Status, data.PaymentStatus), nil
}

// MapSessionStatus folds Stripe's two status fields into the single
// session state the reconciler tracks. Payment wins over lifecycle: a
// completed-and-paid session is paid even when Stripe later reports it
// expired from its own books.
func MapSessionStatus(status stripe.CheckoutSessionStatus, payment stripe.CheckoutSessionPaymentStatus) types.SessionStatus {
	if payment == stripe.CheckoutSessionPaymentStatusPaid || payment == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return types.SESSION_PAID
	}
	switch status {
	case stripe.CheckoutSessionStatusExpired:
		return types.SESSION_EXPIRED
	case stripe.CheckoutSessionStatusComplete:
		// Complete but unpaid happens on async payment methods that
		// later fail.
		return types.SESSION_FAILED
	default:
		return types.SESSION_PENDING
	}
}
