package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"tixgate/src/types"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

// constructEvent is swapped out in tests to skip signature generation.
var constructEvent = func(payload []byte, header, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, header, secret)
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := constructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)

		var status types.SessionStatus
		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded":
			status = types.SESSION_PAID
		case "checkout.session.async_payment_failed":
			status = types.SESSION_FAILED
		case "checkout.session.expired":
			status = types.SESSION_EXPIRED
		default:
			// Not a checkout lifecycle event; acknowledge and move on.
			ctx.Status(http.StatusOK)
			return
		}

		sessionID := gjson.GetBytes(event.Data.Raw, "id").String()
		if sessionID == "" {
			log.Printf("[Stripe] %s event carries no session id\n", event.Type)
			ctx.Status(http.StatusBadRequest)
			return
		}
		// A completed event can still be unpaid on async payment methods.
		if status == types.SESSION_PAID {
			paymentStatus := gjson.GetBytes(event.Data.Raw, "payment_status").String()
			if paymentStatus != "" && paymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) &&
				paymentStatus != string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired) {
				log.Printf("[Stripe] session %s completed but %s, awaiting payment\n", sessionID, paymentStatus)
				ctx.Status(http.StatusOK)
				return
			}
		}

		res, err := apiReconciler.Confirm(ctx, sessionID, status)
		switch {
		case err == nil:
			ctx.JSON(http.StatusOK, gin.H{"session_id": res.SessionID, "fulfilled": res.Fulfilled})
		case errors.Is(err, types.ErrNotPaid):
			// Recorded; nothing to fulfill.
			ctx.Status(http.StatusOK)
		case errors.Is(err, types.ErrUnknownSession):
			// Sessions opened by other systems on the same Stripe account.
			log.Printf("[Stripe] ignoring unknown session %s\n", sessionID)
			ctx.Status(http.StatusOK)
		default:
			var conflict *types.FulfillmentConflictError
			if errors.As(err, &conflict) {
				// Acknowledged so Stripe stops retrying; the session is
				// flagged for an operator.
				log.Printf("[Stripe] session %s conflicted: %s\n", sessionID, conflict.Reason)
				ctx.JSON(http.StatusOK, gin.H{"session_id": sessionID, "conflict": true})
				return
			}
			// Storage faults get a retry from Stripe.
			log.Printf("[Stripe] confirm failed for session %s: %s\n", sessionID, err.Error())
			ctx.Status(http.StatusServiceUnavailable)
		}
	})
	return apiv1
}
