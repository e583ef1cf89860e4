package main

import (
	"net/http"

	"tixgate/src/types"

	"github.com/gin-gonic/gin"
)

func checkoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkout", func(ctx *gin.Context) {
			var body types.PurchaseRequest
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			body.BuyerID = ctx.GetUint("id")
			if body.Email == "" {
				body.Email = ctx.GetString("email")
			}
			session, err := apiReconciler.OpenSession(ctx, &body)
			if err != nil {
				respondPurchaseError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"session_id":   session.SessionID,
				"checkout_url": session.CheckoutURL,
				"amount_total": session.AmountTotal,
				"currency":     session.Currency,
				"expires_at":   session.ExpiresAt,
			})
		}).
		GET("/checkout/sessions/:id", func(ctx *gin.Context) {
			var params types.SessionURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			res, err := apiReconciler.StatusPoll(ctx, params.SessionID)
			if err != nil {
				respondPurchaseError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		})
	return g
}
