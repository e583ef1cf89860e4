package main

import (
	"errors"
	"log"
	"net/http"

	"tixgate/src/db"
	"tixgate/src/models"
	"tixgate/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondPurchaseError maps purchase-path errors onto the API surface.
// Capacity losses are conflicts, bad requests are unprocessable, and a
// rolled-back storage fault tells the client to retry.
func respondPurchaseError(ctx *gin.Context, err error) {
	var (
		insufficient *types.InsufficientCapacityError
		verr         *types.ValidationError
		conflict     *types.FulfillmentConflictError
	)
	switch {
	case errors.As(err, &insufficient):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"ticket_type_id": insufficient.TicketTypeID,
			"requested":      insufficient.Requested,
			"available":      insufficient.Available,
		})
	case errors.As(err, &verr):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session_id": conflict.SessionID})
	case errors.Is(err, types.ErrUnknownSession):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("purchase path error: %s\n", err.Error())
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary storage fault, retry the request"})
	}
}

func purchaseHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/purchases", func(ctx *gin.Context) {
			var body types.PurchaseRequest
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			body.BuyerID = ctx.GetUint("id")
			result, err := apiCoordinator.Purchase(ctx, &body, nil)
			if err != nil {
				respondPurchaseError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"order_id":     result.OrderID,
				"amount_total": result.AmountTotal,
				"currency":     result.Currency,
				"tickets":      result.Tickets,
			})
		}).
		POST("/purchases/quote", func(ctx *gin.Context) {
			var body types.PurchaseRequest
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			quote, err := apiCoordinator.Price(ctx, &body)
			if err != nil {
				respondPurchaseError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"amount_total": quote.AmountTotal,
				"currency":     quote.Currency,
			})
		}).
		GET("/orders/:id/tickets", func(ctx *gin.Context) {
			var params types.OrderURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			orderID, err := uuid.Parse(params.OrderID)
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var tickets []models.Ticket
			gdb := db.GetDb()
			if err := gdb.
				Where("order_id = ? AND owner_id = ?", orderID, userId).
				Order("id asc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets for order %s: %s\n", orderID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if len(tickets) == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		})
	return g
}
