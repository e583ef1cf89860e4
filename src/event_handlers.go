package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"tixgate/src/cache"
	"tixgate/src/config"
	"tixgate/src/db"
	"tixgate/src/models"
	"tixgate/src/types"
	"tixgate/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const openEventsCacheKey = "events:open"

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			datetime, err := time.Parse(config.TIME_PARSE_FORMAT, body.DateTime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			deadline, err := time.Parse(config.TIME_PARSE_FORMAT, body.Deadline)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			currency := body.Currency
			if currency == "" {
				currency = config.DefaultCurrency()
			}
			status := types.EVENT_DRAFT
			if body.Publish {
				status = types.EVENT_OPEN
			}
			event := models.Event{
				Title:       body.Title,
				Slug:        slug.Make(body.Title),
				About:       body.About,
				Location:    body.Location,
				DateTime:    &datetime,
				Deadline:    &deadline,
				Status:      status,
				Currency:    currency,
				OrganizerID: ctx.GetUint("id"),
			}
			gdb := db.GetDb()
			if err := gdb.Create(&event).Error; err != nil {
				log.Printf("Error creating Event: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			apiCache.Invalidate(ctx, openEventsCacheKey)
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		PATCH("/events/:id/status", func(ctx *gin.Context) {
			var body struct {
				NewStatus *types.EventStatus `json:"new_status" binding:"required"`
			}
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			gdb := db.GetDb()
			res := gdb.Model(&models.Event{}).
				Where("id = ?", params.ID).
				Update("status", *body.NewStatus)
			if res.Error != nil {
				log.Printf("Error updating Event %d: %s\n", params.ID, res.Error.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			apiCache.Invalidate(ctx, openEventsCacheKey, cache.EventKey(params.ID), cache.EventTicketTypesKey(params.ID))
			ctx.Status(http.StatusNoContent)
		}).
		POST("/ticket_types", func(ctx *gin.Context) {
			var body types.CreateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			gdb := db.GetDb()
			var event models.Event
			if err := gdb.Where("id = ?", body.EventID).First(&event).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			price, err := utils.ParsePrice(body.Price, config.CurrencyExponent(event.Currency))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticketType := models.TicketType{
				EventID:        event.ID,
				Name:           body.Name,
				Status:         types.TICKET_TYPE_OPEN,
				Capacity:       body.Capacity,
				AvailableCount: body.Capacity,
				UnitPrice:      price,
			}
			if err := gdb.Create(&ticketType).Error; err != nil {
				log.Printf("Error creating TicketType: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			apiCache.InvalidateTicketType(ctx, event.ID, ticketType.ID)
			ctx.JSON(http.StatusCreated, gin.H{"data": ticketType})
		}).
		POST("/add_ons", func(ctx *gin.Context) {
			var body types.CreateAddOnRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			gdb := db.GetDb()
			var event models.Event
			if err := gdb.Where("id = ?", body.EventID).First(&event).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			price, err := utils.ParsePrice(body.Price, config.CurrencyExponent(event.Currency))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			addOn := models.AddOn{
				EventID:   event.ID,
				Name:      body.Name,
				UnitPrice: price,
				MaxQty:    body.MaxQty,
				Required:  body.Required,
			}
			if err := gdb.Create(&addOn).Error; err != nil {
				log.Printf("Error creating AddOn: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			apiCache.Invalidate(ctx, cache.EventKey(event.ID))
			ctx.JSON(http.StatusCreated, gin.H{"data": addOn})
		})
	return g
}

func eventReadHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			hit, err := apiCache.Get(ctx, openEventsCacheKey, &events)
			if err != nil {
				log.Printf("Cache error on %s: %s\n", openEventsCacheKey, err.Error())
			}
			if !hit {
				gdb := db.GetDb()
				if err := gdb.
					Where("status = ?", types.EVENT_OPEN).
					Order("date_time asc").
					Find(&events).Error; err != nil {
					log.Printf("Error retrieving Events: %s\n", err.Error())
					ctx.Status(http.StatusBadRequest)
					return
				}
				if err := apiCache.Set(ctx, openEventsCacheKey, events); err != nil {
					log.Printf("Cache error on %s: %s\n", openEventsCacheKey, err.Error())
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			key := cache.EventKey(params.ID)
			var event models.Event
			hit, err := apiCache.Get(ctx, key, &event)
			if err != nil {
				log.Printf("Cache error on %s: %s\n", key, err.Error())
			}
			if !hit {
				gdb := db.GetDb()
				err := gdb.
					Preload("AddOns").
					Where("id = ?", params.ID).
					First(&event).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				if err != nil {
					log.Printf("Error retrieving Event %d: %s\n", params.ID, err.Error())
					ctx.Status(http.StatusBadRequest)
					return
				}
				if err := apiCache.Set(ctx, key, event); err != nil {
					log.Printf("Cache error on %s: %s\n", key, err.Error())
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		GET("/events/:id/ticket_types", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			key := cache.EventTicketTypesKey(params.ID)
			var ticketTypes []models.TicketType
			hit, err := apiCache.Get(ctx, key, &ticketTypes)
			if err != nil {
				log.Printf("Cache error on %s: %s\n", key, err.Error())
			}
			if !hit {
				gdb := db.GetDb()
				if err := gdb.
					Where("event_id = ?", params.ID).
					Order("id asc").
					Find(&ticketTypes).Error; err != nil {
					log.Printf("Error retrieving TicketTypes for Event %d: %s\n", params.ID, err.Error())
					ctx.Status(http.StatusBadRequest)
					return
				}
				if err := apiCache.Set(ctx, key, ticketTypes); err != nil {
					log.Printf("Cache error on %s: %s\n", key, err.Error())
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticketTypes})
		})
	return g
}
