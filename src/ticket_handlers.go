package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"

	"tixgate/src/db"
	"tixgate/src/models"
	"tixgate/src/types"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var ticket models.Ticket
			gdb := db.GetDb()
			err := gdb.
				Preload("TicketType").
				Where("id = ? AND owner_id = ?", params.ID, userId).
				First(&ticket).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.Status(http.StatusNotFound)
				return
			}
			if err != nil {
				log.Printf("Error retrieving Ticket %d: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		GET("/tickets/:id/code", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			gdb := db.GetDb()
			var ticket models.Ticket
			err := gdb.
				Where("id = ? AND owner_id = ?", params.ID, userId).
				First(&ticket).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.Status(http.StatusNotFound)
				return
			}
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			code, err := apiIssuer.ScanCode(gdb, &ticket)
			if err != nil {
				var verr *types.ValidationError
				if errors.As(err, &verr) {
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error deriving scan code for Ticket %d: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			if ctx.Query("render") != "qr" {
				ctx.JSON(http.StatusOK, gin.H{"code": code})
				return
			}
			qrc, err := qrcode.New(code)
			if err != nil {
				log.Printf("Could not build qrcode for Ticket %d: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			if tempdir == "" {
				tempdir = os.TempDir()
			}
			filepath := path.Join(tempdir, fmt.Sprintf("ticket-%d.jpeg", ticket.ID))
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			ctx.File(filepath)
		}).
		DELETE("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			gdb := db.GetDb()
			var ticket models.Ticket
			err := gdb.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where("id = ? AND owner_id = ?", params.ID, userId).
					First(&ticket).Error; err != nil {
					return err
				}
				// An admitted ticket keeps its seat.
				res := tx.Model(&models.Ticket{}).
					Where("id = ? AND status = ? AND used = ?", ticket.ID, types.TICKET_ISSUED, false).
					Update("status", types.TICKET_REMOVED)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return types.NewValidationError("ticket %d cannot be removed", ticket.ID)
				}
				return apiLedger.Release(tx, ticket.TicketTypeID, 1)
			})
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.Status(http.StatusNotFound)
				return
			}
			if err != nil {
				var verr *types.ValidationError
				if errors.As(err, &verr) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error removing Ticket %d: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			var tt models.TicketType
			if err := gdb.First(&tt, ticket.TicketTypeID).Error; err == nil {
				apiCache.InvalidateTicketType(ctx, tt.EventID, tt.ID)
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
