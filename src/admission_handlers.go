package main

import (
	"errors"
	"log"
	"net/http"

	"tixgate/src/db"
	"tixgate/src/models"
	"tixgate/src/monitoring"
	"tixgate/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func admissionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/admissions", func(ctx *gin.Context) {
			var body struct {
				Code string `json:"code" binding:"required"`
				Gate string `json:"gate,omitempty"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			payload, err := apiIssuer.Decode(body.Code)
			if err != nil {
				monitoring.AdmissionsTotal.WithLabelValues("rejected").Inc()
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}

			gdb := db.GetDb()
			var admission models.Admission
			err = gdb.Transaction(func(tx *gorm.DB) error {
				var ticket models.Ticket
				if err := tx.
					Where("id = ? AND scan_code = ?", payload.TicketID, body.Code).
					First(&ticket).Error; err != nil {
					return err
				}
				if ticket.Status != types.TICKET_ISSUED {
					return types.NewValidationError("ticket %d is no longer valid", ticket.ID)
				}
				// First scan wins; the guarded update turns a replayed
				// code into a conflict instead of a second admission.
				res := tx.Model(&models.Ticket{}).
					Where("id = ? AND used = ?", ticket.ID, false).
					Update("used", true)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return types.NewValidationError("ticket %d was already admitted", ticket.ID)
				}
				admission = models.Admission{TicketID: ticket.ID, Gate: body.Gate}
				return tx.Create(&admission).Error
			})
			if errors.Is(err, gorm.ErrRecordNotFound) {
				monitoring.AdmissionsTotal.WithLabelValues("rejected").Inc()
				ctx.Status(http.StatusNotFound)
				return
			}
			if err != nil {
				var verr *types.ValidationError
				if errors.As(err, &verr) {
					monitoring.AdmissionsTotal.WithLabelValues("rejected").Inc()
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error admitting ticket %d: %s\n", payload.TicketID, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			monitoring.AdmissionsTotal.WithLabelValues("ok").Inc()
			ctx.JSON(http.StatusCreated, gin.H{"data": admission})
		}).
		GET("/admissions", func(ctx *gin.Context) {
			var admissions []models.Admission
			gdb := db.GetDb()
			if err := gdb.
				Preload("Ticket").
				Order("created_at desc").
				Limit(100).
				Find(&admissions).Error; err != nil {
				log.Printf("Error retrieving Admissions: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": admissions})
		})
	return g
}
