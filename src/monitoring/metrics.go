package monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tixgate_reservations_total",
		Help: "Purchase attempts by outcome.",
	}, []string{"result"})

	FulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tixgate_fulfillments_total",
		Help: "Payment session fulfillments by outcome.",
	}, []string{"result"})

	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tixgate_admissions_total",
		Help: "Gate scans by outcome.",
	}, []string{"result"})

	TicketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tixgate_tickets_issued_total",
		Help: "Individual tickets minted.",
	})
)

func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
