package boot

import (
	"context"
	"log"
	"time"

	"tixgate/src/db"
	"tixgate/src/lib"
	"tixgate/src/models"
	"tixgate/src/reconcile"
	"tixgate/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Event{},
		&models.TicketType{},
		&models.AddOn{},
		&models.Ticket{},
		&models.Admission{},
		&models.PaymentSession{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the periodic maintenance jobs: sweeping stale
// payment sessions and closing events past their sales deadline.
func InitScheduler(reconciler *reconcile.Reconciler) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}

	j, err := sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := reconciler.ExpireStale(ctx); err != nil {
				log.Printf("Error sweeping payment sessions: %s\n", err.Error())
			}
		}),
	)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s %s\n", j.Name(), j.ID().String())

	j, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(CloseElapsedEvents),
	)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s %s\n", j.Name(), j.ID().String())

	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}

// CloseElapsedEvents moves open events whose deadline has passed to
// closed so listings and purchases stop offering them.
func CloseElapsedEvents() {
	db := db.GetDb()
	res := db.Model(&models.Event{}).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", types.EVENT_OPEN, time.Now()).
		Update("status", types.EVENT_CLOSED)
	if res.Error != nil {
		log.Printf("Error closing elapsed events: %s\n", res.Error.Error())
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Closed %d elapsed events\n", res.RowsAffected)
	}
}
