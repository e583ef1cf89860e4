package models

import (
	"log"
	"os"

	"tixgate/src/lib"
	"tixgate/src/types"

	"github.com/google/uuid"
)

// Ticket is one admitted unit. Rows are created exclusively by the
// issuer and only ever leave through the removal/refund path, which
// restores ledger capacity. ScanCode is unique per unit.
type Ticket struct {
	ID               uint             `gorm:"primarykey" json:"id"`
	OrderID          uuid.UUID        `gorm:"type:uuid;index" json:"order_id"`
	TicketTypeID     uint             `gorm:"index" json:"ticket_type_id"`
	OwnerID          uint             `json:"owner_id,omitempty"`
	AttendeeName     string           `json:"attendee_name,omitempty"`
	AttendeeEmail    string           `json:"attendee_email,omitempty"`
	UnitPrice        int64            `json:"unit_price"`
	Currency         string           `json:"currency,omitempty"`
	AddOns           types.JSONBArray `gorm:"type:jsonb" json:"add_ons,omitempty"`
	ScanCode         string           `gorm:"uniqueIndex" json:"-"`
	Used             bool             `json:"used"`
	Status           types.TicketStatus `gorm:"default:'issued'" json:"status,omitempty"`
	PaymentSessionID *string          `gorm:"index" json:"payment_session_id,omitempty"`

	TicketType TicketType `json:"ticket_type,omitempty"`

	types.Timestamps
}

// Admission is the audit record of a scan-code verification at the venue.
type Admission struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TicketID uint   `gorm:"index" json:"ticket_id,omitempty"`
	Gate     string `json:"gate,omitempty"`

	Ticket Ticket `json:"ticket,omitempty"`

	types.Timestamps
}

// TicketsIssuedProducer announces a completed issuance for downstream
// consumers (wallet passes, analytics). Best-effort: a missing broker is
// logged and ignored.
func TicketsIssuedProducer(payload map[string]any) error {
	if os.Getenv("KAFKA_BROKER") == "" {
		return nil
	}
	err := lib.KafkaProduceMessage("tickets_issued_producer", "tickets-issued", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
