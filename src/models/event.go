package models

import (
	"time"

	"tixgate/src/types"
)

type Event struct {
	ID       uint              `json:"id"`
	Title    string            `json:"title,omitempty"`
	Slug     string            `json:"slug,omitempty"`
	About    *string           `json:"about,omitempty"`
	Location string            `json:"location,omitempty"`
	DateTime *time.Time        `json:"date_time,omitempty"`
	Deadline *time.Time        `json:"deadline,omitempty"`
	Status   types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	Currency string            `json:"currency,omitempty"`

	OrganizerID uint `json:"organizer_id,omitempty"`

	TicketTypes []TicketType `json:"ticket_types,omitempty"`
	AddOns      []AddOn      `json:"add_ons,omitempty"`

	types.Timestamps
}

// SalesOpen reports whether tickets for the event can currently be sold.
func (e *Event) SalesOpen(now time.Time) bool {
	if e.Status != types.EVENT_OPEN {
		return false
	}
	if e.Deadline != nil && now.After(*e.Deadline) {
		return false
	}
	return true
}
