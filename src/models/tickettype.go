package models

import "tixgate/src/types"

// TicketType is a priced admission category with fixed capacity.
// AvailableCount is the single hot shared counter of the system: it is
// only ever mutated through the inventory ledger's conditional updates,
// never by read-then-write application code.
type TicketType struct {
	ID             uint                   `gorm:"primarykey" json:"id"`
	EventID        uint                   `json:"event_id,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Status         types.TicketTypeStatus `gorm:"default:'open'" json:"status,omitempty"`
	Capacity       uint                   `json:"capacity"`
	AvailableCount uint                   `json:"available_count"`
	UnitPrice      int64                  `json:"unit_price"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
