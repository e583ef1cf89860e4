package models

import "tixgate/src/types"

// AddOn is an optional extra sold alongside a ticket (parking, merch,
// meal vouchers). MaxQty of zero means unlimited per selection.
type AddOn struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	EventID   uint   `json:"event_id,omitempty"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	MaxQty    uint   `json:"max_qty,omitempty"`
	Required  bool   `json:"required,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
