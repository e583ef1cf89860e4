package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &a)
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &a)
}

func jsonbBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_OPEN      EventStatus = "open"
	EVENT_CLOSED    EventStatus = "closed"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_CANCELED  EventStatus = "canceled"
)

type TicketTypeStatus string

const (
	TICKET_TYPE_DRAFT  TicketTypeStatus = "draft"
	TICKET_TYPE_OPEN   TicketTypeStatus = "open"
	TICKET_TYPE_CLOSED TicketTypeStatus = "closed"
)

type TicketStatus string

const (
	TICKET_ISSUED  TicketStatus = "issued"
	TICKET_REMOVED TicketStatus = "removed"
)

type SessionStatus string

const (
	SESSION_PENDING SessionStatus = "pending"
	SESSION_PAID    SessionStatus = "paid"
	SESSION_FAILED  SessionStatus = "failed"
	SESSION_EXPIRED SessionStatus = "expired"
)

// PurchaseRequest is the buyer-supplied input to the purchase path. The
// reconciler persists it verbatim as the session snapshot at session-open
// time; confirmation never fulfills anything else. BuyerID is always
// overwritten from the auth token, never trusted from the body.
type PurchaseRequest struct {
	EventID uint                `json:"event_id" binding:"required"`
	BuyerID uint                `json:"buyer_id,omitempty"`
	Email   string              `json:"email,omitempty" binding:"omitempty,email"`
	Items   []PurchaseSelection `json:"items" binding:"required,min=1,dive"`
}

type PurchaseSelection struct {
	TicketTypeID uint              `json:"ticket_type_id" binding:"required"`
	Qty          uint              `json:"qty" binding:"required,min=1"`
	Attendees    []AttendeeDetails `json:"attendees,omitempty" binding:"omitempty,dive"`
	AddOns       []AddOnSelection  `json:"add_ons,omitempty" binding:"omitempty,dive"`
}

type AttendeeDetails struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email,omitempty" binding:"omitempty,email"`
}

type AddOnSelection struct {
	AddOnID uint `json:"add_on_id" binding:"required"`
	Qty     uint `json:"qty" binding:"required,min=1"`
}

// PurchaseSnapshot stores a PurchaseRequest as a jsonb column on the
// payment session record.
type PurchaseSnapshot PurchaseRequest

func (s PurchaseSnapshot) Value() (driver.Value, error) {
	valueString, err := json.Marshal(s)
	return string(valueString), err
}
func (s *PurchaseSnapshot) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, s)
}

// IssuedAddOn is the priced add-on line recorded against an issued ticket.
type IssuedAddOn struct {
	AddOnID   uint   `json:"add_on_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Qty       uint   `json:"qty"`
}

type CreateEventRequestBody struct {
	Title    string  `json:"title" binding:"required"`
	Location string  `json:"location,omitempty" binding:"required"`
	DateTime string  `json:"date_time" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Deadline string  `json:"deadline" binding:"required,bookabledate,ltdate=DateTime" time_format:"2006-01-02 15:04:05 -07:00"`
	Currency string  `json:"currency,omitempty"`
	Publish  bool    `json:"publish,omitempty"`
	About    *string `json:"about,omitempty"`
}

type CreateTicketTypeRequestBody struct {
	EventID  uint   `json:"event" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Capacity uint   `json:"capacity" binding:"required,min=1"`
}

type CreateAddOnRequestBody struct {
	EventID  uint   `json:"event" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	MaxQty   uint   `json:"max_qty,omitempty"`
	Required bool   `json:"required,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type SessionURIParams struct {
	SessionID string `uri:"id" binding:"required"`
}

type OrderURIParams struct {
	OrderID string `uri:"id" binding:"required,uuid"`
}

type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
