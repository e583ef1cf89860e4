package issuer

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"tixgate/src/models"
	"tixgate/src/types"
	"tixgate/src/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issuer mints Ticket rows and their sealed scan codes. It always runs
// inside the purchase transaction so a ticket either exists with its
// reserved seat or not at all.
type Issuer struct {
	key []byte
}

func New(key []byte) *Issuer {
	return &Issuer{key: key}
}

type IssueInput struct {
	OrderID          uuid.UUID
	TicketTypeID     uint
	OwnerID          uint
	UnitPrice        int64
	Currency         string
	PaymentSessionID *string
	Qty              uint
	Attendees        []types.AttendeeDetails
	AddOns           []types.IssuedAddOn
}

// ScanPayload is what a scan code decrypts to at the gate.
type ScanPayload struct {
	TicketID uint   `json:"ticket_id"`
	OrderID  string `json:"order_id"`
	Nonce    string `json:"nonce"`
}

// Issue creates one ticket row per unit of in.Qty. Attendee details, when
// provided, map positionally onto the units.
func (i *Issuer) Issue(tx *gorm.DB, in IssueInput) ([]models.Ticket, error) {
	if in.Qty == 0 {
		return nil, types.NewValidationError("quantity must be at least 1")
	}
	if len(in.Attendees) > 0 && uint(len(in.Attendees)) != in.Qty {
		return nil, types.NewValidationError("got %d attendees for %d tickets", len(in.Attendees), in.Qty)
	}

	var addOns types.JSONBArray
	for _, a := range in.AddOns {
		addOns = append(addOns, map[string]any{
			"add_on_id":  a.AddOnID,
			"name":       a.Name,
			"unit_price": a.UnitPrice,
			"qty":        a.Qty,
		})
	}

	tickets := make([]models.Ticket, 0, in.Qty)
	for n := uint(0); n < in.Qty; n++ {
		ticket := models.Ticket{
			OrderID:          in.OrderID,
			TicketTypeID:     in.TicketTypeID,
			OwnerID:          in.OwnerID,
			UnitPrice:        in.UnitPrice,
			Currency:         in.Currency,
			PaymentSessionID: in.PaymentSessionID,
			Status:           types.TICKET_ISSUED,
		}
		if len(in.Attendees) > 0 {
			ticket.AttendeeName = in.Attendees[n].Name
			ticket.AttendeeEmail = in.Attendees[n].Email
		}
		// Add-ons attach to the first unit of the selection so they are
		// charged once, not per attendee.
		if n == 0 {
			ticket.AddOns = addOns
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return nil, &types.StorageFaultError{Err: err}
		}
		if _, err := i.ScanCode(tx, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

// ScanCode returns the ticket's sealed gate code, generating and storing
// it when the ticket does not have one yet. Called twice for the same
// ticket it returns the same code.
func (i *Issuer) ScanCode(tx *gorm.DB, ticket *models.Ticket) (string, error) {
	if ticket.ScanCode != "" {
		return ticket.ScanCode, nil
	}
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	payload, err := json.Marshal(ScanPayload{
		TicketID: ticket.ID,
		OrderID:  ticket.OrderID.String(),
		Nonce:    hex.EncodeToString(nonce),
	})
	if err != nil {
		return "", err
	}
	code, err := utils.EncryptMessage(i.key, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to seal scan code: %w", err)
	}
	res := tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).Update("scan_code", code)
	if res.Error != nil {
		return "", &types.StorageFaultError{Err: res.Error}
	}
	ticket.ScanCode = code
	return code, nil
}

// Decode opens a presented scan code. It proves the code was sealed with
// our key but not that the ticket is still valid; the admission path
// checks that against the row.
func (i *Issuer) Decode(code string) (*ScanPayload, error) {
	plain, err := utils.DecryptMessage(i.key, code)
	if err != nil {
		return nil, types.NewValidationError("unreadable scan code")
	}
	var payload ScanPayload
	if err := json.Unmarshal([]byte(*plain), &payload); err != nil {
		return nil, types.NewValidationError("unreadable scan code")
	}
	return &payload, nil
}

// CodeForTicket loads the persisted scan code for a ticket, generating it
// on first request for tickets issued before codes existed.
func (i *Issuer) CodeForTicket(db *gorm.DB, ticketID uint) (string, error) {
	var ticket models.Ticket
	err := db.Model(&models.Ticket{}).Where("id = ?", ticketID).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", types.NewValidationError("unknown ticket %d", ticketID)
	}
	if err != nil {
		return "", &types.StorageFaultError{Err: err}
	}
	if ticket.Status != types.TICKET_ISSUED {
		return "", types.NewValidationError("ticket %d is no longer valid", ticketID)
	}
	return i.ScanCode(db, &ticket)
}
