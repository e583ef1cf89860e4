package inventory

import (
	"errors"

	"tixgate/src/models"
	"tixgate/src/types"

	"gorm.io/gorm"
)

// Ledger owns every mutation of TicketType.AvailableCount. All writes go
// through single conditional UPDATE statements so two transactions can
// never both observe the same seats as free.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Reserve takes qty seats from the ticket type inside tx. The decrement
// and the availability check happen in one statement; when no row
// matches, the follow-up read is only used to build the error.
func (l *Ledger) Reserve(tx *gorm.DB, ticketTypeID uint, qty uint) error {
	if qty == 0 {
		return types.NewValidationError("quantity must be at least 1")
	}
	res := tx.Model(&models.TicketType{}).
		Where("id = ? AND available_count >= ?", ticketTypeID, qty).
		Update("available_count", gorm.Expr("available_count - ?", qty))
	if res.Error != nil {
		return &types.StorageFaultError{Err: res.Error}
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var tt models.TicketType
	err := tx.Model(&models.TicketType{}).Where("id = ?", ticketTypeID).First(&tt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewValidationError("unknown ticket type %d", ticketTypeID)
	}
	if err != nil {
		return &types.StorageFaultError{Err: err}
	}
	return &types.InsufficientCapacityError{
		TicketTypeID: ticketTypeID,
		Requested:    qty,
		Available:    tt.AvailableCount,
	}
}

// Release returns qty seats to the ticket type. A release can race a
// cancellation sweep that already put the same seats back, so when the
// guarded add would overshoot the count is clamped to capacity instead
// of failing the caller.
func (l *Ledger) Release(tx *gorm.DB, ticketTypeID uint, qty uint) error {
	if qty == 0 {
		return nil
	}
	res := tx.Model(&models.TicketType{}).
		Where("id = ? AND available_count + ? <= capacity", ticketTypeID, qty).
		Update("available_count", gorm.Expr("available_count + ?", qty))
	if res.Error != nil {
		return &types.StorageFaultError{Err: res.Error}
	}
	if res.RowsAffected > 0 {
		return nil
	}

	res = tx.Model(&models.TicketType{}).
		Where("id = ? AND available_count < capacity", ticketTypeID).
		Update("available_count", gorm.Expr("capacity"))
	if res.Error != nil {
		return &types.StorageFaultError{Err: res.Error}
	}
	return nil
}

// Availability reads the current free seat count outside any reservation
// path. Listings use it; the purchase flow never does.
func (l *Ledger) Availability(ticketTypeID uint) (available, capacity uint, err error) {
	var tt models.TicketType
	e := l.db.Model(&models.TicketType{}).Where("id = ?", ticketTypeID).First(&tt).Error
	if errors.Is(e, gorm.ErrRecordNotFound) {
		return 0, 0, types.NewValidationError("unknown ticket type %d", ticketTypeID)
	}
	if e != nil {
		return 0, 0, &types.StorageFaultError{Err: e}
	}
	return tt.AvailableCount, tt.Capacity, nil
}
