package issuer

import (
	"crypto/rand"
	"testing"

	"tixgate/src/models"
	"tixgate/src/types"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(&models.Ticket{}))
	return gdb
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return New(key)
}

func TestIssueOneRowPerUnit(t *testing.T) {
	gdb := newTestDB(t)
	iss := newTestIssuer(t)
	orderID := uuid.New()

	tickets, err := iss.Issue(gdb, IssueInput{
		OrderID:      orderID,
		TicketTypeID: 3,
		OwnerID:      42,
		UnitPrice:    2500,
		Currency:     "omr",
		Qty:          3,
		Attendees: []types.AttendeeDetails{
			{Name: "Salim"},
			{Name: "Maha"},
			{Name: "Noor"},
		},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	seen := map[string]bool{}
	for n, ticket := range tickets {
		assert.Equal(t, orderID, ticket.OrderID)
		assert.Equal(t, uint(3), ticket.TicketTypeID)
		assert.Equal(t, int64(2500), ticket.UnitPrice)
		assert.NotEmpty(t, ticket.ScanCode)
		assert.False(t, seen[ticket.ScanCode], "scan codes must be unique per unit")
		seen[ticket.ScanCode] = true
		assert.Equal(t, []string{"Salim", "Maha", "Noor"}[n], ticket.AttendeeName)
	}

	var count int64
	require.NoError(t, gdb.Model(&models.Ticket{}).Where("order_id = ?", orderID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestIssueAttendeeCountMismatch(t *testing.T) {
	gdb := newTestDB(t)
	iss := newTestIssuer(t)

	_, err := iss.Issue(gdb, IssueInput{
		OrderID:      uuid.New(),
		TicketTypeID: 1,
		Qty:          2,
		Attendees:    []types.AttendeeDetails{{Name: "Salim"}},
	})
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScanCodeStableAndDecodable(t *testing.T) {
	gdb := newTestDB(t)
	iss := newTestIssuer(t)
	orderID := uuid.New()

	tickets, err := iss.Issue(gdb, IssueInput{
		OrderID:      orderID,
		TicketTypeID: 1,
		UnitPrice:    1000,
		Qty:          1,
	})
	require.NoError(t, err)
	ticket := tickets[0]

	again, err := iss.ScanCode(gdb, &ticket)
	require.NoError(t, err)
	assert.Equal(t, ticket.ScanCode, again)

	fromDB, err := iss.CodeForTicket(gdb, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ScanCode, fromDB)

	payload, err := iss.Decode(ticket.ScanCode)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, payload.TicketID)
	assert.Equal(t, orderID.String(), payload.OrderID)
}

func TestDecodeRejectsForgedCode(t *testing.T) {
	iss := newTestIssuer(t)
	other := newTestIssuer(t)

	gdb := newTestDB(t)
	tickets, err := other.Issue(gdb, IssueInput{
		OrderID: uuid.New(),
		Qty:     1,
	})
	require.NoError(t, err)

	_, err = iss.Decode(tickets[0].ScanCode)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = iss.Decode("deadbeef")
	assert.ErrorAs(t, err, &verr)
}
