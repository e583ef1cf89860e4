package purchase

import (
	"context"
	"sync"
	"testing"
	"time"

	"tixgate/src/inventory"
	"tixgate/src/issuer"
	"tixgate/src/models"
	"tixgate/src/types"

	"github.com/glebarez/sqlite"
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
	require.NoError(t, gdb.AutoMigrate(
		&models.Event{},
		&models.TicketType{},
		&models.AddOn{},
		&models.Ticket{},
	))
	return gdb
}

func newTestCoordinator(t *testing.T, gdb *gorm.DB) *Coordinator {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return New(gdb, inventory.New(gdb), issuer.New(key), nil, nil)
}

func seedEvent(t *testing.T, gdb *gorm.DB) *models.Event {
	t.Helper()
	deadline := time.Now().Add(48 * time.Hour)
	event := &models.Event{
		Title:    "Muscat Jazz Night",
		Status:   types.EVENT_OPEN,
		Currency: "omr",
		Deadline: &deadline,
	}
	require.NoError(t, gdb.Create(event).Error)
	return event
}

func seedType(t *testing.T, gdb *gorm.DB, eventID uint, name string, capacity uint, price int64) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		EventID:        eventID,
		Name:           name,
		Capacity:       capacity,
		AvailableCount: capacity,
		UnitPrice:      price,
	}
	require.NoError(t, gdb.Create(tt).Error)
	return tt
}

func availability(t *testing.T, gdb *gorm.DB, id uint) uint {
	t.Helper()
	var tt models.TicketType
	require.NoError(t, gdb.First(&tt, id).Error)
	return tt.AvailableCount
}

func TestPurchaseIssuesTicketsAndDecrementsCapacity(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	general := seedType(t, gdb, event.ID, "General", 10, 5000)
	vip := seedType(t, gdb, event.ID, "VIP", 4, 12000)
	parking := &models.AddOn{EventID: event.ID, Name: "Parking", UnitPrice: 1500, MaxQty: 1}
	require.NoError(t, gdb.Create(parking).Error)

	result, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		BuyerID: 42,
		Items: []types.PurchaseSelection{
			{TicketTypeID: vip.ID, Qty: 1},
			{
				TicketTypeID: general.ID,
				Qty:          2,
				Attendees:    []types.AttendeeDetails{{Name: "Salim"}, {Name: "Maha"}},
				AddOns:       []types.AddOnSelection{{AddOnID: parking.ID, Qty: 1}},
			},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 3)
	// 2x5000 + 1x12000 + 1x1500
	assert.Equal(t, int64(23500), result.AmountTotal)
	assert.Equal(t, "omr", result.Currency)
	for _, ticket := range result.Tickets {
		assert.Equal(t, result.OrderID, ticket.OrderID)
		assert.NotEmpty(t, ticket.ScanCode)
	}

	assert.Equal(t, uint(8), availability(t, gdb, general.ID))
	assert.Equal(t, uint(3), availability(t, gdb, vip.ID))
}

func TestPurchaseInsufficientCapacityRollsBackEverything(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	general := seedType(t, gdb, event.ID, "General", 10, 5000)
	vip := seedType(t, gdb, event.ID, "VIP", 1, 12000)

	_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items: []types.PurchaseSelection{
			{TicketTypeID: general.ID, Qty: 3},
			{TicketTypeID: vip.ID, Qty: 2},
		},
	}, nil)
	var insufficient *types.InsufficientCapacityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, vip.ID, insufficient.TicketTypeID)
	assert.Equal(t, uint(2), insufficient.Requested)
	assert.Equal(t, uint(1), insufficient.Available)

	// The general reservation from the same request must be undone.
	assert.Equal(t, uint(10), availability(t, gdb, general.ID))
	assert.Equal(t, uint(1), availability(t, gdb, vip.ID))
	var count int64
	require.NoError(t, gdb.Model(&models.Ticket{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPurchaseRejectsForeignAddOnBeforeReserving(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	other := seedEvent(t, gdb)
	general := seedType(t, gdb, event.ID, "General", 5, 5000)
	foreign := &models.AddOn{EventID: other.ID, Name: "Parking", UnitPrice: 1500}
	require.NoError(t, gdb.Create(foreign).Error)

	_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items: []types.PurchaseSelection{{
			TicketTypeID: general.ID,
			Qty:          1,
			AddOns:       []types.AddOnSelection{{AddOnID: foreign.ID, Qty: 1}},
		}},
	}, nil)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint(5), availability(t, gdb, general.ID))
}

func TestPurchaseAddOnOverMaxRejectedBeforeReserving(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	general := seedType(t, gdb, event.ID, "General", 5, 5000)
	parking := &models.AddOn{EventID: event.ID, Name: "Parking", UnitPrice: 1500, MaxQty: 1}
	require.NoError(t, gdb.Create(parking).Error)

	_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items: []types.PurchaseSelection{{
			TicketTypeID: general.ID,
			Qty:          1,
			AddOns:       []types.AddOnSelection{{AddOnID: parking.ID, Qty: 2}},
		}},
	}, nil)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint(5), availability(t, gdb, general.ID))
	var count int64
	require.NoError(t, gdb.Model(&models.Ticket{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPurchaseRequiredAddOnEnforced(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	general := seedType(t, gdb, event.ID, "General", 5, 5000)
	levy := &models.AddOn{EventID: event.ID, Name: "Venue levy", UnitPrice: 500, Required: true}
	require.NoError(t, gdb.Create(levy).Error)

	_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items:   []types.PurchaseSelection{{TicketTypeID: general.ID, Qty: 1}},
	}, nil)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)

	result, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items: []types.PurchaseSelection{{
			TicketTypeID: general.ID,
			Qty:          1,
			AddOns:       []types.AddOnSelection{{AddOnID: levy.ID, Qty: 1}},
		}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), result.AmountTotal)
}

func TestPurchaseClosedSales(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	past := time.Now().Add(-time.Hour)
	event := &models.Event{Title: "Done", Status: types.EVENT_OPEN, Currency: "omr", Deadline: &past}
	require.NoError(t, gdb.Create(event).Error)
	general := seedType(t, gdb, event.ID, "General", 5, 5000)

	_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
		EventID: event.ID,
		Items:   []types.PurchaseSelection{{TicketTypeID: general.ID, Qty: 1}},
	}, nil)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint(5), availability(t, gdb, general.ID))
}

func TestConcurrentCrossTypePurchasesComplete(t *testing.T) {
	gdb := newTestDB(t)
	c := newTestCoordinator(t, gdb)
	event := seedEvent(t, gdb)
	a := seedType(t, gdb, event.ID, "A", 50, 1000)
	b := seedType(t, gdb, event.ID, "B", 50, 2000)

	// Half the buyers list the types one way, half the other. Reservation
	// order is normalized internally, so no pair of purchases can block
	// each other.
	const buyers = 20
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		first, second := a.ID, b.ID
		if i%2 == 1 {
			first, second = b.ID, a.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Purchase(context.Background(), &types.PurchaseRequest{
				EventID: event.ID,
				Items: []types.PurchaseSelection{
					{TicketTypeID: first, Qty: 1},
					{TicketTypeID: second, Qty: 1},
				},
			}, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, uint(30), availability(t, gdb, a.ID))
	assert.Equal(t, uint(30), availability(t, gdb, b.ID))
	var count int64
	require.NoError(t, gdb.Model(&models.Ticket{}).Count(&count).Error)
	assert.Equal(t, int64(40), count)
}
