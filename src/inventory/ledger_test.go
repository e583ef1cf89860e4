package inventory

import (
	"sync"
	"testing"

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
	))
	return gdb
}

func seedTicketType(t *testing.T, gdb *gorm.DB, capacity uint) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		Name:           "General",
		Capacity:       capacity,
		AvailableCount: capacity,
		UnitPrice:      5000,
	}
	require.NoError(t, gdb.Create(tt).Error)
	return tt
}

func TestReserveDecrementsAvailability(t *testing.T) {
	gdb := newTestDB(t)
	ledger := New(gdb)
	tt := seedTicketType(t, gdb, 2)

	require.NoError(t, ledger.Reserve(gdb, tt.ID, 1))

	err := ledger.Reserve(gdb, tt.ID, 2)
	var insufficient *types.InsufficientCapacityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, tt.ID, insufficient.TicketTypeID)
	assert.Equal(t, uint(2), insufficient.Requested)
	assert.Equal(t, uint(1), insufficient.Available)

	require.NoError(t, ledger.Reserve(gdb, tt.ID, 1))

	available, capacity, err := ledger.Availability(tt.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(0), available)
	assert.Equal(t, uint(2), capacity)
}

func TestReserveUnknownTicketType(t *testing.T) {
	gdb := newTestDB(t)
	ledger := New(gdb)

	err := ledger.Reserve(gdb, 999, 1)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReserveZeroQuantity(t *testing.T) {
	gdb := newTestDB(t)
	ledger := New(gdb)
	tt := seedTicketType(t, gdb, 5)

	err := ledger.Reserve(gdb, tt.ID, 0)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReleaseClampsAtCapacity(t *testing.T) {
	gdb := newTestDB(t)
	ledger := New(gdb)
	tt := seedTicketType(t, gdb, 10)

	require.NoError(t, ledger.Reserve(gdb, tt.ID, 3))

	require.NoError(t, ledger.Release(gdb, tt.ID, 3))
	// The same seats released twice must not push availability past
	// capacity.
	require.NoError(t, ledger.Release(gdb, tt.ID, 3))

	available, capacity, err := ledger.Availability(tt.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, available)
	assert.Equal(t, uint(10), available)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	gdb := newTestDB(t)
	ledger := New(gdb)
	tt := seedTicketType(t, gdb, 5)

	const buyers = 20
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gdb.Transaction(func(tx *gorm.DB) error {
				return ledger.Reserve(tx, tt.ID, 1)
			})
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		var insufficient *types.InsufficientCapacityError
		require.ErrorAs(t, err, &insufficient)
		rejected++
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, rejected)

	available, _, err := ledger.Availability(tt.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(0), available)
}
