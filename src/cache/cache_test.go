package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type cachedEvent struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheGetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet(EventKey(1)).RedisNil()

	var out cachedEvent
	hit, err := c.Get(context.Background(), EventKey(1), &out)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheGetHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	want := cachedEvent{ID: 7, Title: "Muscat Jazz Night"}
	raw, _ := json.Marshal(want)
	mock.ExpectGet(EventKey(7)).SetVal(string(raw))

	var out cachedEvent
	hit, err := c.Get(context.Background(), EventKey(7), &out)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheGetCorruptEntryDropped(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet(EventKey(3)).SetVal("{not json")
	mock.ExpectDel(EventKey(3)).SetVal(1)

	var out cachedEvent
	hit, err := c.Get(context.Background(), EventKey(3), &out)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewWithTTL(rdb, time.Minute)

	want := cachedEvent{ID: 9, Title: "Salalah Festival"}
	raw, _ := json.Marshal(want)
	mock.ExpectSet(EventKey(9), raw, time.Minute).SetVal("OK")

	assert.NoError(t, c.Set(context.Background(), EventKey(9), want))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateTicketType(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectDel(
		TicketTypeKey(4),
		EventKey(2),
		EventTicketTypesKey(2),
	).SetVal(3)

	c.InvalidateTicketType(context.Background(), 2, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}
