package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	InitRedis(mr.Addr())
	t.Cleanup(func() { client = nil })
	return mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGetSetJSON(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	found, err := GetJSON(ctx, "missing", &payload{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, "key", payload{Name: "x", Count: 3}, time.Minute))

	var got payload
	found, err = GetJSON(ctx, "key", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestAside_MissPopulatesCache(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	calls := 0
	var got payload
	err := Aside(ctx, "k", &got, time.Minute, func() error {
		calls++
		got = payload{Name: "fresh", Count: 1}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Second read is served from the cache.
	var again payload
	err = Aside(ctx, "k", &again, time.Minute, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, got, again)
}

func TestAside_FetchErrorPropagates(t *testing.T) {
	withMiniredis(t)

	boom := errors.New("boom")
	err := Aside(context.Background(), "k", &payload{}, time.Minute, func() error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestAside_WorksWithoutRedis(t *testing.T) {
	client = nil

	calls := 0
	var got payload
	err := Aside(context.Background(), "k", &got, time.Minute, func() error {
		calls++
		got = payload{Name: "direct"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "direct", got.Name)
}

func TestInvalidateChatLists(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, ChatListKey("alice"), payload{}, time.Minute))
	require.NoError(t, SetJSON(ctx, ChatListKey("bob"), payload{}, time.Minute))

	InvalidateChatLists(ctx, "alice", "bob")

	assert.False(t, mr.Exists(ChatListKey("alice")))
	assert.False(t, mr.Exists(ChatListKey("bob")))
}

func TestInitRedis_UnreachableFallsBack(t *testing.T) {
	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())
}
