package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/u-1/public", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"_id": "u-1",
			"username": "alice",
			"privacySettings": {"showOnlineStatus": false, "showReadReceipts": true}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	p, err := c.PublicProfile(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.False(t, p.Privacy.ShowOnlineStatus)
	assert.True(t, p.Privacy.ShowReadReceipts)
}

func TestPublicProfile_AbsentFlagsDefaultPermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_id": "u-2", "username": "bob"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	p, err := c.PublicProfile(context.Background(), "u-2")
	require.NoError(t, err)

	assert.True(t, p.Privacy.ShowOnlineStatus)
	assert.True(t, p.Privacy.ShowReadReceipts)
}

func TestPrivacy_DegradesToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	p := c.Privacy(context.Background(), "u-1")

	assert.Equal(t, DefaultPrivacy(), p)
}

func TestPrivacy_UnreachableServiceDegrades(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	p := c.Privacy(context.Background(), "u-1")

	assert.Equal(t, DefaultPrivacy(), p)
}

func TestUsername_Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_id": "u-3"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	assert.Equal(t, UnknownUsername, c.Username(context.Background(), "u-3"))

	unreachable := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	assert.Equal(t, UnknownUsername, unreachable.Username(context.Background(), "u-3"))
}

func TestUpdateLastSeen_FireAndForget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/update-last-seen", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.UpdateLastSeen("u-1")

	assert.Eventually(t, func() bool { return hits.Load() == 1 },
		time.Second, 10*time.Millisecond)
}
