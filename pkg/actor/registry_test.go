package actor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, idleTTL time.Duration) *Registry {
	t.Helper()
	r := NewRegistry(RegistryConfig{
		DataDir:        t.TempDir(),
		InternalSecret: testSecret,
		IdleTTL:        idleTTL,
	})
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistry_LazyCreation(t *testing.T) {
	r := newTestRegistry(t, 0)
	assert.Zero(t, r.ActorCount())

	a, err := r.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", a.Tenant())
	assert.Equal(t, 1, r.ActorCount())

	// A second Get returns the same instance.
	b, err := r.Get("acme")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_InvalidTenant(t *testing.T) {
	r := newTestRegistry(t, 0)
	for _, tenant := range []string{"", "UPPER", "has.dot", "../escape", "-edge", "edge-"} {
		_, err := r.Get(tenant)
		assert.ErrorIs(t, err, ErrInvalidTenant, "tenant %q", tenant)
	}
	assert.Zero(t, r.ActorCount())
}

func TestRegistry_IdleEviction(t *testing.T) {
	r := newTestRegistry(t, 2*time.Second)
	a, err := r.Get("sleepy")
	require.NoError(t, err)

	// Backdate the actor's last activity past the TTL and sweep.
	a.lastActive.Store(time.Now().Add(-time.Minute).UnixNano())
	r.evictIdle()
	assert.Zero(t, r.ActorCount())

	// The tenant comes back cold on next traffic.
	b, err := r.Get("sleepy")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistry_ViewersKeepActorWarm(t *testing.T) {
	r := newTestRegistry(t, 2*time.Second)
	a, err := r.Get("watched")
	require.NoError(t, err)

	srv := httptest.NewServer(a)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	a.lastActive.Store(time.Now().Add(-time.Minute).UnixNano())
	r.evictIdle()
	assert.Equal(t, 1, r.ActorCount(), "live viewers block eviction")
}

func TestRegistry_Closed(t *testing.T) {
	r := newTestRegistry(t, 0)
	_, err := r.Get("acme")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Zero(t, r.ActorCount())

	_, err = r.Get("acme")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

// End-to-end: a subscribed viewer sees every logged request, including
// outcomes that matched nothing.
func TestActor_ViewerSeesBroadcasts(t *testing.T) {
	a := newTestActor(t)
	pushSet(t, a, usersSet())

	srv := httptest.NewServer(a)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, ws.MessageText, []byte(`{"type":"subscribe"}`)))
	require.NoError(t, conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)))
	_, pong, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(pong), "pong")

	resp, err := http.Post(srv.URL+"/api/users", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/definitely/missing")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var statuses []int
	ids := map[string]bool{}
	for i := 0; i < 2; i++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var frame struct {
			Type string `json:"type"`
			Data struct {
				ID             string `json:"id"`
				ResponseStatus int    `json:"responseStatus"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &frame))
		require.Equal(t, "request", frame.Type)
		require.False(t, ids[frame.Data.ID], "no duplicate ids in the stream")
		ids[frame.Data.ID] = true
		statuses = append(statuses, frame.Data.ResponseStatus)
	}
	assert.Equal(t, []int{201, 404}, statuses)
}
