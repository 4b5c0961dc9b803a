package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
	"github.com/MRamiBalles/ResourceRush/server/internal/engine"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/infra/storage"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/clock"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/savegame"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

type fixture struct {
	eng *engine.Engine
	hub *Hub
	srv *httptest.Server
	url string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	econ := config.DefaultEconomy()
	econ.SaveBackoff = time.Millisecond

	tuning := config.LowResourceTuning()
	hub := NewHub(logger.Discard(), tuning)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	// the hub is the engine's notifier
	eng, err := engine.New(engine.Options{
		Registry: reg,
		Economy:  econ,
		Saves:    savegame.NewRepository(storage.NewMemoryKV(), econ.SaveVersion, clock.RealClock{}),
		Notifier: hub,
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(hub, eng, logger.Discard(), tuning))
	t.Cleanup(func() {
		srv.Close()
		_ = eng.Shutdown(context.Background())
		cancel()
	})
	return &fixture{
		eng: eng,
		hub: hub,
		srv: srv,
		url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=",
	}
}

func (f *fixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url+user, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads frames until a notification of kind arrives.
func next(t *testing.T, conn *websocket.Conn, kind events.Kind) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			var n struct {
				Kind    events.Kind     `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(line, &n))
			if n.Kind == kind {
				return n.Payload
			}
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, action PlayerAction) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(action))
}

func TestJoinReceivesInitialState(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "alice")

	var daily events.DailyRewardState
	require.NoError(t, json.Unmarshal(next(t, conn, events.KindDailyRewardState), &daily))
	assert.True(t, daily.CanClaim)

	var snap events.StateSnapshot
	require.NoError(t, json.Unmarshal(next(t, conn, events.KindStateSnapshot), &snap))
	assert.Zero(t, snap.Balance)
	assert.Len(t, snap.Generators, 8)
	assert.True(t, f.hub.Connected("alice"))
}

func TestActionsRoundTrip(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "bob")
	next(t, conn, events.KindStateSnapshot)

	send(t, conn, PlayerAction{Type: ActionManual})
	var snap events.StateSnapshot
	require.NoError(t, json.Unmarshal(next(t, conn, events.KindStateSnapshot), &snap))
	assert.Equal(t, 1.0, snap.Balance)
	assert.Equal(t, int64(1), snap.TotalManualActions)

	send(t, conn, PlayerAction{Type: ActionClaimDaily})
	var daily events.DailyRewardState
	require.NoError(t, json.Unmarshal(next(t, conn, events.KindDailyRewardState), &daily))
	assert.False(t, daily.CanClaim)
	assert.Equal(t, 1, daily.ConsecutiveDays)

	send(t, conn, PlayerAction{Type: ActionPurchase, Payload: json.RawMessage(`{"generator_id":1,"amount":"max"}`)})
	require.NoError(t, json.Unmarshal(next(t, conn, events.KindStateSnapshot), &snap))
	assert.Greater(t, snap.Generators[0].Owned, 1)
}

func TestDuplicateConnectionIsRefused(t *testing.T) {
	f := newFixture(t)
	f.dial(t, "carol")

	_, resp, err := websocket.DefaultDialer.Dial(f.url+"carol", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMissingUserIsBadRequest(t *testing.T) {
	f := newFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDisconnectLeavesSession(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "dave")
	next(t, conn, events.KindStateSnapshot)
	require.Equal(t, 1, f.eng.Sessions().Len())

	conn.Close()
	assert.Eventually(t, func() bool {
		return f.eng.Sessions().Len() == 0 && !f.hub.Connected("dave")
	}, 2*time.Second, 5*time.Millisecond)

	// the user can come back once the final save landed
	again := f.dial(t, "dave")
	next(t, again, events.KindStateSnapshot)
}

type leaveOnly struct {
	Engine
	err error
}

func (e leaveOnly) Leave(context.Context, string) error { return e.err }

func TestLeaveAfterDisconnectLogsOnlyRealFailures(t *testing.T) {
	var buf bytes.Buffer
	hub := NewHub(logger.NewWriterLogger(&buf), config.LowResourceTuning())

	NewClient(hub, leaveOnly{err: session.ErrNoSession}, "gone", 1, 1, 1).leave()
	NewClient(hub, leaveOnly{}, "clean", 1, 1, 1).leave()
	assert.Empty(t, buf.String(), "a session drained elsewhere is not an error")

	NewClient(hub, leaveOnly{err: errors.New("disk full")}, "stuck", 1, 1, 1).leave()
	assert.Contains(t, buf.String(), "[RUSH-ERROR] Leave for stuck after disconnect: disk full")
}

func TestParseAmount(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want engine.Amount
		bad  bool
	}{
		{``, engine.Units(1), false},
		{`null`, engine.Units(1), false},
		{`5`, engine.Units(5), false},
		{`"max"`, engine.MaxAffordable, false},
		{`"12"`, engine.Units(12), false},
		{`"lots"`, engine.Amount{}, true},
		{`{}`, engine.Amount{}, true},
	} {
		got, err := PurchasePayload{Amount: json.RawMessage(tc.raw)}.ParseAmount()
		if tc.bad {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestHubNotifyNeverBlocks(t *testing.T) {
	tuning := config.LowResourceTuning()
	hub := NewHub(logger.Discard(), tuning)
	c := NewClient(hub, nil, "u", 1, 1, 1)
	require.NoError(t, hub.Register(c))
	assert.ErrorIs(t, hub.Register(NewClient(hub, nil, "u", 1, 1, 1)), ErrUserConnected)

	hub.Notify("nobody", events.Balance(events.BalanceUpdate{}))
	hub.Notify("u", events.Balance(events.BalanceUpdate{Balance: 1}))
	hub.Notify("u", events.Balance(events.BalanceUpdate{Balance: 2})) // dropped, queue holds one
	assert.Len(t, c.send, 1)

	assert.True(t, hub.remove(c))
	assert.False(t, hub.remove(c))
	hub.Notify("u", events.Balance(events.BalanceUpdate{}))
	assert.Zero(t, hub.Count())
}

func TestHubRespectsClientLimit(t *testing.T) {
	tuning := config.LowResourceTuning()
	tuning.MaxClients = 1
	hub := NewHub(logger.Discard(), tuning)
	require.NoError(t, hub.Register(NewClient(hub, nil, "a", 1, 1, 1)))
	assert.ErrorIs(t, hub.Register(NewClient(hub, nil, "b", 1, 1, 1)), ErrHubFull)
}
