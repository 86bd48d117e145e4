package ntp

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestManagerOutboundPendingThenResolve(t *testing.T) {
	mgr := NewManager(mustKeypair(t))
	handshakeID := uuid.New()

	session := mgr.NewOutbound(handshakeID)
	require.Equal(t, 0, mgr.Count())

	session.ID = uuid.New()
	mgr.ResolvePending(handshakeID, session)
	require.Equal(t, 1, mgr.Count())

	got, ok := mgr.Get(session.ID)
	require.True(t, ok)
	require.Same(t, session, got)
}

func TestManagerInboundRegisterAndRemove(t *testing.T) {
	mgr := NewManager(mustKeypair(t))
	session := mgr.NewInbound()
	session.ID = uuid.New()
	mgr.Register(session)

	_, ok := mgr.Get(session.ID)
	require.True(t, ok)

	mgr.Remove(session.ID)
	_, ok = mgr.Get(session.ID)
	require.False(t, ok)
}

func TestManagerActiveExcludesTerminalSessions(t *testing.T) {
	mgr := NewManager(mustKeypair(t))

	live := mgr.NewInbound()
	live.ID = uuid.New()
	mgr.Register(live)

	done := mgr.NewInbound()
	done.ID = uuid.New()
	done.State = StateReceipted
	mgr.Register(done)

	active := mgr.Active()
	require.Len(t, active, 1)
	require.Equal(t, live.ID, active[0].ID)
}

func TestManagerSweepTimeoutsMarksSessionTimedOut(t *testing.T) {
	mgr := NewManager(mustKeypair(t))
	session := mgr.NewInbound()
	session.ID = uuid.New()
	session.State = StateBroadcasting
	session.Settlement = NewSettlementTracker(1)
	mgr.Register(session)

	// force immediate expiry without sleeping in the test.
	session.Settlement.startedAt = session.Settlement.startedAt.Add(-time.Hour)

	timedOut := mgr.SweepTimeouts()
	require.Len(t, timedOut, 1)
	require.Equal(t, StateTimedOut, session.State)
}
