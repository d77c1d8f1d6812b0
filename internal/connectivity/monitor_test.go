package connectivity

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestMonitor_SetNotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) error { return nil }), time.Second, nil)
	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	m.Set(false)
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v", v)
	default:
	}

	m.Set(true)
	assert.True(t, <-ch)
	assert.True(t, m.IsOnline())

	m.Set(false)
	m.Set(true)
	m.Set(false)
	assert.False(t, <-ch, "slow reader sees the latest state")
}

func TestMonitor_UnsubscribeClosesChannel(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) error { return nil }), time.Second, nil)
	id, ch := m.Subscribe()
	m.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)

	m.Set(true)
	m.Unsubscribe(id)
}

func TestMonitor_CheckUsesProber(t *testing.T) {
	var fail atomic.Bool
	m := NewMonitor(ProberFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}), time.Second, nil)

	assert.True(t, m.Check(context.Background()))
	fail.Store(true)
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.IsOnline())
}

func TestMonitor_RunPollsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(ProberFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.IsOnline())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestGRPCHealthProber(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	hs.SetServingStatus("storage", healthpb.HealthCheckResponse_SERVING)

	p, err := NewGRPCHealthProber(lis.Addr().String(), "storage")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, p.Probe(ctx))

	hs.SetServingStatus("storage", healthpb.HealthCheckResponse_NOT_SERVING)
	assert.Error(t, p.Probe(ctx))
}
