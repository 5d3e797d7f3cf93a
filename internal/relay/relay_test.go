package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type fakeSource struct {
	mu      sync.Mutex
	pending []appointment.EventLog
}

func (s *fakeSource) PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, ev appointment.EventLog) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n < limit && n < len(s.pending) {
		if err := publish(ctx, s.pending[n]); err != nil {
			s.pending = s.pending[n:]
			return n, err
		}
		n++
	}
	s.pending = s.pending[n:]
	return n, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []string
	failAt   int
}

func (p *fakePublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.payloads)+1 == p.failAt {
		return errors.New("redis down")
	}
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func events(n int) []appointment.EventLog {
	out := make([]appointment.EventLog, n)
	for i := range out {
		out[i] = appointment.EventLog{ID: int64(i + 1), Payload: []byte{byte('a' + i)}}
	}
	return out
}

func TestRunOnceDrainsAllBatches(t *testing.T) {
	src := &fakeSource{pending: events(5)}
	pub := &fakePublisher{}
	r := New(src, pub, time.Second, 2)

	n, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, pub.payloads)
	assert.Empty(t, src.pending)
}

func TestRunOnceStopsOnPublishError(t *testing.T) {
	src := &fakeSource{pending: events(4)}
	pub := &fakePublisher{failAt: 3}
	r := New(src, pub, time.Second, 10)

	n, err := r.RunOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, src.pending, 2, "failed event stays pending")

	pub.failAt = 0
	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b", "c", "d"}, pub.payloads)
}

func TestRunStopsWhenContextDone(t *testing.T) {
	src := &fakeSource{pending: events(1)}
	pub := &fakePublisher{}
	r := New(src, pub, 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.payloads) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
