package fanout_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voice-control/internal/fanout"
	"voice-control/internal/topic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDeliverMatchesOnlyInterestedQueues(t *testing.T) {
	hub := fanout.New(nil)

	q1, err := hub.Register("x/#")
	require.NoError(t, err)
	defer hub.Deregister(q1)
	q2, err := hub.Register("y/#")
	require.NoError(t, err)
	defer hub.Deregister(q2)

	hub.Deliver("x/1", []byte("one"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := q1.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x/1", m.Topic)
	assert.Equal(t, []byte("one"), m.Payload)

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	_, err = q2.Receive(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "q2 must never see x/1")
}

func TestReceiveFIFO(t *testing.T) {
	hub := fanout.New(nil)
	q, err := hub.Register("reply/#")
	require.NoError(t, err)
	defer hub.Deregister(q)

	for i := 0; i < 10; i++ {
		hub.Deliver("reply/42", []byte{byte(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		m, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, byte(i), m.Payload[0], "delivery must preserve arrival order")
	}
}

func TestReceiveBlocksUntilDelivery(t *testing.T) {
	hub := fanout.New(nil)
	q, err := hub.Register("reply/#")
	require.NoError(t, err)
	defer hub.Deregister(q)

	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Deliver("reply/42", []byte("ok"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reply/42", m.Topic)
	assert.Equal(t, []byte("ok"), m.Payload)
}

func TestDeregisterFailsReceive(t *testing.T) {
	hub := fanout.New(nil)
	q, err := hub.Register("a/#")
	require.NoError(t, err)

	hub.Deliver("a/1", []byte("buffered"))
	hub.Deregister(q)

	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, fanout.ErrUnknownConsumer)

	// Buffered messages are discarded and late deliveries ignored.
	hub.Deliver("a/2", []byte("late"))
	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, fanout.ErrUnknownConsumer)
	assert.Equal(t, 0, hub.Len())
}

func TestDeregisterWakesBlockedReceiver(t *testing.T) {
	hub := fanout.New(nil)
	q, err := hub.Register("a/#")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Deregister(q)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fanout.ErrUnknownConsumer)
	case <-time.After(time.Second):
		t.Fatal("blocked receiver was not woken by deregistration")
	}
}

func TestRegisterRejectsInvalidPattern(t *testing.T) {
	hub := fanout.New(nil)
	_, err := hub.Register("a/#/b")
	assert.ErrorIs(t, err, topic.ErrInvalidPattern)
	assert.Equal(t, 0, hub.Len())
}

func TestSubscribeNotRetroactive(t *testing.T) {
	hub := fanout.New(nil)
	q, err := hub.Register()
	require.NoError(t, err)
	defer hub.Deregister(q)

	hub.Deliver("events/x", []byte("before"))
	require.NoError(t, q.Subscribe("events/#"))
	hub.Deliver("events/x", []byte("after"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("after"), m.Payload, "pre-subscription messages must not be delivered")
}

func TestConcurrentDeliverNoDuplicates(t *testing.T) {
	hub := fanout.New(nil)

	q1, err := hub.Register("events/#")
	require.NoError(t, err)
	defer hub.Deregister(q1)
	q2, err := hub.Register("events/#")
	require.NoError(t, err)
	defer hub.Deregister(q2)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				hub.Deliver("events/x", []byte(fmt.Sprintf("%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, q := range []*fanout.Queue{q1, q2} {
		seen := map[string]int{}
		for i := 0; i < writers*perWriter; i++ {
			m, err := q.Receive(ctx)
			require.NoError(t, err)
			seen[string(m.Payload)]++
		}
		for k, n := range seen {
			assert.Equal(t, 1, n, "message %s duplicated", k)
		}
		assert.Len(t, seen, writers*perWriter)
	}
}

func TestConcurrentDeregisterDuringDeliver(t *testing.T) {
	hub := fanout.New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		q, err := hub.Register("load/#")
		require.NoError(t, err)
		wg.Add(1)
		go func(q *fanout.Queue) {
			defer wg.Done()
			hub.Deregister(q)
		}(q)
	}
	for i := 0; i < 200; i++ {
		hub.Deliver("load/x", nil)
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Len())
}
