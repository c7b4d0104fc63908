package broker_test

import (
	"sync/atomic"
	"testing"

	"github.com/myrjola/keeper/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChannelBroker(t *testing.T) {
	type testCase struct {
		name     string
		testFunc func(t *testing.T, b *broker.ChannelBroker[string, string])
	}
	tests := []testCase{
		{
			name: "subscriber receives content",
			testFunc: func(t *testing.T, b *broker.ChannelBroker[string, string]) {
				id := "session-1"
				channel := make(chan string)
				b.Publish(id, channel)
				go func() {
					channel <- "The hall"
					close(channel)
					b.Unpublish(id)
				}()
				subscriptionChan := <-b.Subscribe(id)
				require.Equal(t, "The hall", <-subscriptionChan, "subscriber did not receive content")
				msg, ok := <-subscriptionChan
				require.Empty(t, msg, "subscriber received content after producer closed")
				require.Falsef(t, ok, "channel not closed")
			},
		},
		{
			name: "nothing published",
			testFunc: func(t *testing.T, b *broker.ChannelBroker[string, string]) {
				c, ok := <-b.Subscribe("session-1")
				require.Nil(t, c)
				require.False(t, ok)
			},
		},
		{
			name: "subsequent subscribers block until producer is finished",
			testFunc: func(t *testing.T, b *broker.ChannelBroker[string, string]) {
				id := "session-1"
				channel := make(chan string)
				b.Publish(id, channel)
				producerFinished := atomic.Bool{}

				// First subscriber
				subscriptionChan := <-b.Subscribe(id)

				// Next subscriber
				done := make(chan struct{})
				go func() {
					defer close(done)
					nextSubscriptionChan, ok := <-b.Subscribe(id)
					assert.Nil(t, nextSubscriptionChan, "subsequent subscriber received content")
					assert.Falsef(t, ok, "channel not closed to signal producer is finished")
					assert.True(t, producerFinished.Load(), "producer not finished before subsequent subscriber unblocked")
				}()

				// Finish producer
				go func() {
					channel <- "The hall"
					close(channel)
					producerFinished.Store(true)
					b.Unpublish(id)
				}()
				require.Equal(t, "The hall", <-subscriptionChan, "subscriber did not receive content")
				<-done

				// Last subscriber
				lastSubscriptionChan, ok := <-b.Subscribe(id)
				require.Nil(t, lastSubscriptionChan, "last subscriber received content")
				require.False(t, ok, "last subscriber channel not closed to signal producer is finished")
			},
		},
		{
			name: "republishing hands the new channel to a new subscriber",
			testFunc: func(t *testing.T, b *broker.ChannelBroker[string, string]) {
				id := "session-1"
				for _, want := range []string{"first turn", "second turn"} {
					channel := make(chan string, 1)
					b.Publish(id, channel)
					channel <- want
					close(channel)
					c := <-b.Subscribe(id)
					require.Equal(t, want, <-c)
					b.Unpublish(id)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := broker.NewChannelBroker[string, string]()
			go br.Start()
			t.Cleanup(func() {
				br.Stop()
			})
			tt.testFunc(t, br)
		})
	}
}

func TestChannelBroker_Stop(t *testing.T) {
	br := broker.NewChannelBroker[string, string]()
	exited := make(chan struct{})
	go func() {
		br.Start()
		close(exited)
	}()
	channel := make(chan string)
	br.Publish("session-1", channel)
	<-br.Subscribe("session-1")

	waiter := br.Subscribe("session-1")
	br.Stop()
	<-exited
	_, ok := <-waiter
	require.False(t, ok, "waiting subscriber not released on stop")

	// Calls after Stop return without blocking.
	br.Publish("session-2", channel)
	br.Unpublish("session-2")
	_, ok = <-br.Subscribe("session-2")
	require.False(t, ok)
}
