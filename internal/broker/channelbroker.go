// Package broker hands the update channel of an in-flight Keeper turn from the goroutine running the turn to the
// HTTP handler streaming it.
package broker

type publishChannelContent[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

type subscribeChannelContent[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan chan TPayload
}

// ChannelBroker passes a channel with ID from producer to the first consumer.
// The subsequent consumers will block until producer is finished so that they
// can resolve the situation e.g. by fetching the persisted session from the database.
//
// The producer is the goroutine spawned by the turn request and publishes snapshots of the Keeper message as it
// streams in. The first consumer is the SSE handler of the session. The subsequent consumers are likely caused by
// reconnects. It's better for them to wait for the turn to commit and read the complete message at the end.
type ChannelBroker[TID comparable, TPayload any] struct {
	stopChannel      chan struct{}
	publishChannel   chan publishChannelContent[TID, TPayload]
	unpublishChannel chan TID
	subscribeChannel chan subscribeChannelContent[TID, TPayload]
}

// NewChannelBroker creates a new ChannelBroker. Start it with Start() in a goroutine and stop it with Stop().
func NewChannelBroker[TID comparable, TPayload any]() *ChannelBroker[TID, TPayload] {
	broker := ChannelBroker[TID, TPayload]{
		stopChannel:      make(chan struct{}),
		publishChannel:   make(chan publishChannelContent[TID, TPayload]),
		unpublishChannel: make(chan TID),
		subscribeChannel: make(chan subscribeChannelContent[TID, TPayload]),
	}
	return &broker
}

// Start listening for publish, unpublish, and subscribe events. This function blocks until Stop() is called,
// so it should be called in a goroutine.
func (b *ChannelBroker[TID, TPayload]) Start() {
	publishedChannels := map[TID]chan TPayload{}
	// waiting holds the subscribers that arrived after the first one.
	waiting := map[TID][]chan chan TPayload{}
	// taken marks IDs whose channel already went to a subscriber.
	taken := map[TID]bool{}
	for {
		select {
		case <-b.stopChannel:
			for _, subscribers := range waiting {
				for _, s := range subscribers {
					close(s)
				}
			}
			return

		case subscription := <-b.subscribeChannel:
			c := publishedChannels[subscription.ID]
			if c == nil {
				// Signal to the subscriber that the producer is finished (or haven't started yet)
				close(subscription.Channel)
				break
			}
			if !taken[subscription.ID] {
				taken[subscription.ID] = true
				subscription.Channel <- c
				close(subscription.Channel)
				break
			}
			waiting[subscription.ID] = append(waiting[subscription.ID], subscription.Channel)

		case publication := <-b.publishChannel:
			publishedChannels[publication.ID] = publication.Channel
			delete(taken, publication.ID)

		case id := <-b.unpublishChannel:
			for _, s := range waiting[id] {
				close(s)
			}
			delete(publishedChannels, id)
			delete(waiting, id)
			delete(taken, id)
		}
	}
}

// Stop the goroutine that handles the broker. Waiting subscribers are released.
func (b *ChannelBroker[TID, TPayload]) Stop() {
	close(b.stopChannel)
}

// Subscribe to the channel with ID. Returns a channel that will receive the channel corresponding to the ID.
// If the channel is not yet published, the returned channel will be closed.
// If there's already a subscriber, the returned channel will block until the producer is finished and then
// close the returned channel.
func (b *ChannelBroker[TID, TPayload]) Subscribe(id TID) chan chan TPayload {
	channel := make(chan chan TPayload, 1)
	select {
	case b.subscribeChannel <- subscribeChannelContent[TID, TPayload]{
		ID:      id,
		Channel: channel,
	}:
	case <-b.stopChannel:
		close(channel)
	}
	return channel
}

// Publish the channel with ID. The channel will be sent to the first subscriber.
func (b *ChannelBroker[TID, TPayload]) Publish(id TID, channel chan TPayload) {
	select {
	case b.publishChannel <- publishChannelContent[TID, TPayload]{
		ID:      id,
		Channel: channel,
	}:
	case <-b.stopChannel:
	}
}

// Unpublish the channel with ID and release the subscribers waiting for the producer to finish. Call it after the
// producer is done writing to the channel.
func (b *ChannelBroker[TID, TPayload]) Unpublish(id TID) {
	select {
	case b.unpublishChannel <- id:
	case <-b.stopChannel:
	}
}
