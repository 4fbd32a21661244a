// Package bus wraps the process-wide event bus. Subscribers are
// asynchronous: a slow consumer never blocks publication or other
// subscribers. Per-topic ordering is preserved for transactional
// subscribers, which is what per-instance event delivery relies on.
package bus

import (
	"fmt"

	"github.com/asaskevich/EventBus"
)

// TopicAll receives every published envelope regardless of instance.
const TopicAll = "wagate.events"

// InstanceTopic returns the per-instance topic name.
func InstanceTopic(instanceID int64) string {
	return fmt.Sprintf("wagate.events.%d", instanceID)
}

type Broker struct {
	bus EventBus.Bus
}

func New() *Broker {
	return &Broker{bus: EventBus.New()}
}

// Publish fans the payload out to both the instance topic and the
// firehose. Publication never blocks on subscriber latency.
func (b *Broker) Publish(instanceID int64, payload interface{}) {
	b.bus.Publish(InstanceTopic(instanceID), payload)
	b.bus.Publish(TopicAll, payload)
}

// Subscribe registers an async handler on a topic. Events on one topic
// are delivered to the handler in publish order (transactional), but
// delivery runs on the bus's goroutine, not the publisher's.
func (b *Broker) Subscribe(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

func (b *Broker) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// Wait blocks until all in-flight async deliveries finish. Used by
// shutdown and tests.
func (b *Broker) Wait() {
	b.bus.WaitAsync()
}
