package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesInstanceAndFirehose(t *testing.T) {
	b := New()
	instance := make(chan string, 4)
	firehose := make(chan string, 4)

	require.NoError(t, b.Subscribe(InstanceTopic(1), func(v string) { instance <- v }))
	require.NoError(t, b.Subscribe(TopicAll, func(v string) { firehose <- v }))

	b.Publish(1, "hello")
	b.Wait()

	assert.Equal(t, "hello", <-instance)
	assert.Equal(t, "hello", <-firehose)
}

func TestInstanceTopicsAreIsolated(t *testing.T) {
	b := New()
	one := make(chan string, 4)
	require.NoError(t, b.Subscribe(InstanceTopic(1), func(v string) { one <- v }))

	b.Publish(2, "for-two")
	b.Wait()

	select {
	case v := <-one:
		t.Fatalf("instance 1 received %q published for instance 2", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPerTopicOrderPreserved(t *testing.T) {
	b := New()
	got := make(chan int, 16)
	require.NoError(t, b.Subscribe(InstanceTopic(1), func(v int) { got <- v }))

	for i := 0; i < 10; i++ {
		b.Publish(1, i)
	}
	b.Wait()

	for i := 0; i < 10; i++ {
		assert.Equal(t, i, <-got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	got := make(chan string, 4)
	fn := func(v string) { got <- v }
	require.NoError(t, b.Subscribe(TopicAll, fn))
	require.NoError(t, b.Unsubscribe(TopicAll, fn))

	b.Publish(1, "late")
	b.Wait()

	select {
	case v := <-got:
		t.Fatalf("received %q after unsubscribe", v)
	case <-time.After(50 * time.Millisecond):
	}
}
