package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/college-scheduling-api/pkg/jobs"
)

type fakeChannel struct {
	published  []amqp.Publishing
	keys       []string
	deliveries chan amqp.Delivery
	prefetch   int
	returns    chan amqp.Return
	closed     bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	f.returns = c
	return c
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error {
	if !f.closed && f.returns != nil {
		close(f.returns)
	}
	f.closed = true
	return nil
}

type ackRecorder struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestPublisherSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "faculty.notifications", nil)

	require.NoError(t, p.Publish(context.Background(), "n-1", []byte(`{"kind":"SCHEDULE_CREATED"}`)))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "faculty.notifications", ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, "n-1", ch.published[0].MessageId)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisherLogsReturnedMessages(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ch := &fakeChannel{}
	p := newPublisher(ch, "faculty.notifications", zap.New(core))
	require.NotNil(t, ch.returns)

	ch.returns <- amqp.Return{MessageId: "n-7", RoutingKey: "faculty.notifications", ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE"}
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("message returned by broker").Len() == 1
	}, time.Second, 10*time.Millisecond)

	entry := logs.All()[0]
	assert.Equal(t, "n-7", entry.ContextMap()["message_id"])
	assert.EqualValues(t, amqp.NoRoute, entry.ContextMap()["reply_code"])
	require.NoError(t, p.Close())
}

func TestConsumerSettlesDeliveries(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 3)}
	acks := &ackRecorder{}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte("ok")}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("transient")}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: []byte("broken")}
	close(ch.deliveries)

	c := newConsumer(ch, "faculty.notifications", 4, nil)
	err := c.Run(context.Background(), func(ctx context.Context, body []byte) error {
		switch string(body) {
		case "transient":
			return errors.New("smtp timeout")
		case "broken":
			return jobs.Permanent(errors.New("bad payload"))
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 4, ch.prefetch)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2, 3}, acks.nacked)
	assert.Equal(t, []bool{true, false}, acks.requeue)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	c := newConsumer(ch, "q", 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(ctx context.Context, body []byte) error { return nil }) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, 1, ch.prefetch)
}
