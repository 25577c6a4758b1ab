package stream

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"buybot/internal/domain/entity"
	"buybot/internal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() entity.BuyEvent {
	return entity.BuyEvent{
		ID:           "ev-1",
		TokenAddress: "0x00000000000000000000000000000000000000aa",
		Buyer:        "0x1111111111111111111111111111111111111111",
		BuyCount:     3,
		VolumeUSD:    600,
		EstimatedUSD: 200,
		DetectedAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestWebSocketBroadcaster(t *testing.T) {
	b := NewWebSocketBroadcaster(logger.Nop(), nil)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.PublishEvent(context.Background(), sampleEvent()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got entity.BuyEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ev-1", got.ID)
	assert.Equal(t, 200.0, got.EstimatedUSD)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return b.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketBroadcaster_NoClients(t *testing.T) {
	b := NewWebSocketBroadcaster(logger.Nop(), nil)
	assert.NoError(t, b.PublishEvent(context.Background(), sampleEvent()))
	assert.Equal(t, "websocket", b.Name())
	b.Close()
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "buys"}

	require.NoError(t, p.PublishEvent(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"estimatedUsd":200`)
	assert.Equal(t, "event_id", w.msgs[0].Headers[0].Key)

	w.err = errors.New("leader not available")
	err := p.PublishEvent(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "topic buys")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Equal(t, "kafka", p.Name())
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "buys"})
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "buys", kw.Topic)
	assert.IsType(t, &kafka.Hash{}, kw.Balancer)
}
