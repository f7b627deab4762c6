package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed = true
	return nil
}

// queueReader serves queued messages, then blocks until ctx ends.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) Close() error {
	r.closed = true
	return nil
}

func (r *queueReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b:9092"}}, nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "t",
		Key:     []byte("m1"),
		Value:   []byte("v"),
		Headers: map[string]string{"h": "x"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "t", w.written[0].Topic)
	assert.Equal(t, []byte("m1"), w.written[0].Key)
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("x")}}, w.written[0].Headers)
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Sent())
}

func TestProducer_Validation(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, ProducerConfig{MaxMessageBytes: 4}, nil)
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("v")}), errors.CodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.CodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: []byte("12345")}), errors.CodeValidation))
}

func TestProducer_FailureAndClose(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return stderrors.New("broker down")
	}}
	p := newProducer(w, ProducerConfig{}, nil)
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, errors.IsCode(err, errors.CodeMessaging))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")}), ErrProducerClosed)
}

func TestValidateConfigs(t *testing.T) {
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}}))

	ok := ConsumerConfig{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}}
	assert.NoError(t, ValidateConsumerConfig(ok))
	bad := ok
	bad.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(bad))
	bad = ok
	bad.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(bad))
	bad = ok
	bad.Topics = nil
	assert.Error(t, ValidateConsumerConfig(bad))
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{
		{Topic: "idx", Value: []byte("a"), Headers: []kafka.Header{{Key: "k", Value: []byte("v")}}},
		{Topic: "other", Value: []byte("b")},
		{Topic: "idx", Value: []byte("c")},
	}}
	c := newConsumer(r, ConsumerConfig{GroupID: "g"}, nil, nil)

	var mu sync.Mutex
	var got []string
	c.Subscribe("idx", func(_ context.Context, m *Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(m.Value))
		if string(m.Value) == "a" {
			assert.Equal(t, "v", m.Headers["k"])
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return r.committedCount() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, r.closed)

	mu.Lock()
	assert.Equal(t, []string{"a", "c"}, got)
	mu.Unlock()
	processed, failed, _ := c.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(0), failed)
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumer(&queueReader{}, ConsumerConfig{
		RetryConfig: RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond},
	}, nil, nil)

	attempts := 0
	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return stderrors.New("fail")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestProcessMessage_DeadLetter(t *testing.T) {
	w := &mockKafkaWriter{}
	dl := newProducer(w, ProducerConfig{}, nil)
	c := newConsumer(&queueReader{}, ConsumerConfig{
		RetryConfig: RetryConfig{MaxRetries: 1, RetryBackoff: time.Millisecond, DeadLetterTopic: "idx.dlq"},
	}, dl, nil)

	attempts := 0
	msg := &Message{Topic: "idx", Key: []byte("m1"), Value: []byte("payload"), Headers: map[string]string{}}
	err := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		attempts++
		return stderrors.New("bad molecule")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.Len(t, w.written, 1)
	assert.Equal(t, "idx.dlq", w.written[0].Topic)
	assert.Equal(t, []byte("payload"), w.written[0].Value)
	_, failed, dead := c.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), dead)
	assert.Empty(t, msg.Headers, "original headers must not be mutated")
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	c := newConsumer(&queueReader{}, ConsumerConfig{
		RetryConfig: RetryConfig{MaxRetries: 3, RetryBackoff: time.Hour},
	}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &Message{}, func(context.Context, *Message) error {
		return stderrors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	type payload struct {
		ID string `json:"id"`
	}
	env, err := NewEventEnvelope("molecule.added", "test", payload{ID: "m1"})
	require.NoError(t, err)

	pm, err := env.ToMessage("idx", "m1")
	require.NoError(t, err)
	assert.Equal(t, []byte("m1"), pm.Key)
	assert.Equal(t, "molecule.added", pm.Headers[headerEventType])

	got, err := MessageToEventEnvelope(&Message{Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)

	var p payload
	require.NoError(t, got.DecodePayload(&p))
	assert.Equal(t, "m1", p.ID)
}

func TestEnvelope_Rejects(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, errors.IsCode(err, errors.CodeSerialization))

	_, err = MessageToEventEnvelope(&Message{Value: []byte(`{"schema_version":"v9"}`)})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	env := &EventEnvelope{}
	assert.Error(t, env.DecodePayload(&struct{}{}))
}

type mockConn struct {
	existing map[string]bool
	created  []kafka.TopicConfig
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 1 && m.existing[topics[0]] {
		return []kafka.Partition{{Topic: topics[0]}}, nil
	}
	return nil, stderrors.New("unknown topic")
}

func (m *mockConn) Close() error { return nil }

func TestTopicManager_EnsureTopic(t *testing.T) {
	conn := &mockConn{existing: map[string]bool{"idx": true}}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}

	for _, tc := range IndexTopics("idx") {
		require.NoError(t, m.EnsureTopic(context.Background(), tc))
	}
	require.Len(t, conn.created, 1)
	assert.Equal(t, "idx.dlq", conn.created[0].Topic)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)

	assert.Error(t, m.EnsureTopic(context.Background(), TopicConfig{Name: "x"}))
}
