package indexing

import (
	"context"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

// Index event operations.
const (
	OpAdd        = "add"
	OpRemove     = "remove"
	OpBulkRemove = "bulk_remove"
	OpCommit     = "commit"
	OpRecount    = "recount"
)

const eventSource = "molsearch"

// IndexEvent is one write carried over kafka.
type IndexEvent struct {
	Op     string                  `json:"op"`
	ID     string                  `json:"id,omitempty"`
	Name   string                  `json:"name,omitempty"`
	Graph  *molecule.GraphDocument `json:"graph,omitempty"`
	IDs    []string                `json:"ids,omitempty"`
	Fields map[string]string       `json:"fields,omitempty"`
}

// Validate checks that the event carries what its operation needs.
func (e *IndexEvent) Validate() error {
	switch e.Op {
	case OpAdd:
		if e.ID == "" || e.Graph == nil {
			return errors.New(errors.CodeValidation, "add event needs id and graph")
		}
	case OpRemove:
		if e.ID == "" {
			return errors.New(errors.CodeValidation, "remove event needs id")
		}
	case OpBulkRemove:
		if len(e.IDs) == 0 {
			return errors.New(errors.CodeValidation, "bulk remove event needs ids")
		}
	case OpCommit, OpRecount:
	default:
		return errors.Newf(errors.CodeValidation, "unknown index operation %q", e.Op)
	}
	return nil
}

// key partitions events so writes to one document stay ordered.
func (e *IndexEvent) key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Op
}

// HandleEvent applies one index event.
func (ix *Indexer) HandleEvent(ctx context.Context, ev *IndexEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	switch ev.Op {
	case OpAdd:
		g, err := ev.Graph.Graph()
		if err != nil {
			return err
		}
		name := ev.Name
		if name == "" {
			name = ev.Graph.Name
		}
		return ix.Add(ctx, ev.ID, name, g, ev.Fields)
	case OpRemove:
		return ix.Remove(ctx, ev.ID)
	case OpBulkRemove:
		return ix.BulkRemove(ctx, ev.IDs)
	case OpCommit:
		return ix.Commit(ctx)
	default:
		return ix.Recount(ctx)
	}
}

// KafkaHandler adapts HandleEvent to a kafka consumer.  Malformed events
// are not retryable and are acknowledged after logging.
func (ix *Indexer) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			ix.logger.Warn("dropping undecodable index event", logging.Int64("offset", msg.Offset), logging.Err(err))
			ix.metrics.RecordIndexEvent("unknown", err)
			return nil
		}
		var ev IndexEvent
		if err := env.DecodePayload(&ev); err != nil {
			ix.logger.Warn("dropping index event without payload", logging.String("event_id", env.EventID), logging.Err(err))
			ix.metrics.RecordIndexEvent(env.EventType, err)
			return nil
		}
		if err := ev.Validate(); err != nil {
			ix.logger.Warn("dropping invalid index event", logging.String("event_id", env.EventID), logging.Err(err))
			ix.metrics.RecordIndexEvent(ev.Op, err)
			return nil
		}
		err = ix.HandleEvent(ctx, &ev)
		ix.metrics.RecordIndexEvent(ev.Op, err)
		return err
	}
}

// Publisher sends produced messages to kafka.
type Publisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// EventPublisher turns index writes into events on one topic.
type EventPublisher struct {
	pub   Publisher
	topic string
}

func NewEventPublisher(pub Publisher, topic string) *EventPublisher {
	return &EventPublisher{pub: pub, topic: topic}
}

// Publish validates and sends ev.
func (p *EventPublisher) Publish(ctx context.Context, ev *IndexEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	env, err := kafka.NewEventEnvelope(ev.Op, eventSource, ev)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, ev.key())
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, msg)
}

func (p *EventPublisher) PublishAdd(ctx context.Context, id, name string, g molecule.Graph) error {
	return p.Publish(ctx, &IndexEvent{Op: OpAdd, ID: id, Name: name, Graph: molecule.DocumentOf(g)})
}

func (p *EventPublisher) PublishRemove(ctx context.Context, id string) error {
	return p.Publish(ctx, &IndexEvent{Op: OpRemove, ID: id})
}

func (p *EventPublisher) PublishCommit(ctx context.Context) error {
	return p.Publish(ctx, &IndexEvent{Op: OpCommit})
}
