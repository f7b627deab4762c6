package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/molsearch/internal/application/indexing"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
)

const (
	eventMaxRetries   = 3
	eventRetryBackoff = 500 * time.Millisecond
)

// EnsureTopics creates the index-event topic and its dead-letter topic.
func (a *App) EnsureTopics(ctx context.Context) error {
	tm, err := kafka.NewTopicManager(a.Config.Kafka.Brokers, a.Logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	for _, tc := range kafka.IndexTopics(a.Config.Kafka.Topic) {
		if err := tm.EnsureTopic(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

// StartIndexConsumer subscribes the indexer to the index-event topic.  It
// is a no-op when kafka is disabled.  The consumer is closed with the App.
func (a *App) StartIndexConsumer(ctx context.Context) error {
	kc := a.Config.Kafka
	if !kc.Enabled {
		return nil
	}
	if err := a.EnsureTopics(ctx); err != nil {
		a.Logger.Warn("could not ensure kafka topics", logging.Err(err))
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: kc.Brokers,
		GroupID: kc.GroupID,
		Topics:  []string{kc.Topic},
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      eventMaxRetries,
			RetryBackoff:    eventRetryBackoff,
			MaxRetryBackoff: 10 * eventRetryBackoff,
			DeadLetterTopic: kafka.DeadLetterTopic(kc.Topic),
		},
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Subscribe(kc.Topic, a.Indexer.KafkaHandler())
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		return err
	}
	// Closed before the indexer so no event lands on a closed store.
	a.closers = append(a.closers, consumer.Close)
	a.Logger.Info("index consumer running",
		logging.String("topic", kc.Topic),
		logging.String("group", kc.GroupID))
	return nil
}

// NewEventPublisher returns a publisher for the configured topic and a
// function closing its producer.
func (a *App) NewEventPublisher() (*indexing.EventPublisher, func() error, error) {
	kc := a.Config.Kafka
	if !kc.Enabled {
		return nil, nil, fmt.Errorf("kafka is disabled")
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: kc.Brokers}, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return indexing.NewEventPublisher(producer, kc.Topic), producer.Close, nil
}

// WatchConfig hot-applies log.level changes from path.  Other settings
// need a restart.
func (a *App) WatchConfig(path string) {
	if path == "" {
		return
	}
	var mu sync.Mutex
	current := a.Config.Log.Level
	config.Watch(path, func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if cfg.Log.Level == current {
			return
		}
		if logging.SetLevel(a.Logger, cfg.Log.Level) {
			a.Logger.Info("log level changed",
				logging.String("from", current),
				logging.String("to", cfg.Log.Level))
			current = cfg.Log.Level
		}
	}, func(err error) {
		a.Logger.Warn("ignoring invalid config revision", logging.Err(err))
	})
}
