// Package kafka adapts a Kafka topic into task submissions: each message is
// parsed into an identity and payload and handed to the engine as an
// In-shaped envelope. This inverts the teacher's AsyncProducer into a
// ConsumerGroup, since this module's Kafka concern is ingesting submissions
// rather than publishing domain events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/metrics"
)

// Config holds the consumer's Kafka configuration.
type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Message is the wire format: a submission's identity and opaque payload.
type Message struct {
	Identity string          `json:"identity"`
	Payload  json.RawMessage `json:"payload"`
}

// TaskBuilder turns a decoded Message into the envelope to submit. Callers
// own the business meaning of Payload; this package only moves bytes.
type TaskBuilder func(identity engine.Identity, payload json.RawMessage) *engine.Envelope

// Consumer consumes Config.Topic and submits each message to an executor.
type Consumer struct {
	cfg      Config
	group    sarama.ConsumerGroup
	executor *engine.TaskExecutor
	build    TaskBuilder
	log      logger.Logger
	metrics  *metrics.Metrics
}

// NewConsumer dials the configured brokers and joins the consumer group.
// The returned Consumer does not start consuming until Run is called.
func NewConsumer(cfg Config, executor *engine.TaskExecutor, build TaskBuilder, log logger.Logger, m *metrics.Metrics) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_3_1_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka: new consumer group: %w", err)
	}

	return &Consumer{
		cfg:      cfg,
		group:    group,
		executor: executor,
		build:    build,
		log:      log,
		metrics:  m,
	}, nil
}

// Run joins the consumer group and submits messages until ctx is canceled.
// It also drains the group's error channel into the logger and metrics.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.metrics.KafkaConsumerErrors.WithLabelValues(c.cfg.Topic, "group").Inc()
			c.log.Warn("kafka consumer group error", "topic", c.cfg.Topic, "error", err)
		}
	}()

	handler := &groupHandler{consumer: c}
	for {
		if err := c.group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group and releases its connections.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) submit(claim sarama.ConsumerGroupClaim, msg *sarama.ConsumerMessage) {
	var decoded Message
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		c.metrics.KafkaConsumerErrors.WithLabelValues(c.cfg.Topic, "decode").Inc()
		c.log.Warn("kafka: malformed submission message", "offset", msg.Offset, "error", err)
		return
	}

	env := c.build(engine.Identity(decoded.Identity), decoded.Payload)
	if !c.executor.Submit(env) {
		c.metrics.KafkaConsumerErrors.WithLabelValues(c.cfg.Topic, "backpressure").Inc()
		c.log.Warn("kafka: submission rejected under back-pressure", "identity", decoded.Identity)
		return
	}

	c.metrics.KafkaMessagesConsumed.WithLabelValues(c.cfg.Topic, c.cfg.ConsumerGroup).Inc()

	lag := claim.HighWaterMarkOffset() - msg.Offset - 1
	if lag < 0 {
		lag = 0
	}
	partition := fmt.Sprintf("%d", msg.Partition)
	c.metrics.KafkaConsumerLag.WithLabelValues(c.cfg.Topic, partition, c.cfg.ConsumerGroup).Set(float64(lag))
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.submit(claim, msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
