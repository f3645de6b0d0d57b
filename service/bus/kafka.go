package bus

import (
	"context"

	"github.com/Shopify/sarama"

	"connectify/global/config"
	"connectify/logger"
	"connectify/service/gateway"
	"connectify/tools/errs"
	"connectify/tools/safe"
)

// kafkaBus publishes envelopes to one topic; every node consumes it in its
// own consumer group (group id derives from the node id), so each instance
// sees each event exactly once and delivers to local handles only.
type kafkaBus struct {
	nodeID   string
	topic    string
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	cancel   context.CancelFunc
}

func buildKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 1
	// Key controls the partition so one user's events stay ordered.
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}

func newKafkaBus(cfg config.KafkaConfig, nodeID string) (Bus, error) {
	sc := buildKafkaConfig()
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, "connectify-"+nodeID, sc)
	if err != nil {
		_ = producer.Close()
		return nil, errs.WrapMsg(err, "kafka consumer group")
	}
	return &kafkaBus{nodeID: nodeID, topic: cfg.Topic, producer: producer, group: group}, nil
}

func (b *kafkaBus) Publish(ctx context.Context, ev *gateway.Event) error {
	data, err := encodeEnvelope(b.nodeID, ev)
	if err != nil {
		return err
	}
	key := ""
	if len(ev.Targets) > 0 {
		key = ev.Targets[0]
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	return errs.WrapMsg(err, "kafka publish")
}

func (b *kafkaBus) Subscribe(h Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	consumer := &groupConsumer{nodeID: b.nodeID, handler: h}
	safe.Go(func() {
		for {
			// Consume returns on rebalance; loop until cancelled.
			if err := b.group.Consume(ctx, []string{b.topic}, consumer); err != nil {
				logger.Warnf("[bus/kafka] consume: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	})
	return nil
}

func (b *kafkaBus) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	_ = b.group.Close()
	return b.producer.Close()
}

type groupConsumer struct {
	nodeID  string
	handler Handler
}

func (*groupConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *groupConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		env, err := decodeEnvelope(msg.Value)
		if err != nil {
			logger.Warnf("[bus/kafka] drop bad envelope: %v", err)
			sess.MarkMessage(msg, "")
			continue
		}
		if env.Origin != c.nodeID {
			c.handler(sess.Context(), env.event())
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
