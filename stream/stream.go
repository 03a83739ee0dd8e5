// Package stream publishes accepted readings to a Kafka topic so other
// systems can consume them without polling the REST API.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/sensorhub/core/logger"
	"github.com/relabs-tech/sensorhub/reading"
)

// DefaultTopic is the topic new readings are published to.
const DefaultTopic = "sensorhub.readings"

// Publisher writes readings to Kafka. It is safe for concurrent use.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher for the given brokers, a comma separated
// list of host:port addresses.
func NewPublisher(brokers string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	logger.Default().Debugln("kafka reading stream enabled: ", brokers, topic)
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(brokers, ",")...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes one reading, keyed by device ID so readings of one device
// stay in order within a partition.
func (p *Publisher) Publish(ctx context.Context, r reading.Reading) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot encode reading: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.DeviceID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("cannot publish reading: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
