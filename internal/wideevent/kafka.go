package wideevent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
)

// KafkaSink publishes one JSON record per event to a Kafka topic so wide
// events can feed downstream analytics without touching the response path.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink constructs a producer-backed sink and ensures the topic exists.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic name cannot be empty")
	}

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.RequestRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("failed to create wide-event topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Write produces the record asynchronously; delivery failures are logged by
// the produce callback rather than returned, so emission stays fire-and-forget
// relative to the response path.
func (s *KafkaSink) Write(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev.Record())
	if err != nil {
		return fmt.Errorf("op=wideevent.kafka.marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.ID()),
		Value: payload,
	}
	// The request may already be aborted; the produce must still go out.
	s.client.Produce(context.WithoutCancel(ctx), record, func(rec *kgo.Record, err error) {
		if err != nil {
			slog.Error("wide event produce failed",
				slog.String("topic", rec.Topic),
				slog.Any("error", err))
		}
	})
	return nil
}

// Close flushes pending records and releases the producer.
func (s *KafkaSink) Close() error {
	if err := s.client.Flush(context.Background()); err != nil {
		return err
	}
	s.client.Close()
	return nil
}

// createTopicIfNotExists creates the topic via the Kafka admin API and
// tolerates TOPIC_ALREADY_EXISTS.
func createTopicIfNotExists(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, tr := range createResp.Topics {
		if tr.ErrorCode != 0 {
			// Error code 36 = TOPIC_ALREADY_EXISTS.
			if tr.ErrorCode == 36 {
				return nil
			}
			msg := ""
			if tr.ErrorMessage != nil {
				msg = *tr.ErrorMessage
			}
			return fmt.Errorf("create topic error: %s (code %d)", msg, tr.ErrorCode)
		}
	}
	return nil
}
