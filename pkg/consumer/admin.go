package consumer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/segmentio/kafka-go"
)

// OffsetAdmin reads group and partition positions from the log. It never commits.
type OffsetAdmin interface {
	Partitions(ctx context.Context, topic string) ([]int, error)
	// CommittedOffsets omits or returns -1 for partitions the group never committed.
	CommittedOffsets(ctx context.Context, group, topic string, partitions []int) (map[int]int64, error)
	HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error)
	Close() error
}

// AdminDialer opens a fresh admin connection; the lag monitor dials once per cycle.
type AdminDialer func(ctx context.Context) (OffsetAdmin, error)

type kafkaAdmin struct {
	client    *kafka.Client
	transport *kafka.Transport
}

func NewKafkaAdminDialer(cfg *config.Config) AdminDialer {
	return func(ctx context.Context) (OffsetAdmin, error) {
		if len(cfg.BrokerAddrs) == 0 {
			return nil, fmt.Errorf("no brokers configured")
		}
		transport := &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: 5 * time.Second,
		}
		return &kafkaAdmin{
			client: &kafka.Client{
				Addr:      kafka.TCP(cfg.BrokerAddrs...),
				Timeout:   10 * time.Second,
				Transport: transport,
			},
			transport: transport,
		}, nil
	}
}

func (a *kafkaAdmin) Partitions(ctx context.Context, topic string) ([]int, error) {
	resp, err := a.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", topic, err)
	}
	for _, t := range resp.Topics {
		if t.Name != topic {
			continue
		}
		if t.Error != nil {
			return nil, fmt.Errorf("metadata %s: %w", topic, t.Error)
		}
		ids := make([]int, 0, len(t.Partitions))
		for _, p := range t.Partitions {
			ids = append(ids, p.ID)
		}
		sort.Ints(ids)
		return ids, nil
	}
	return nil, fmt.Errorf("topic %s not found", topic)
}

func (a *kafkaAdmin) CommittedOffsets(ctx context.Context, group, topic string, partitions []int) (map[int]int64, error) {
	resp, err := a.client.OffsetFetch(ctx, &kafka.OffsetFetchRequest{
		GroupID: group,
		Topics:  map[string][]int{topic: partitions},
	})
	if err != nil {
		return nil, fmt.Errorf("offset fetch %s/%s: %w", group, topic, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("offset fetch %s/%s: %w", group, topic, resp.Error)
	}

	out := make(map[int]int64, len(partitions))
	for _, p := range resp.Topics[topic] {
		if p.Error != nil {
			out[p.Partition] = -1
			continue
		}
		out[p.Partition] = p.CommittedOffset
	}
	return out, nil
}

func (a *kafkaAdmin) HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error) {
	reqs := make([]kafka.OffsetRequest, 0, len(partitions))
	for _, p := range partitions {
		reqs = append(reqs, kafka.LastOffsetOf(p))
	}
	resp, err := a.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{topic: reqs},
	})
	if err != nil {
		return nil, fmt.Errorf("list offsets %s: %w", topic, err)
	}

	out := make(map[int]int64, len(partitions))
	for _, p := range resp.Topics[topic] {
		if p.Error != nil {
			return nil, fmt.Errorf("list offsets %s/%d: %w", topic, p.Partition, p.Error)
		}
		out[p.Partition] = p.LastOffset
	}
	return out, nil
}

func (a *kafkaAdmin) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}
