package offset

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/types"
)

// OffsetManager keeps the last observed position of every consumer group partition.
// It never commits anything; the log's group coordination owns committed offsets.
type OffsetManager struct {
	mu        sync.RWMutex
	offsets   map[string]map[string]map[int]types.PartitionPosition // groupID -> topic -> partition -> position
	updatedAt time.Time
}

func NewOffsetManager() *OffsetManager {
	return &OffsetManager{
		offsets: make(map[string]map[string]map[int]types.PartitionPosition),
	}
}

func (om *OffsetManager) GetPosition(groupID, topic string, partition int) (types.PartitionPosition, error) {
	om.mu.RLock()
	defer om.mu.RUnlock()

	if topics, ok := om.offsets[groupID]; ok {
		if partitions, ok := topics[topic]; ok {
			if pos, ok := partitions[partition]; ok {
				return pos, nil
			}
		}
	}
	return types.PartitionPosition{}, fmt.Errorf("no position for %s/%s/%d", groupID, topic, partition)
}

// Record stores a position, keeping offsets monotonic per partition.
func (om *OffsetManager) Record(pos types.PartitionPosition) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if _, ok := om.offsets[pos.Group]; !ok {
		om.offsets[pos.Group] = make(map[string]map[int]types.PartitionPosition)
	}
	if _, ok := om.offsets[pos.Group][pos.Topic]; !ok {
		om.offsets[pos.Group][pos.Topic] = make(map[int]types.PartitionPosition)
	}

	if prev, ok := om.offsets[pos.Group][pos.Topic][pos.Partition]; ok {
		if pos.CommittedOffset < prev.CommittedOffset {
			pos.CommittedOffset = prev.CommittedOffset
		}
		if pos.HighWaterMark < prev.HighWaterMark {
			pos.HighWaterMark = prev.HighWaterMark
		}
	}
	om.offsets[pos.Group][pos.Topic][pos.Partition] = pos
	om.updatedAt = time.Now()
}

// Snapshot returns every position for a group and topic ordered by partition.
func (om *OffsetManager) Snapshot(groupID, topic string) []types.PartitionPosition {
	om.mu.RLock()
	defer om.mu.RUnlock()

	partitions := om.offsets[groupID][topic]
	out := make([]types.PartitionPosition, 0, len(partitions))
	for _, pos := range partitions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return out
}

// TotalLag sums the lag of every partition that has a committed offset.
func (om *OffsetManager) TotalLag(groupID, topic string) int64 {
	var total int64
	for _, pos := range om.Snapshot(groupID, topic) {
		if lag, ok := pos.Lag(); ok {
			total += lag
		}
	}
	return total
}

func (om *OffsetManager) UpdatedAt() time.Time {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return om.updatedAt
}
