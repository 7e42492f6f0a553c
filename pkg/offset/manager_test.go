package offset_test

import (
	"testing"

	"github.com/downfa11-org/go-relay/pkg/offset"
	"github.com/downfa11-org/go-relay/pkg/types"
)

func TestOffsetManager(t *testing.T) {
	om := offset.NewOffsetManager()

	groupID := "group1"
	topic := "topicA"
	partition := 0

	// GetPosition before any record → error
	if _, err := om.GetPosition(groupID, topic, partition); err == nil {
		t.Fatalf("expected error for unknown position, got nil")
	}
	if !om.UpdatedAt().IsZero() {
		t.Fatalf("expected zero UpdatedAt before any record")
	}

	om.Record(types.PartitionPosition{Group: groupID, Topic: topic, Partition: partition, CommittedOffset: 42, HighWaterMark: 50})

	pos, err := om.GetPosition(groupID, topic, partition)
	if err != nil {
		t.Fatalf("GetPosition failed after record: %v", err)
	}
	if lag, ok := pos.Lag(); !ok || lag != 8 {
		t.Fatalf("expected lag 8, got %d (ok=%v)", lag, ok)
	}
	if om.UpdatedAt().IsZero() {
		t.Fatalf("expected UpdatedAt to be set")
	}
}

func TestOffsetManagerMonotonic(t *testing.T) {
	om := offset.NewOffsetManager()

	om.Record(types.PartitionPosition{Group: "g", Topic: "t", Partition: 1, CommittedOffset: 10, HighWaterMark: 20})
	om.Record(types.PartitionPosition{Group: "g", Topic: "t", Partition: 1, CommittedOffset: 5, HighWaterMark: 15})

	pos, err := om.GetPosition("g", "t", 1)
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if pos.CommittedOffset != 10 || pos.HighWaterMark != 20 {
		t.Fatalf("positions must not move backwards, got %+v", pos)
	}
}

func TestOffsetManagerSnapshotAndTotalLag(t *testing.T) {
	om := offset.NewOffsetManager()

	om.Record(types.PartitionPosition{Group: "g", Topic: "t", Partition: 2, CommittedOffset: 7, HighWaterMark: 10})
	om.Record(types.PartitionPosition{Group: "g", Topic: "t", Partition: 0, CommittedOffset: 42, HighWaterMark: 50})
	om.Record(types.PartitionPosition{Group: "g", Topic: "t", Partition: 1, CommittedOffset: -1, HighWaterMark: 3})

	snap := om.Snapshot("g", "t")
	if len(snap) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(snap))
	}
	for i, pos := range snap {
		if pos.Partition != i {
			t.Fatalf("snapshot not ordered by partition: %+v", snap)
		}
	}

	if got := om.TotalLag("g", "t"); got != 11 {
		t.Fatalf("expected total lag 11, got %d", got)
	}
	if got := len(om.Snapshot("other", "t")); got != 0 {
		t.Fatalf("expected empty snapshot for unknown group, got %d", got)
	}
}
