package types

type ConsumerState int32

const (
	ConsumerStateDisconnected ConsumerState = iota
	ConsumerStateConnecting
	ConsumerStateSubscribed
	ConsumerStateRunning
	ConsumerStateStopping
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerStateDisconnected:
		return "DISCONNECTED"
	case ConsumerStateConnecting:
		return "CONNECTING"
	case ConsumerStateSubscribed:
		return "SUBSCRIBED"
	case ConsumerStateRunning:
		return "RUNNING"
	case ConsumerStateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// PartitionPosition is the consumer group's position on one partition.
// CommittedOffset is -1 when the group has not committed anything yet.
type PartitionPosition struct {
	Group           string `json:"group"`
	Topic           string `json:"topic"`
	Partition       int    `json:"partition"`
	CommittedOffset int64  `json:"committed_offset"`
	HighWaterMark   int64  `json:"high_water_mark"`
}

// Lag returns high_water_mark - committed_offset, or false when nothing is committed.
func (p PartitionPosition) Lag() (int64, bool) {
	if p.CommittedOffset < 0 {
		return 0, false
	}
	return p.HighWaterMark - p.CommittedOffset, true
}
