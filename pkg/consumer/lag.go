package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/offset"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/robfig/cron/v3"
)

// LagMonitor periodically samples committed offsets and high-water marks for the group.
type LagMonitor struct {
	cfg     *config.Config
	dial    AdminDialer
	offsets *offset.OffsetManager

	mu      sync.Mutex
	sched   *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cycleMu sync.Mutex
}

func NewLagMonitor(cfg *config.Config, dial AdminDialer, offsets *offset.OffsetManager) *LagMonitor {
	if offsets == nil {
		offsets = offset.NewOffsetManager()
	}
	return &LagMonitor{cfg: cfg, dial: dial, offsets: offsets}
}

func (m *LagMonitor) Offsets() *offset.OffsetManager { return m.offsets }

// Start schedules a cycle every lag_update_interval and runs one right away.
// Calling Start on a running monitor does nothing.
func (m *LagMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{}
	sched := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))
	spec := fmt.Sprintf("@every %s", m.cfg.LagUpdateInterval)
	if _, err := sched.AddFunc(spec, func() { m.cycle(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule lag monitor: %w", err)
	}

	m.sched, m.cancel = sched, cancel
	sched.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.cycle(ctx)
	}()

	util.Info("Lag monitor started for group %s (every %s)", m.cfg.GroupID, m.cfg.LagUpdateInterval)
	return nil
}

// Stop cancels the schedule and waits for an in-flight cycle.
func (m *LagMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched == nil {
		return
	}

	m.cancel()
	<-m.sched.Stop().Done()
	m.wg.Wait()
	m.sched, m.cancel = nil, nil
	util.Info("Lag monitor stopped")
}

func (m *LagMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched != nil
}

func (m *LagMonitor) cycle(ctx context.Context) {
	if !m.cycleMu.TryLock() {
		return
	}
	defer m.cycleMu.Unlock()

	if err := m.Update(ctx); err != nil && ctx.Err() == nil {
		metrics.ConsumerErrors.WithLabelValues(m.cfg.Topic, "all", "lag_update").Inc()
		util.Warn("Lag update failed for group %s: %v", m.cfg.GroupID, err)
	}
}

// Update samples every partition once and publishes the lag gauges.
func (m *LagMonitor) Update(ctx context.Context) error {
	topic, group := m.cfg.Topic, m.cfg.GroupID

	admin, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial admin: %w", err)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			util.Warn("Failed to close admin connection: %v", err)
		}
	}()

	partitions, err := admin.Partitions(ctx, topic)
	if err != nil {
		return err
	}
	committed, err := admin.CommittedOffsets(ctx, group, topic, partitions)
	if err != nil {
		return err
	}
	hwms, err := admin.HighWaterMarks(ctx, topic, partitions)
	if err != nil {
		return err
	}

	for _, p := range partitions {
		co, ok := committed[p]
		if !ok {
			co = -1
		}
		pos := types.PartitionPosition{
			Group:           group,
			Topic:           topic,
			Partition:       p,
			CommittedOffset: co,
			HighWaterMark:   hwms[p],
		}

		label := metrics.PartitionLabel(p)
		metrics.ConsumerHighWaterMark.WithLabelValues(topic, label).Set(float64(pos.HighWaterMark))
		if lag, ok := pos.Lag(); ok {
			metrics.ConsumerLag.WithLabelValues(topic, label, group).Set(float64(lag))
			metrics.ConsumerCurrentOffset.WithLabelValues(topic, label, group).Set(float64(co))
		}
		m.offsets.Record(pos)
	}

	util.Debug("Lag updated for %s/%s: total=%d over %d partitions", group, topic, m.offsets.TotalLag(group, topic), len(partitions))
	return nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	util.Debug("[cron] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	util.Error("[cron] %s: %v %v", msg, err, keysAndValues)
}
