package dbmo

import (
	"context"
	"sync"
	"time"
)

// 全局并发限制：最多 5 个连接池同时进行 Ping，避免慢库阻塞所有检查
var pingLimit = make(chan struct{}, 5)

// Monitor pings the pool of an engine on a timer and logs when the backend becomes unreachable
// and when it comes back. Checks run every interval while healthy and every failInterval after
// a failure.
type Monitor struct {
	shared       *pool
	interval     time.Duration
	failInterval time.Duration

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	healthy bool
}

// Monitor starts a health monitor on the engine's pool. The monitor stops with Stop or when
// the engine is closed. A non-positive failInterval uses interval.
func (e *Engine) Monitor(interval, failInterval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if failInterval <= 0 {
		failInterval = interval
	}
	m := &Monitor{
		shared:       e.shared,
		interval:     interval,
		failInterval: failInterval,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		healthy:      true,
	}
	e.shared.addMonitor(m)
	go m.run()
	return m
}

// Healthy reports the result of the last check. A monitor starts out healthy.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// Stop ends the monitor and waits for its goroutine to exit. It is safe to call more than once.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)
	current := m.interval
	ticker := time.NewTicker(current)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			next := m.interval
			if !m.check() {
				next = m.failInterval
			}
			if next != current {
				current = next
				ticker.Reset(current)
			}
		}
	}
}

// check pings once. Only state changes are logged, before the new state becomes visible.
func (m *Monitor) check() bool {
	select {
	case pingLimit <- struct{}{}:
		defer func() { <-pingLimit }()
	case <-m.stopCh:
		return m.Healthy()
	default:
		// 限流已满，跳过本次检查
		return m.Healthy()
	}

	ctx, cancel := context.WithTimeout(context.Background(), MonitorPingTimeout)
	defer cancel()
	err := m.shared.ping(ctx)
	ok := err == nil

	if m.Healthy() != ok {
		fields := map[string]any{"provider": m.shared.provider.Name(), "time": time.Now()}
		if ok {
			logTo(m.shared.opts.Logger, LevelInfo, "database connection recovered", fields)
		} else {
			fields["error"] = fixStringEncoding(err.Error())
			logTo(m.shared.opts.Logger, LevelError, "database connection lost", fields)
		}
		m.mu.Lock()
		m.healthy = ok
		m.mu.Unlock()
	}
	return ok
}
