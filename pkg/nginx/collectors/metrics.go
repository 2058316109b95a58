package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
)

const metricsProbeTimeout = time.Second

// StubStatus holds the counters exposed by the plain-text stub status page
type StubStatus struct {
	ActiveConnections int64
	Accepts           int64
	Handled           int64
	Requests          int64
	Reading           int64
	Writing           int64
	Waiting           int64
}

// metricsCollector polls the resolved status endpoints. Gauges are reported
// as-is; monotonic counters are reported as deltas against the previous run.
type metricsCollector struct {
	src      Source
	deps     Deps
	interval time.Duration

	mutex            sync.Mutex
	previousCounters map[string]int64
	counters         map[string]int64
	gauges           map[string]int64
}

func NewMetricsCollector(src Source, deps Deps, interval time.Duration) Collector {
	return &metricsCollector{
		src:              src,
		deps:             deps,
		interval:         interval,
		previousCounters: make(map[string]int64),
		counters:         make(map[string]int64),
		gauges:           make(map[string]int64),
	}
}

func (c *metricsCollector) ID() string {
	return fmt.Sprintf("%s_metrics_%s", c.src.TypeTag(), c.src.LocalID())
}

func (c *metricsCollector) Aspect() Aspect {
	return AspectMetrics
}

func (c *metricsCollector) Interval() time.Duration {
	return c.interval
}

func (c *metricsCollector) Collect(ctx context.Context) error {
	if c.src.StubStatusEnabled() {
		if err := c.collectStub(); err != nil {
			return err
		}
	}
	if c.src.PlusStatusEnabled() && c.src.PlusStatusInternalURL() != "" {
		if err := c.collectPlus(); err != nil {
			return err
		}
	}
	return nil
}

func (c *metricsCollector) collectStub() error {
	body, err := c.deps.Probe.Get(c.src.StubStatusURL(), metricsProbeTimeout, false, true)
	if err != nil {
		return err
	}

	status, err := ParseStubStatus(body)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.gauges["nginx.http.conn.active"] = status.ActiveConnections
	c.gauges["nginx.http.conn.reading"] = status.Reading
	c.gauges["nginx.http.conn.writing"] = status.Writing
	c.gauges["nginx.http.conn.idle"] = status.Waiting

	c.incrementCounter("nginx.http.conn.accepted", status.Accepts)
	c.incrementCounter("nginx.http.conn.handled", status.Handled)
	c.incrementCounter("nginx.http.request.count", status.Requests)

	c.deps.Logger.Debugf("Collected stub status, id: %s, active: %d", c.ID(), status.ActiveConnections)
	return nil
}

func (c *metricsCollector) collectPlus() error {
	body, err := c.deps.Probe.Get(c.src.PlusStatusInternalURL(), metricsProbeTimeout, true, true)
	if err != nil {
		return err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return errors.NewProbeProtocolError("plus status payload is not valid JSON", err).
			WithContext("url", c.src.PlusStatusInternalURL())
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if raw, ok := payload["connections"]; ok {
		var connections struct {
			Accepted int64 `json:"accepted"`
			Dropped  int64 `json:"dropped"`
			Active   int64 `json:"active"`
			Idle     int64 `json:"idle"`
		}
		if err := json.Unmarshal(raw, &connections); err == nil {
			c.gauges["plus.http.conn.active"] = connections.Active
			c.gauges["plus.http.conn.idle"] = connections.Idle
			c.incrementCounter("plus.http.conn.accepted", connections.Accepted)
			c.incrementCounter("plus.http.conn.dropped", connections.Dropped)
		}
	}

	c.deps.Logger.Debugf("Collected plus status, id: %s", c.ID())
	return nil
}

// incrementCounter records the delta against the previous observation.
// Negative deltas (process restart reset the counters) are skipped and the
// base is re-established. Callers hold the mutex.
func (c *metricsCollector) incrementCounter(name string, value int64) {
	previous, seen := c.previousCounters[name]
	if seen {
		delta := value - previous
		if delta >= 0 {
			c.counters[name] += delta
		}
	}
	c.previousCounters[name] = value
}

// Counters returns a copy of the accumulated counter deltas
func (c *metricsCollector) Counters() map[string]int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		result[name] = value
	}
	return result
}

// Gauges returns a copy of the latest gauge values
func (c *metricsCollector) Gauges() map[string]int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make(map[string]int64, len(c.gauges))
	for name, value := range c.gauges {
		result[name] = value
	}
	return result
}

// ParseStubStatus parses the plain-text stub status payload:
//
//	Active connections: 291
//	server accepts handled requests
//	 16630948 16630948 31070465
//	Reading: 6 Writing: 179 Waiting: 106
func ParseStubStatus(body string) (StubStatus, error) {
	var status StubStatus

	lines := strings.Split(body, "\n")
	sawActive := false
	sawCounters := false
	for i, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Active connections:"):
			value, err := parseCounterField(strings.TrimPrefix(line, "Active connections:"))
			if err != nil {
				return status, errors.NewProbeProtocolError("malformed active connections line", err)
			}
			status.ActiveConnections = value
			sawActive = true
		case strings.HasPrefix(line, "server accepts handled requests"):
			if i+1 >= len(lines) {
				return status, errors.NewProbeProtocolError("missing accepts/handled/requests line", nil)
			}
			fields := strings.Fields(lines[i+1])
			if len(fields) < 3 {
				return status, errors.NewProbeProtocolError("malformed accepts/handled/requests line", nil)
			}
			values := make([]int64, 3)
			for j := 0; j < 3; j++ {
				value, err := strconv.ParseInt(fields[j], 10, 64)
				if err != nil {
					return status, errors.NewProbeProtocolError("malformed accepts/handled/requests line", err)
				}
				values[j] = value
			}
			status.Accepts, status.Handled, status.Requests = values[0], values[1], values[2]
			sawCounters = true
		case strings.HasPrefix(line, "Reading:"):
			fields := strings.Fields(line)
			for j := 0; j+1 < len(fields); j += 2 {
				value, err := strconv.ParseInt(fields[j+1], 10, 64)
				if err != nil {
					continue
				}
				switch strings.TrimSuffix(fields[j], ":") {
				case "Reading":
					status.Reading = value
				case "Writing":
					status.Writing = value
				case "Waiting":
					status.Waiting = value
				}
			}
		}
	}

	if !sawActive || !sawCounters {
		return status, errors.NewProbeProtocolError("body is not a stub status payload", nil)
	}
	return status, nil
}

func parseCounterField(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
