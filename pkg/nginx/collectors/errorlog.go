package collectors

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// severityRank orders the nginx error log levels
var severityRank = map[string]int{
	"debug":  0,
	"info":   1,
	"notice": 2,
	"warn":   3,
	"error":  4,
	"crit":   5,
	"alert":  6,
	"emerg":  7,
}

// errorLogCollector tails one error log file and counts lines at or above
// the severity the log is configured with.
type errorLogCollector struct {
	filename string
	level    string
	deps     Deps
	interval time.Duration
	tailer   *logTailer

	mutex       sync.Mutex
	levelCounts map[string]int64
}

// NewErrorLogCollector opens the error log file and positions the tail at
// its current end. Open failures come back as io/permission errors so the
// caller can contain them.
func NewErrorLogCollector(filename string, level string, deps Deps, interval time.Duration) (Collector, error) {
	tailer, err := newLogTailer(filename)
	if err != nil {
		return nil, err
	}

	if _, known := severityRank[level]; !known {
		level = "error"
	}

	return &errorLogCollector{
		filename:    filename,
		level:       level,
		deps:        deps,
		interval:    interval,
		tailer:      tailer,
		levelCounts: make(map[string]int64),
	}, nil
}

func (c *errorLogCollector) ID() string {
	return fmt.Sprintf("error_log_%s", c.filename)
}

func (c *errorLogCollector) Aspect() Aspect {
	return AspectErrorLog
}

func (c *errorLogCollector) Interval() time.Duration {
	return c.interval
}

func (c *errorLogCollector) Collect(ctx context.Context) error {
	lines, err := c.tailer.ReadNewLines()
	if err != nil {
		return err
	}

	threshold := severityRank[c.level]

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, line := range lines {
		level, ok := lineSeverity(line)
		if !ok {
			continue
		}
		if severityRank[level] >= threshold {
			c.levelCounts[level]++
		}
	}

	c.deps.Logger.Debugf("Collected error log, file: %s, new_lines: %d", c.filename, len(lines))
	return nil
}

// LevelCounts returns a copy of the per-severity line counts
func (c *errorLogCollector) LevelCounts() map[string]int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make(map[string]int64, len(c.levelCounts))
	for level, count := range c.levelCounts {
		result[level] = count
	}
	return result
}

// lineSeverity extracts the bracketed severity tag from an error log line,
// e.g. `2024/01/01 00:00:00 [error] 123#0: ...`
func lineSeverity(line string) (string, bool) {
	start := strings.IndexByte(line, '[')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(line[start:], ']')
	if end < 0 {
		return "", false
	}
	level := line[start+1 : start+end]
	_, known := severityRank[level]
	return level, known
}

func (c *errorLogCollector) String() string {
	return fmt.Sprintf("error log collector, file: %s, level: %s", c.filename, c.level)
}
