package collectors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CombinedFormat is the built-in nginx access log format used when a
// directive names no explicit log_format
const CombinedFormat = `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"`

// accessLogCollector tails one access log file and aggregates per-status
// request counts from the lines appended between runs.
type accessLogCollector struct {
	filename   string
	formatName string
	format     string
	deps       Deps
	interval   time.Duration
	tailer     *logTailer

	mutex        sync.Mutex
	linesSeen    int64
	statusCounts map[string]int64
}

// NewAccessLogCollector opens the access log file and positions the tail at
// its current end. Open failures come back as io/permission errors so the
// caller can contain them.
func NewAccessLogCollector(filename string, formatName string, format string, deps Deps, interval time.Duration) (Collector, error) {
	tailer, err := newLogTailer(filename)
	if err != nil {
		return nil, err
	}

	return &accessLogCollector{
		filename:     filename,
		formatName:   formatName,
		format:       format,
		deps:         deps,
		interval:     interval,
		tailer:       tailer,
		statusCounts: make(map[string]int64),
	}, nil
}

func (c *accessLogCollector) ID() string {
	return fmt.Sprintf("access_log_%s", c.filename)
}

func (c *accessLogCollector) Aspect() Aspect {
	return AspectAccessLog
}

func (c *accessLogCollector) Interval() time.Duration {
	return c.interval
}

func (c *accessLogCollector) Collect(ctx context.Context) error {
	lines, err := c.tailer.ReadNewLines()
	if err != nil {
		return err
	}

	statusIndex := statusFieldIndex(c.format)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, line := range lines {
		c.linesSeen++
		if statusIndex < 0 {
			continue
		}
		fields := splitLogFields(line)
		if statusIndex < len(fields) {
			status := fields[statusIndex]
			if _, err := strconv.Atoi(status); err == nil {
				c.statusCounts[status[:1]+"xx"]++
			}
		}
	}

	c.deps.Logger.Debugf("Collected access log, file: %s, new_lines: %d", c.filename, len(lines))
	return nil
}

// LinesSeen returns the number of log lines observed so far
func (c *accessLogCollector) LinesSeen() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.linesSeen
}

// StatusCounts returns a copy of the per-class response status counts
func (c *accessLogCollector) StatusCounts() map[string]int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make(map[string]int64, len(c.statusCounts))
	for class, count := range c.statusCounts {
		result[class] = count
	}
	return result
}

// statusFieldIndex locates the $status variable in the field-split view of
// the format string, or -1 when the format has no status field. The format
// and the log lines it produces must be split by the same rules, so a
// multi-token field like [$time_local] or "$request" counts as one field in
// both.
func statusFieldIndex(format string) int {
	for i, field := range splitLogFields(format) {
		if strings.Contains(field, "$status") {
			return i
		}
	}
	return -1
}

// splitLogFields splits an access log line (or format string) on whitespace,
// keeping quoted strings and bracketed timestamps together as single fields.
// The delimiters themselves are stripped.
func splitLogFields(s string) []string {
	var fields []string
	var current strings.Builder
	var inQuotes, inBrackets bool

	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '"' && !inBrackets:
			inQuotes = !inQuotes
		case r == '[' && !inQuotes && !inBrackets:
			inBrackets = true
		case r == ']' && !inQuotes && inBrackets:
			inBrackets = false
		case (r == ' ' || r == '\t') && !inQuotes && !inBrackets:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return fields
}
