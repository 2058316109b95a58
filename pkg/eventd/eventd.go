package eventd

import (
	"sync"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/logging"

	"github.com/google/uuid"
)

// Event levels
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Event is a discovery or lifecycle notice about a monitored instance
type Event struct {
	UUID      string    `json:"uuid"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives events. Implementations must be safe for concurrent use:
// several instances may be under construction in parallel.
type Sink interface {
	Emit(level string, message string)
}

func newEvent(level string, message string) Event {
	return Event{
		UUID:      uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

type logSink struct {
	logger logging.Logger
}

// NewLogSink returns a sink that writes events to the logger
func NewLogSink(logger logging.Logger) Sink {
	return &logSink{logger: logger}
}

func (s *logSink) Emit(level string, message string) {
	event := newEvent(level, message)
	switch level {
	case LevelDebug:
		s.logger.Debugf("Event, uuid: %s, message: %s", event.UUID, event.Message)
	case LevelWarning:
		s.logger.Warnf("Event, uuid: %s, message: %s", event.UUID, event.Message)
	case LevelCritical:
		s.logger.Errorf("Event, uuid: %s, message: %s", event.UUID, event.Message)
	default:
		s.logger.Infof("Event, uuid: %s, message: %s", event.UUID, event.Message)
	}
}

// MemorySink collects events in memory, mainly for tests
type MemorySink struct {
	mutex  sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(level string, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, newEvent(level, message))
}

// Events returns a copy of the collected events in emission order
func (s *MemorySink) Events() []Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

// Messages returns the collected event messages in emission order
func (s *MemorySink) Messages() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	messages := make([]string, 0, len(s.events))
	for _, event := range s.events {
		messages = append(messages, event.Message)
	}
	return messages
}
