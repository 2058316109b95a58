package logging

type Logger interface {
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type prefixLogger struct {
	prefix string
	next   Logger
}

// NewPrefixLogger returns a logger that prepends prefix to every message
func NewPrefixLogger(prefix string, next Logger) Logger {
	return &prefixLogger{
		prefix: prefix,
		next:   next,
	}
}

func (l *prefixLogger) Debugf(msg string, args ...interface{}) {
	l.next.Debugf(l.prefix+msg, args...)
}

func (l *prefixLogger) Infof(msg string, args ...interface{}) {
	l.next.Infof(l.prefix+msg, args...)
}

func (l *prefixLogger) Warnf(msg string, args ...interface{}) {
	l.next.Warnf(l.prefix+msg, args...)
}

func (l *prefixLogger) Errorf(msg string, args ...interface{}) {
	l.next.Errorf(l.prefix+msg, args...)
}

type nullLogger struct{}

// NewNullLogger returns a logger that discards everything
func NewNullLogger() Logger {
	return nullLogger{}
}

func (nullLogger) Debugf(msg string, args ...interface{}) {}
func (nullLogger) Infof(msg string, args ...interface{})  {}
func (nullLogger) Warnf(msg string, args ...interface{})  {}
func (nullLogger) Errorf(msg string, args ...interface{}) {}
