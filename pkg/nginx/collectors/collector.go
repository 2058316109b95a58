package collectors

import (
	"context"
	"fmt"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/probe"
)

// Aspect names one observed dimension of an instance
type Aspect string

const (
	AspectMeta      Aspect = "meta"
	AspectMetrics   Aspect = "metrics"
	AspectConfigs   Aspect = "configs"
	AspectAccessLog Aspect = "access_log"
	AspectErrorLog  Aspect = "error_log"
)

// Collector is an independently scheduled unit that periodically gathers one
// aspect of instance data. Collectors are constructed during instance
// assembly and only run after assembly has fully completed.
type Collector interface {
	ID() string
	Aspect() Aspect
	Interval() time.Duration
	Collect(ctx context.Context) error
}

// Source exposes the instance facts collectors read. Implemented by the
// instance model; kept narrow so collectors never reach back into
// construction state.
type Source interface {
	TypeTag() string
	LocalID() string
	RootUUID() string
	Pid() int
	Version() string
	WorkerCount() int
	Prefix() string
	BinPath() string
	ConfPath() string
	BuildInfo() map[string]string
	StubStatusURL() string
	StubStatusEnabled() bool
	PlusStatusInternalURL() string
	PlusStatusExternalURL() string
	PlusStatusEnabled() bool
}

// Deps bundles the shared capabilities collectors use
type Deps struct {
	Probe  probe.Client
	Events eventd.Sink
	Logger logging.Logger
}

// FactoryKey identifies a registered collector factory
type FactoryKey struct {
	Kind   string
	Aspect Aspect
}

// Factory constructs a registry-resolved collector
type Factory func(src Source, deps Deps, interval time.Duration) Collector

// factories is the static registry mapping (instance kind, aspect) to a
// factory, fixed at compile time
var factories = map[FactoryKey]Factory{
	{Kind: "nginx", Aspect: AspectMeta}:              NewMetaCollector,
	{Kind: "nginx", Aspect: AspectMetrics}:           NewMetricsCollector,
	{Kind: "container_nginx", Aspect: AspectMeta}:    NewMetaCollector,
	{Kind: "container_nginx", Aspect: AspectMetrics}: NewMetricsCollector,
}

// New resolves a collector factory by (kind, aspect) and constructs the
// collector. A missing registration is a programming defect and aborts
// instance construction.
func New(kind string, aspect Aspect, src Source, deps Deps, interval time.Duration) (Collector, error) {
	factory, ok := factories[FactoryKey{Kind: kind, Aspect: aspect}]
	if !ok {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("no collector registered for kind %q aspect %q", kind, aspect), nil)
	}
	return factory(src, deps, interval), nil
}
