package nginx

import (
	"time"

	agentconfig "github.com/core-tools/hsu-nginx-agent/pkg/config"
	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx/collectors"
	nginxconfig "github.com/core-tools/hsu-nginx-agent/pkg/nginx/config"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx/status"
	"github.com/core-tools/hsu-nginx-agent/pkg/probe"
)

// Kind is the instance variant type tag, an external reporting label only:
// the container variant shares all behavior with the base variant.
type Kind string

const (
	KindNginx          Kind = "nginx"
	KindContainerNginx Kind = "container_nginx"
)

// Definition is the projection the manager uses to match a freshly
// discovered instance against a previously known one across discovery scans
type Definition struct {
	Type     string `json:"type" db:"type"`
	LocalID  string `json:"local_id" db:"local_id"`
	RootUUID string `json:"root_uuid,omitempty" db:"root_uuid"`
}

// DiscoveryData is the construction input handed in by the manager. The
// process facts are immutable snapshots: a change means re-discovery, not a
// refresh of an existing instance.
type DiscoveryData struct {
	LocalID  string `json:"local_id"`
	RootUUID string `json:"root_uuid,omitempty"`
	Pid      int    `json:"pid"`
	Version  string `json:"version"`
	Workers  int    `json:"workers"`
	Prefix   string `json:"prefix"`
	BinPath  string `json:"bin_path"`
	ConfPath string `json:"conf_path"`

	// Per-instance behavior overrides; nil falls back to the deployment-wide
	// default, and only an explicit true takes precedence over it
	UploadConfig *bool `json:"upload_config,omitempty"`
	RunTest      *bool `json:"run_test,omitempty"`
	UploadSSL    *bool `json:"upload_ssl,omitempty"`

	Filters []FilterSpec `json:"filters,omitempty"`
}

// Deps bundles the shared capabilities an instance is constructed with.
// Probe and Events may be used by several instances constructed in parallel
// and must be safe for concurrent use.
type Deps struct {
	AgentConfig *agentconfig.AgentConfig
	Probe       probe.Client
	Events      eventd.Sink
	Logger      logging.Logger

	// Config overrides the file-backed parsed-config facade when set
	Config nginxconfig.Config

	// IntrospectBinary overrides binary version introspection when set
	IntrospectBinary func(binPath string) (BuildInfo, error)
}

// Instance models one discovered nginx process. Construction is a single
// synchronous sequence: parse config, resolve status endpoints, assemble
// collectors. A construction error means no instance at all; a missing log
// file only costs its collector.
type Instance struct {
	kind   Kind
	logger logging.Logger

	localID  string
	rootUUID string
	pid      int
	version  string
	workers  int
	prefix   string
	binPath  string
	confPath string

	uploadConfig  bool
	runConfigTest bool
	uploadSSL     bool

	buildInfo BuildInfo
	filters   []Filter
	config    nginxconfig.Config
	intervals map[string]time.Duration

	stubStatusURL         string
	plusStatusInternalURL string
	plusStatusExternalURL string

	collectors []collectors.Collector
}

// NewInstance constructs a base nginx instance from discovery data
func NewInstance(data DiscoveryData, deps Deps) (*Instance, error) {
	return newInstance(KindNginx, data, deps)
}

// NewContainerInstance constructs the container variant. It only differs in
// the type tag reported through Definition.
func NewContainerInstance(data DiscoveryData, deps Deps) (*Instance, error) {
	return newInstance(KindContainerNginx, data, deps)
}

func newInstance(kind Kind, data DiscoveryData, deps Deps) (*Instance, error) {
	if err := ValidateDiscoveryData(data); err != nil {
		return nil, err
	}
	if deps.AgentConfig == nil {
		deps.AgentConfig = agentconfig.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNullLogger()
	}

	defaults := deps.AgentConfig.Containers.Nginx

	instance := &Instance{
		kind:          kind,
		logger:        deps.Logger,
		localID:       data.LocalID,
		rootUUID:      data.RootUUID,
		pid:           data.Pid,
		version:       data.Version,
		workers:       data.Workers,
		prefix:        data.Prefix,
		binPath:       data.BinPath,
		confPath:      data.ConfPath,
		uploadConfig:  resolveFlag(data.UploadConfig, defaults.UploadConfig),
		runConfigTest: resolveFlag(data.RunTest, defaults.RunTest),
		uploadSSL:     resolveFlag(data.UploadSSL, defaults.UploadSSL),
		intervals:     resolveIntervals(defaults.PollIntervals),
		filters:       NewFilters(data.Filters),
	}

	deps.Logger.Infof("Constructing nginx instance, kind: %s, local_id: %s, pid: %d, version: %s",
		kind, data.LocalID, data.Pid, data.Version)

	introspect := deps.IntrospectBinary
	if introspect == nil {
		introspect = Introspect
	}
	buildInfo, err := introspect(data.BinPath)
	if err != nil {
		return nil, err
	}
	instance.buildInfo = buildInfo

	instance.config = deps.Config
	if instance.config == nil {
		instance.config = nginxconfig.NewFileConfig(data.ConfPath, data.Prefix, deps.Logger)
	}
	if err := instance.config.FullParse(); err != nil {
		return nil, err
	}

	resolver := status.NewResolver(deps.Probe, deps.Events, deps.Logger)
	overrides := deps.AgentConfig.Nginx

	instance.plusStatusExternalURL, instance.plusStatusInternalURL = resolver.ResolvePlus(
		instance.config.PlusStatusInternalURLs(),
		instance.config.PlusStatusExternalURLs(),
		overrides.PlusStatus,
	)
	instance.stubStatusURL = resolver.ResolveStub(
		instance.config.StubStatusURLs(),
		overrides.StubStatus,
	)

	collectorDeps := collectors.Deps{
		Probe:  deps.Probe,
		Events: deps.Events,
		Logger: deps.Logger,
	}
	if err := instance.setupCollectors(collectorDeps); err != nil {
		return nil, err
	}

	deps.Logger.Infof("Nginx instance constructed, local_id: %s, collectors: %d, stub_status: %t, plus_status: %t",
		instance.localID, len(instance.collectors), instance.StubStatusEnabled(), instance.PlusStatusEnabled())

	return instance, nil
}

// resolveFlag implements the override-or-default rule: only an explicit true
// override beats the deployment-wide default
func resolveFlag(override *bool, deploymentDefault bool) bool {
	if override != nil && *override {
		return true
	}
	return deploymentDefault
}

func resolveIntervals(configured map[string]time.Duration) map[string]time.Duration {
	if len(configured) == 0 {
		return map[string]time.Duration{
			"default": agentconfig.DefaultPollInterval,
		}
	}
	intervals := make(map[string]time.Duration, len(configured))
	for category, interval := range configured {
		intervals[category] = interval
	}
	return intervals
}

// Interval returns the polling interval for a collector category, falling
// back to the "default" entry
func (i *Instance) Interval(category string) time.Duration {
	if interval, ok := i.intervals[category]; ok {
		return interval
	}
	if interval, ok := i.intervals["default"]; ok {
		return interval
	}
	return agentconfig.DefaultPollInterval
}

// Definition reports the identity projection. The type tag is fixed per
// variant and never derived from instance data.
func (i *Instance) Definition() Definition {
	return Definition{
		Type:     string(i.kind),
		LocalID:  i.localID,
		RootUUID: i.rootUUID,
	}
}

// Collectors returns the collectors assembled at construction, in
// attachment order
func (i *Instance) Collectors() []collectors.Collector {
	return i.collectors
}

func (i *Instance) Kind() Kind {
	return i.kind
}

func (i *Instance) UploadConfig() bool {
	return i.uploadConfig
}

func (i *Instance) RunConfigTest() bool {
	return i.runConfigTest
}

func (i *Instance) UploadSSL() bool {
	return i.uploadSSL
}

func (i *Instance) Filters() []Filter {
	return i.filters
}

func (i *Instance) Config() nginxconfig.Config {
	return i.config
}

// collectors.Source implementation

func (i *Instance) TypeTag() string {
	return string(i.kind)
}

func (i *Instance) LocalID() string {
	return i.localID
}

func (i *Instance) RootUUID() string {
	return i.rootUUID
}

func (i *Instance) Pid() int {
	return i.pid
}

func (i *Instance) Version() string {
	return i.version
}

func (i *Instance) WorkerCount() int {
	return i.workers
}

func (i *Instance) Prefix() string {
	return i.prefix
}

func (i *Instance) BinPath() string {
	return i.binPath
}

func (i *Instance) ConfPath() string {
	return i.confPath
}

func (i *Instance) BuildInfo() map[string]string {
	return i.buildInfo.Map()
}

func (i *Instance) StubStatusURL() string {
	return i.stubStatusURL
}

// StubStatusEnabled is a pure function of the resolved stub status URL
func (i *Instance) StubStatusEnabled() bool {
	return i.stubStatusURL != ""
}

func (i *Instance) PlusStatusInternalURL() string {
	return i.plusStatusInternalURL
}

func (i *Instance) PlusStatusExternalURL() string {
	return i.plusStatusExternalURL
}

// PlusStatusEnabled is a pure function of the resolved plus status URLs
func (i *Instance) PlusStatusEnabled() bool {
	return i.plusStatusInternalURL != "" || i.plusStatusExternalURL != ""
}
