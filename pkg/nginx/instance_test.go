package nginx

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	agentconfig "github.com/core-tools/hsu-nginx-agent/pkg/config"
	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx/collectors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubBody = "Active connections: 291 \nserver accepts handled requests\n 100 90 1000 \nReading: 6 Writing: 179 Waiting: 106 \n"

type fakeProbe struct {
	mutex     sync.Mutex
	responses map[string]string
}

func (f *fakeProbe) Get(url string, timeout time.Duration, expectJSON bool, logOnFailure bool) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if body, ok := f.responses[url]; ok {
		return body, nil
	}
	return "", errors.NewProbeNetworkError("connection refused", nil)
}

type fakeConfig struct {
	stubURLs     []string
	plusInternal []string
	plusExternal []string
	accessLogs   map[string]string
	errorLogs    map[string]string
	logFormats   map[string]string
	parseErr     error
	parses       int
}

func (c *fakeConfig) FullParse() error {
	c.parses++
	return c.parseErr
}
func (c *fakeConfig) Path() string                     { return "/etc/nginx/nginx.conf" }
func (c *fakeConfig) Checksum() string                 { return "checksum" }
func (c *fakeConfig) StubStatusURLs() []string         { return c.stubURLs }
func (c *fakeConfig) PlusStatusInternalURLs() []string { return c.plusInternal }
func (c *fakeConfig) PlusStatusExternalURLs() []string { return c.plusExternal }
func (c *fakeConfig) AccessLogs() map[string]string    { return c.accessLogs }
func (c *fakeConfig) ErrorLogs() map[string]string     { return c.errorLogs }
func (c *fakeConfig) LogFormats() map[string]string    { return c.logFormats }

func fakeIntrospect(binPath string) (BuildInfo, error) {
	return BuildInfo{Version: "1.25.3"}, nil
}

func testDiscoveryData() DiscoveryData {
	return DiscoveryData{
		LocalID:  "local-1",
		RootUUID: "root-1",
		Pid:      4321,
		Version:  "1.25.3",
		Workers:  2,
		Prefix:   "/etc/nginx",
		BinPath:  "/usr/sbin/nginx",
		ConfPath: "/etc/nginx/nginx.conf",
	}
}

func testDeps(config *fakeConfig, probe *fakeProbe) (Deps, *eventd.MemorySink) {
	sink := eventd.NewMemorySink()
	return Deps{
		AgentConfig:      agentconfig.Default(),
		Probe:            probe,
		Events:           sink,
		Logger:           logging.NewNullLogger(),
		Config:           config,
		IntrospectBinary: fakeIntrospect,
	}, sink
}

func countAspect(instance *Instance, aspect collectors.Aspect) int {
	count := 0
	for _, collector := range instance.Collectors() {
		if collector.Aspect() == aspect {
			count++
		}
	}
	return count
}

func boolPtr(v bool) *bool { return &v }

func TestInstanceStubStatusDetected(t *testing.T) {
	probe := &fakeProbe{responses: map[string]string{
		"http://127.0.0.1/stub_status": stubBody,
	}}
	config := &fakeConfig{
		stubURLs: []string{"127.0.0.1/stub_status", "10.0.0.5/stub_status2"},
	}
	deps, sink := testDeps(config, probe)

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, 1, config.parses)
	assert.Equal(t, "http://127.0.0.1/stub_status", instance.StubStatusURL())
	assert.True(t, instance.StubStatusEnabled())
	assert.False(t, instance.PlusStatusEnabled())
	assert.Contains(t, sink.Messages(), "nginx stub_status detected, http://127.0.0.1/stub_status")
}

func TestInstanceStubStatusNotFound(t *testing.T) {
	deps, sink := testDeps(&fakeConfig{}, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, "", instance.StubStatusURL())
	assert.False(t, instance.StubStatusEnabled())
	assert.Contains(t, sink.Messages(), "nginx stub_status not found in nginx config")
}

func TestInstancePlusExternalSynthesis(t *testing.T) {
	config := &fakeConfig{
		plusExternal: []string{"status.example.com/api"},
	}
	deps, sink := testDeps(config, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, "http://status.example.com/api", instance.PlusStatusExternalURL())
	assert.True(t, instance.PlusStatusEnabled())
	assert.Contains(t, sink.Messages(), "nginx external plus_status detected, http://status.example.com/api")
}

func TestInstanceBaselineCollectors(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	// meta, metrics and config collectors are always present, in that order
	collectorSet := instance.Collectors()
	require.Len(t, collectorSet, 3)
	assert.Equal(t, collectors.AspectMeta, collectorSet[0].Aspect())
	assert.Equal(t, collectors.AspectMetrics, collectorSet[1].Aspect())
	assert.Equal(t, collectors.AspectConfigs, collectorSet[2].Aspect())
}

func TestInstanceLogCollectorFailureContained(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "access.log")
	missing := filepath.Join(dir, "deleted.log")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	config := &fakeConfig{
		accessLogs: map[string]string{
			present: "combined",
			missing: "combined",
		},
	}
	deps, sink := testDeps(config, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, 1, countAspect(instance, collectors.AspectAccessLog))
	assert.Equal(t, 1, countAspect(instance, collectors.AspectMeta))
	assert.Equal(t, 1, countAspect(instance, collectors.AspectMetrics))
	assert.Equal(t, 1, countAspect(instance, collectors.AspectConfigs))

	messages := sink.Messages()
	assert.Contains(t, messages, "nginx access log "+present+" found")
	assert.NotContains(t, messages, "nginx access log "+missing+" found")
}

func TestInstanceErrorLogCollectorFailureContained(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "error.log")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	config := &fakeConfig{
		errorLogs: map[string]string{
			present:                        "warn",
			filepath.Join(dir, "gone.log"): "error",
		},
	}
	deps, sink := testDeps(config, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, 1, countAspect(instance, collectors.AspectErrorLog))
	assert.Contains(t, sink.Messages(), "nginx error log "+present+" found")
}

func TestInstanceUnknownLogFormatFatal(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "access.log")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	config := &fakeConfig{
		accessLogs: map[string]string{present: "undefined_format"},
	}
	deps, _ := testDeps(config, &fakeProbe{})

	_, err := NewInstance(testDiscoveryData(), deps)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestInstanceNamedLogFormatResolved(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "access.log")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	config := &fakeConfig{
		accessLogs: map[string]string{present: "main"},
		logFormats: map[string]string{"main": "$remote_addr $status"},
	}
	deps, _ := testDeps(config, &fakeProbe{})

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)
	assert.Equal(t, 1, countAspect(instance, collectors.AspectAccessLog))
}

func TestInstanceConfigParseFatal(t *testing.T) {
	config := &fakeConfig{parseErr: errors.NewConfigParseError("broken config", nil)}
	deps, _ := testDeps(config, &fakeProbe{})

	_, err := NewInstance(testDiscoveryData(), deps)
	require.Error(t, err)
	assert.True(t, errors.IsConfigParseError(err))
}

func TestInstanceIntrospectionFatal(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})
	deps.IntrospectBinary = func(binPath string) (BuildInfo, error) {
		return BuildInfo{}, errors.NewVersionError("no such binary", nil)
	}

	_, err := NewInstance(testDiscoveryData(), deps)
	require.Error(t, err)
	assert.True(t, errors.IsVersionError(err))
}

func TestInstanceValidation(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})

	data := testDiscoveryData()
	data.LocalID = ""
	_, err := NewInstance(data, deps)
	assert.True(t, errors.IsValidationError(err))

	data = testDiscoveryData()
	data.Pid = 0
	_, err = NewInstance(data, deps)
	assert.True(t, errors.IsValidationError(err))

	data = testDiscoveryData()
	data.ConfPath = ""
	_, err = NewInstance(data, deps)
	assert.True(t, errors.IsValidationError(err))
}

func TestDefinitionTypeTags(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})

	base, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	containerDeps, _ := testDeps(&fakeConfig{}, &fakeProbe{})
	container, err := NewContainerInstance(testDiscoveryData(), containerDeps)
	require.NoError(t, err)

	assert.Equal(t, Definition{Type: "nginx", LocalID: "local-1", RootUUID: "root-1"}, base.Definition())
	assert.Equal(t, Definition{Type: "container_nginx", LocalID: "local-1", RootUUID: "root-1"}, container.Definition())
}

func TestInstanceIdempotentConstruction(t *testing.T) {
	newOne := func() *Instance {
		probe := &fakeProbe{responses: map[string]string{
			"http://127.0.0.1/stub_status": stubBody,
			"http://127.0.0.1:8080/api":    `{}`,
		}}
		config := &fakeConfig{
			stubURLs:     []string{"127.0.0.1/stub_status"},
			plusInternal: []string{"127.0.0.1:8080/api"},
			plusExternal: []string{"status.example.com/api"},
		}
		deps, _ := testDeps(config, probe)
		instance, err := NewInstance(testDiscoveryData(), deps)
		require.NoError(t, err)
		return instance
	}

	first := newOne()
	second := newOne()

	assert.Equal(t, first.Definition(), second.Definition())
	assert.Equal(t, first.StubStatusURL(), second.StubStatusURL())
	assert.Equal(t, first.PlusStatusInternalURL(), second.PlusStatusInternalURL())
	assert.Equal(t, first.PlusStatusExternalURL(), second.PlusStatusExternalURL())
}

func TestInstanceBehaviorFlags(t *testing.T) {
	tests := []struct {
		name            string
		override        *bool
		deploymentValue bool
		expected        bool
	}{
		{"no override uses default false", nil, false, false},
		{"no override uses default true", nil, true, true},
		{"true override wins", boolPtr(true), false, true},
		{"false override falls back to default", boolPtr(false), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})
			deps.AgentConfig.Containers.Nginx.UploadConfig = tt.deploymentValue

			data := testDiscoveryData()
			data.UploadConfig = tt.override

			instance, err := NewInstance(data, deps)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, instance.UploadConfig())
		})
	}
}

func TestInstanceIntervals(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})
	deps.AgentConfig.Containers.Nginx.PollIntervals = map[string]time.Duration{
		"default": 20 * time.Second,
		"meta":    time.Minute,
	}

	instance, err := NewInstance(testDiscoveryData(), deps)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, instance.Interval("meta"))
	assert.Equal(t, 20*time.Second, instance.Interval("metrics"))
	assert.Equal(t, 20*time.Second, instance.Interval("logs"))
}

func TestInstanceFilters(t *testing.T) {
	deps, _ := testDeps(&fakeConfig{}, &fakeProbe{})

	data := testDiscoveryData()
	data.Filters = []FilterSpec{
		{Metric: "http.status.discarded", FilterRuleID: "1", Data: map[string]string{"$status": "499"}},
		{Metric: "http.method.post", FilterRuleID: "2", Data: map[string]string{"$request_method": "POST"}},
	}

	instance, err := NewInstance(data, deps)
	require.NoError(t, err)

	filters := instance.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, "http.status.discarded", filters[0].Metric)
	assert.Equal(t, "499", filters[0].Matches["$status"])
	assert.Equal(t, "2", filters[1].RuleID)
}
