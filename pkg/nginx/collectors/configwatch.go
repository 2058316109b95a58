package collectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	nginxconfig "github.com/core-tools/hsu-nginx-agent/pkg/nginx/config"
)

// configCollector re-parses the nginx configuration on every run and emits
// an event when the checksum drifts from the last observed one.
type configCollector struct {
	src      Source
	config   nginxconfig.Config
	deps     Deps
	interval time.Duration

	mutex        sync.Mutex
	lastChecksum string
}

// NewConfigCollector creates the config drift collector. The config is
// expected to have been fully parsed once already, so the current checksum
// is the baseline.
func NewConfigCollector(src Source, config nginxconfig.Config, deps Deps, interval time.Duration) Collector {
	return &configCollector{
		src:          src,
		config:       config,
		deps:         deps,
		interval:     interval,
		lastChecksum: config.Checksum(),
	}
}

func (c *configCollector) ID() string {
	return fmt.Sprintf("%s_configs_%s", c.src.TypeTag(), c.src.LocalID())
}

func (c *configCollector) Aspect() Aspect {
	return AspectConfigs
}

func (c *configCollector) Interval() time.Duration {
	return c.interval
}

func (c *configCollector) Collect(ctx context.Context) error {
	if err := c.config.FullParse(); err != nil {
		return err
	}

	checksum := c.config.Checksum()

	c.mutex.Lock()
	changed := checksum != c.lastChecksum
	c.lastChecksum = checksum
	c.mutex.Unlock()

	if changed {
		c.deps.Logger.Infof("Nginx config changed, id: %s, path: %s", c.ID(), c.config.Path())
		c.deps.Events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx config changed, %s", c.config.Path()))
	}
	return nil
}
