package collectors

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// metaCollector snapshots instance metadata on every run. The snapshot is
// what gets shipped to the backend alongside metrics.
type metaCollector struct {
	src      Source
	deps     Deps
	interval time.Duration

	mutex sync.Mutex
	meta  map[string]interface{}
}

func NewMetaCollector(src Source, deps Deps, interval time.Duration) Collector {
	return &metaCollector{
		src:      src,
		deps:     deps,
		interval: interval,
	}
}

func (c *metaCollector) ID() string {
	return fmt.Sprintf("%s_meta_%s", c.src.TypeTag(), c.src.LocalID())
}

func (c *metaCollector) Aspect() Aspect {
	return AspectMeta
}

func (c *metaCollector) Interval() time.Duration {
	return c.interval
}

func (c *metaCollector) Collect(ctx context.Context) error {
	hostname, _ := os.Hostname()

	meta := map[string]interface{}{
		"type":                c.src.TypeTag(),
		"local_id":            c.src.LocalID(),
		"root_uuid":           c.src.RootUUID(),
		"hostname":            hostname,
		"pid":                 c.src.Pid(),
		"version":             c.src.Version(),
		"workers":             c.src.WorkerCount(),
		"prefix":              c.src.Prefix(),
		"bin_path":            c.src.BinPath(),
		"conf_path":           c.src.ConfPath(),
		"build":               c.src.BuildInfo(),
		"stub_status_enabled": c.src.StubStatusEnabled(),
		"plus_status_enabled": c.src.PlusStatusEnabled(),
	}
	if url := c.src.StubStatusURL(); url != "" {
		meta["stub_status_url"] = url
	}
	if url := c.src.PlusStatusInternalURL(); url != "" {
		meta["plus_status_internal_url"] = url
	}
	if url := c.src.PlusStatusExternalURL(); url != "" {
		meta["plus_status_external_url"] = url
	}

	c.mutex.Lock()
	c.meta = meta
	c.mutex.Unlock()

	c.deps.Logger.Debugf("Collected meta, id: %s", c.ID())
	return nil
}

// Meta returns the latest metadata snapshot
func (c *metaCollector) Meta() map[string]interface{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.meta
}
