package nginx

import (
	"fmt"
	"sort"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx/collectors"
)

// setupCollectors builds the full collector set in a fixed order: meta,
// metrics, config, access logs, error logs. Access and error log collectors
// are isolated per file: an inaccessible log costs its own collector and
// nothing else. Every other assembly failure aborts instance construction.
func (i *Instance) setupCollectors(deps collectors.Deps) error {
	if err := i.setupRegistryCollector(collectors.AspectMeta, deps); err != nil {
		return err
	}
	if err := i.setupRegistryCollector(collectors.AspectMetrics, deps); err != nil {
		return err
	}

	configCollector := collectors.NewConfigCollector(i, i.config, deps, i.Interval("configs"))
	i.collectors = append(i.collectors, configCollector)

	if err := i.setupAccessLogCollectors(deps); err != nil {
		return err
	}
	if err := i.setupErrorLogCollectors(deps); err != nil {
		return err
	}
	return nil
}

func (i *Instance) setupRegistryCollector(aspect collectors.Aspect, deps collectors.Deps) error {
	collector, err := collectors.New(string(i.kind), aspect, i, deps, i.Interval(string(aspect)))
	if err != nil {
		return err
	}
	i.collectors = append(i.collectors, collector)
	return nil
}

func (i *Instance) setupAccessLogCollectors(deps collectors.Deps) error {
	accessLogs := i.config.AccessLogs()
	for _, filename := range sortedKeys(accessLogs) {
		formatName := accessLogs[filename]

		format, err := i.lookupLogFormat(formatName)
		if err != nil {
			return err
		}

		collector, err := collectors.NewAccessLogCollector(filename, formatName, format, deps, i.Interval("logs"))
		if err != nil {
			if !errors.IsLogAccessError(err) {
				return err
			}
			i.logger.Warnf("failed to start reading log %s due to %s (maybe has no rights?)", filename, errors.TypeOf(err))
			i.logger.Debugf("additional info: %v", err)
			continue
		}

		i.collectors = append(i.collectors, collector)
		deps.Events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx access log %s found", filename))
	}
	return nil
}

func (i *Instance) setupErrorLogCollectors(deps collectors.Deps) error {
	errorLogs := i.config.ErrorLogs()
	for _, filename := range sortedKeys(errorLogs) {
		level := errorLogs[filename]

		collector, err := collectors.NewErrorLogCollector(filename, level, deps, i.Interval("logs"))
		if err != nil {
			if !errors.IsLogAccessError(err) {
				return err
			}
			i.logger.Warnf("failed to start reading log %s due to %s (maybe has no rights?)", filename, errors.TypeOf(err))
			i.logger.Debugf("additional info: %v", err)
			continue
		}

		i.collectors = append(i.collectors, collector)
		deps.Events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx error log %s found", filename))
	}
	return nil
}

// lookupLogFormat resolves a named log format. An unknown custom name is a
// configuration defect, not a file-access race, so it aborts assembly.
func (i *Instance) lookupLogFormat(name string) (string, error) {
	if definition, ok := i.config.LogFormats()[name]; ok {
		return definition, nil
	}
	if name == "" || name == "combined" {
		return collectors.CombinedFormat, nil
	}
	return "", errors.NewValidationError(fmt.Sprintf("unknown log format %q", name), nil).
		WithContext("conf_path", i.confPath)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
