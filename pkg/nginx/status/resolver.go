package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/eventd"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/probe"
)

// Flavor selects the acceptance criteria for a status endpoint
type Flavor int

const (
	// FlavorStub is the plain-text counters endpoint; a body is accepted
	// only if it contains the stub status marker
	FlavorStub Flavor = iota

	// FlavorPlus is the structured endpoint; any non-empty body is accepted
	FlavorPlus
)

const (
	// probeTimeout bounds each individual probe request
	probeTimeout = 500 * time.Millisecond

	// stubStatusMarker identifies a live stub status payload
	stubStatusMarker = "Active connections"
)

// Resolver finds the first reachable status endpoint among ordered URL
// candidates. Resolution is a one-shot snapshot taken at instance
// construction, not a poll loop.
type Resolver struct {
	client probe.Client
	events eventd.Sink
	logger logging.Logger
}

func NewResolver(client probe.Client, events eventd.Sink, logger logging.Logger) *Resolver {
	return &Resolver{
		client: client,
		events: events,
		logger: logger,
	}
}

// ResolveStub scans the stub status candidates and returns the first alive
// full URL, or "" if none responds. The operator override, if any, is
// appended after the config-discovered candidates, so config-derived URLs
// win ties. Emits exactly one informational event either way.
func (r *Resolver) ResolveStub(candidates []string, override string) string {
	urls := appendOverride(candidates, override)

	found := r.firstAlive(urls, FlavorStub)
	if found != "" {
		r.events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx stub_status detected, %s", found))
	} else {
		r.events.Emit(eventd.LevelInfo, "nginx stub_status not found in nginx config")
	}
	return found
}

// ResolvePlus scans the plus status candidates and returns
// (externalURL, internalURL).
//
// The override applies to the internal list only; there is no external
// override path.
//
// The external variant never comes back empty when external candidates were
// configured: if none responds, the first configured candidate prefixed with
// "http://" is still reported, since the endpoint may be unreachable from
// the agent's vantage point yet reachable by end users.
func (r *Resolver) ResolvePlus(internalCandidates []string, externalCandidates []string, internalOverride string) (string, string) {
	internalURLs := appendOverride(internalCandidates, internalOverride)

	internalFound := r.firstAlive(internalURLs, FlavorPlus)
	if internalFound != "" {
		r.events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx internal plus_status detected, %s", internalFound))
	} else {
		r.events.Emit(eventd.LevelInfo, "nginx internal plus_status not found in nginx config")
	}

	externalFound := r.firstAlive(externalCandidates, FlavorPlus)
	if len(externalCandidates) > 0 {
		if externalFound == "" {
			externalFound = "http://" + externalCandidates[0]
		}
		r.events.Emit(eventd.LevelInfo, fmt.Sprintf("nginx external plus_status detected, %s", externalFound))
	}

	return externalFound, internalFound
}

// firstAlive probes the candidates in order and returns the first full URL
// classified alive. Candidates without a scheme are tried over http first,
// then https. Probe failures are expected and logged at debug only.
func (r *Resolver) firstAlive(urls []string, flavor Flavor) string {
	for _, candidate := range urls {
		for _, fullURL := range expandSchemes(candidate) {
			body, err := r.client.Get(fullURL, probeTimeout, flavor == FlavorPlus, false)
			if err != nil {
				r.logger.Debugf("bad response from stub/plus status url %s: %v", fullURL, err)
				continue
			}
			if !alive(body, flavor) {
				r.logger.Debugf("bad response from stub/plus status url %s", fullURL)
				continue
			}
			return fullURL
		}
	}
	return ""
}

func alive(body string, flavor Flavor) bool {
	if body == "" {
		return false
	}
	if flavor == FlavorStub {
		return strings.Contains(body, stubStatusMarker)
	}
	return true
}

func expandSchemes(candidate string) []string {
	if strings.HasPrefix(candidate, "http") {
		return []string{candidate}
	}
	return []string{"http://" + candidate, "https://" + candidate}
}

func appendOverride(candidates []string, override string) []string {
	urls := make([]string, 0, len(candidates)+1)
	urls = append(urls, candidates...)
	if override != "" {
		urls = append(urls, ResolveURI(override))
	}
	return urls
}

// ResolveURI expands a bare path override into a loopback URL candidate
func ResolveURI(uri string) string {
	if strings.HasPrefix(uri, "/") {
		return "127.0.0.1" + uri
	}
	return uri
}
