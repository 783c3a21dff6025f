package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ServiceMode names one of the runnable services. A process can host any
// combination, which keeps development to a single binary while production
// splits the HTTP tier from the background workers.
type ServiceMode string

const (
	// ServiceModeHTTP serves the REST API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeJanitor fails stale message jobs and prunes finished ones.
	ServiceModeJanitor ServiceMode = "janitor"
)

// serviceModes is the canonical order, used for stable Names output and for
// error messages.
var serviceModes = []ServiceMode{ServiceModeHTTP, ServiceModeJanitor}

// ServiceSet records which service modes are enabled.
type ServiceSet map[ServiceMode]bool

// Has reports whether mode is enabled.
func (s ServiceSet) Has(mode ServiceMode) bool { return s[mode] }

// Names returns the enabled mode names in canonical order.
func (s ServiceSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, mode := range serviceModes {
		if s[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}

// ParseServices interprets a comma separated list of service names, as found
// in the SERVICES environment variable. Names are case-insensitive and may
// carry surrounding whitespace; naming a service twice is harmless. An
// unknown name or an effectively empty list is an error.
func ParseServices(raw string) (ServiceSet, error) {
	set := make(ServiceSet, len(serviceModes))
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(strings.ToLower(name))
		if !slices.Contains(serviceModes, mode) {
			return nil, fmt.Errorf("unknown service %q, valid services are %s", name, serviceModeList())
		}
		set[mode] = true
	}
	if len(set) == 0 {
		return nil, errors.New("at least one service must be enabled")
	}
	return set, nil
}

func serviceModeList() string {
	names := make([]string, len(serviceModes))
	for i, mode := range serviceModes {
		names[i] = string(mode)
	}
	return strings.Join(names, ", ")
}
