// Package discovery implements mDNS registration and browsing for
// `_openlcb-can._tcp` services (spec.md §6), plus the service-name
// convention that embeds a NodeID in the instance name:
// `[org_][model_]<12hex>._openlcb-can._tcp.local.`
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/kstaniek/go-openlcb-link/internal/logging"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// ServiceType is the fixed OpenLCB-over-CAN service type advertised and
// browsed for.
const ServiceType = "_openlcb-can._tcp"

// InstanceName builds the conventional service instance name embedding
// id as 12 contiguous hex digits, optionally prefixed by org and model.
func InstanceName(org, model string, id nodeid.ID) string {
	hex := fmt.Sprintf("%012X", uint64(id))
	name := hex
	if model != "" {
		name = model + "_" + name
	}
	if org != "" {
		name = org + "_" + name
	}
	return name
}

var hex12 = regexp.MustCompile(`^[0-9A-Fa-f]{12}$`)

// IDFromServiceName scrapes a discovered service's instance name for its
// NodeID component, per the reference implementation's
// id_from_tcp_service_name: the first underscore-separated part of the
// first FQDN label that is exactly 12 hex digits. Returns ok=false if no
// such part exists.
func IDFromServiceName(serviceName string) (nodeid.ID, bool) {
	fqdnParts := splitOn(serviceName, '.')
	if len(fqdnParts) == 0 {
		return 0, false
	}
	for _, part := range splitOn(fqdnParts[0], '_') {
		if hex12.MatchString(part) {
			id, err := parseHex12(part)
			if err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func splitOn(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func parseHex12(s string) (nodeid.ID, error) {
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		var n uint64
		switch {
		case c >= '0' && c <= '9':
			n = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			n = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n = uint64(c-'A') + 10
		default:
			return 0, fmt.Errorf("discovery: non-hex digit %q", c)
		}
		v = v<<4 | n
	}
	return nodeid.FromInt(v), nil
}

// Register advertises a node's TCP/CAN-hub service via mDNS and returns
// a cleanup function. instance should come from InstanceName.
func Register(ctx context.Context, instance string, port int, txt []string) (func(), error) {
	svc, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}

// Found is one browsed service entry, with its NodeID decoded if the
// instance name carries one.
type Found struct {
	Instance string
	Host     string
	Port     int
	NodeID   nodeid.ID
	HasID    bool
}

// Browse looks up ServiceType entries for timeout and returns whatever
// was found (possibly empty) once the browse window closes.
func Browse(ctx context.Context, timeout time.Duration) ([]Found, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: new resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry)
	var found []Found
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			f := Found{Instance: e.Instance, Host: e.HostName, Port: e.Port}
			if id, ok := IDFromServiceName(e.Instance); ok {
				f.NodeID = id
				f.HasID = true
			}
			found = append(found, f)
		}
	}()
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := resolver.Browse(bctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}
	<-bctx.Done()
	<-done
	logging.L().Debug("discovery_browse_complete", "found", len(found))
	return found, nil
}
