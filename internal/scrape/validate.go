package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	maxURLLength   = 2000
	resolveTimeout = 5 * time.Second
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrUnsupportedScheme = fmt.Errorf("%w: only http and https are supported", ErrInvalidURL)
	ErrMissingHost       = fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	ErrURLTooLong        = fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, maxURLLength)
	ErrHostNotFound      = fmt.Errorf("%w: host not found", ErrInvalidURL)
	ErrDisallowedHost    = fmt.Errorf("%w: host is not allowed", ErrInvalidURL)
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Blocked address ranges on top of what net.IP reports as private,
// loopback, link-local, multicast or unspecified.
var reservedCIDRs = []string{
	"0.0.0.0/8",          // "this" network
	"100.64.0.0/10",      // carrier-grade NAT
	"192.0.0.0/24",       // IETF protocol assignments
	"192.0.2.0/24",       // TEST-NET-1
	"198.18.0.0/15",      // benchmarking
	"198.51.100.0/24",    // TEST-NET-2
	"203.0.113.0/24",     // TEST-NET-3
	"240.0.0.0/4",        // reserved
	"255.255.255.255/32", // broadcast
	"64:ff9b::/96",       // NAT64
	"100::/64",           // discard
	"2001:db8::/32",      // documentation
}

var reservedBlocks = parseCIDRs(reservedCIDRs)

func parseCIDRs(cidrs []string) []*net.IPNet {
	blocks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		blocks = append(blocks, mustParseCIDR(cidr))
	}
	return blocks
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, block, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("scrape: bad reserved block %q: %v", cidr, err))
	}
	return block
}

// Disallowed reports whether ip must never be fetched from.
func Disallowed(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range reservedBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// parseURL checks the shape of raw without touching the network.
func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxURLLength {
		return nil, ErrURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	if u.Hostname() == "" {
		return nil, ErrMissingHost
	}
	return u, nil
}

// checkHost resolves host and rejects it when any address is disallowed.
func checkHost(ctx context.Context, r Resolver, host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if Disallowed(ip) {
			return fmt.Errorf("%w: %s", ErrDisallowedHost, host)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %q, check the URL", ErrHostNotFound, host)
	}
	for _, a := range addrs {
		if Disallowed(a.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrDisallowedHost, host, a.IP)
		}
	}
	return nil
}
