package dnsbl

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// Resolver looks up the IPv4 addresses a DNSBL query name resolves to.
//
// A clean negative (NXDOMAIN or no A records) must be reported as a
// *net.DNSError with IsNotFound set so probes can tell it apart from failures.
type Resolver interface {
	LookupA(ctx context.Context, host string) ([]netip.Addr, error)
}

// IsNotFound reports whether err is the "name not found" / "no data" signal
// DNSBL zones use for an unlisted address.
func IsNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// SystemResolver resolves through a net.Resolver.
type SystemResolver struct {
	Resolver *net.Resolver
}

// NewSystemResolver returns a resolver using the host configuration, or the
// pure Go resolver pinned to nameserver when one is given.
func NewSystemResolver(nameserver string) *SystemResolver {
	nameserver = strings.TrimSpace(nameserver)
	if nameserver == "" {
		return &SystemResolver{Resolver: net.DefaultResolver}
	}
	nameserver = withDefaultPort(nameserver)
	return &SystemResolver{Resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, nameserver)
		},
	}}
}

// LookupA implements Resolver.
func (r *SystemResolver) LookupA(ctx context.Context, host string) ([]netip.Addr, error) {
	resolver := net.DefaultResolver
	if r != nil && r.Resolver != nil {
		resolver = r.Resolver
	}
	// Rooted name: DNSBL queries must never pick up resolv.conf search suffixes.
	return resolver.LookupNetIP(ctx, "ip4", dns.Fqdn(host))
}

// DirectResolver sends A queries straight to one nameserver with miekg/dns,
// classifying responses by RCODE.
type DirectResolver struct {
	Nameserver string
	Client     *dns.Client
}

// NewDirectResolver creates a resolver for nameserver ("host" or "host:port").
func NewDirectResolver(nameserver string) *DirectResolver {
	return &DirectResolver{
		Nameserver: withDefaultPort(strings.TrimSpace(nameserver)),
		Client:     &dns.Client{Net: "udp", Timeout: DefaultTimeout},
	}
}

// LookupA implements Resolver.
func (r *DirectResolver) LookupA(ctx context.Context, host string) ([]netip.Addr, error) {
	client := r.Client
	if client == nil {
		client = &dns.Client{Net: "udp", Timeout: DefaultTimeout}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, r.Nameserver)
	if err == nil && resp != nil && resp.Truncated {
		tcp := *client
		tcp.Net = "tcp"
		resp, _, err = tcp.ExchangeContext(ctx, msg, r.Nameserver)
	}
	if err != nil {
		return nil, &net.DNSError{Err: err.Error(), Name: host, Server: r.Nameserver, IsTimeout: isTimeout(err)}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, r.notFound(host)
	default:
		return nil, &net.DNSError{
			Err:         "server responded " + dns.RcodeToString[resp.Rcode],
			Name:        host,
			Server:      r.Nameserver,
			IsTemporary: resp.Rcode == dns.RcodeServerFailure,
		}
	}

	addrs := make([]netip.Addr, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	if len(addrs) == 0 {
		return nil, r.notFound(host)
	}
	return addrs, nil
}

func (r *DirectResolver) notFound(host string) error {
	return &net.DNSError{Err: "no such host", Name: host, Server: r.Nameserver, IsNotFound: true}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func withDefaultPort(addr string) string {
	if addr == "" {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "53")
}

var _ Resolver = (*SystemResolver)(nil)
var _ Resolver = (*DirectResolver)(nil)
