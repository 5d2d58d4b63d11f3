// Package dnsbl checks IP addresses against DNS-based blackhole lists.
package dnsbl

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"
)

// ErrInvalidAddressFormat is returned when a literal is neither a dotted-quad
// IPv4 address nor an IPv6 address.
var ErrInvalidAddressFormat = errors.New("invalid IP address format")

const hexDigits = "0123456789abcdef"

// EncodeForQuery converts an IP literal into the reversed label form used by
// DNSBL zones: reversed octets for IPv4, reversed nibbles for IPv6.
func EncodeForQuery(ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", ErrInvalidAddressFormat
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Zone() != "" {
		return "", ErrInvalidAddressFormat
	}

	// The literal decides the family, so ::ffff:1.2.3.4 stays in nibble form.
	if !strings.Contains(ip, ":") {
		return reverseIPv4(addr), nil
	}
	return reverseIPv6(addr), nil
}

func reverseIPv4(addr netip.Addr) string {
	octets := addr.As4()
	var b strings.Builder
	for i := len(octets) - 1; i >= 0; i-- {
		b.WriteString(strconv.Itoa(int(octets[i])))
		if i > 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func reverseIPv6(addr netip.Addr) string {
	bytes := addr.As16()
	labels := make([]byte, 0, 63)
	for i := len(bytes) - 1; i >= 0; i-- {
		labels = append(labels, hexDigits[bytes[i]&0x0f], '.', hexDigits[bytes[i]>>4], '.')
	}
	return string(labels[:len(labels)-1])
}
