// Package netinfo discovers the host's network identity and normalizes
// client addresses taken from inbound requests.
package netinfo

import (
	"net"
	"strings"
)

// ServerInfo is the host's active IPv4 address and hardware address.
// Captured once at process start and injected read-only; never a mutable global.
type ServerInfo struct {
	IP  string
	MAC string
}

// Discover returns the IP and MAC of the first up, non-loopback interface
// that carries an IPv4 address. Fields are empty when no such interface exists
// (e.g. in an isolated container).
func Discover() ServerInfo {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ServerInfo{}
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			return ServerInfo{IP: ip4.String(), MAC: iface.HardwareAddr.String()}
		}
	}
	return ServerInfo{}
}

// NormalizeClientIP maps the raw address of an inbound request to a plain
// IPv4 form: IPv4-mapped-IPv6 addresses (::ffff:a.b.c.d) lose their prefix
// and the IPv6 loopback becomes 127.0.0.1. Port suffixes are stripped.
func NormalizeClientIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if ip == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ip = strings.Trim(ip, "[]")
	if i := strings.LastIndex(ip, "::ffff:"); i >= 0 {
		ip = ip[i+len("::ffff:"):]
	}
	if ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}
