package webrtc

import (
	"net"
	"strings"
)

// vpnInterfacePrefixes are interface name fragments of tunnels that tend
// to break direct peer paths.
var vpnInterfacePrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// cgnat is 100.64.0.0/10, used by carrier NATs, WARP and Tailscale.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// ShouldForceRelay reports whether this host is likely behind a VPN or
// CGNAT, where only TURN relayed candidates work reliably.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if looksLikeTunnel(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && inCGNAT(ipNet.IP) {
				return true
			}
		}
	}
	return false
}

func looksLikeTunnel(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range vpnInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func inCGNAT(ip net.IP) bool {
	return cgnat.Contains(ip)
}
