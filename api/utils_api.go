package api

import (
	"net"

	"github.com/rs/zerolog/log"
)

// getServerIpNet is the address game analytics are filed under. A wildcard
// listener is resolved to the first non-loopback interface address, falling
// back to loopback.
func getServerIpNet(addr net.Addr) net.IPNet {
	var ip net.IP
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		ip = tcpAddr.IP
	} else if addr != nil {
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			log.Warn().Err(err).Msg("failed to extract host from local addr")
		}
		ip = net.ParseIP(host)
	}

	if ip == nil || ip.IsUnspecified() {
		ip = firstInterfaceIP()
	}
	return toIPNet(ip)
}

func firstInterfaceIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list interface addresses")
		return net.IPv4(127, 0, 0, 1)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return net.IPv4(127, 0, 0, 1)
}

func toIPNet(ip net.IP) net.IPNet {
	if v4 := ip.To4(); v4 != nil {
		return net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}
	return net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}
