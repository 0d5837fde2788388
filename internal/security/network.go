package security

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ValidateLoopbackAddress reports an error unless address is host:port with
// a loopback host. An empty host would bind every interface and is rejected.
func ValidateLoopbackAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("address %q must use a loopback IP or localhost", address)
	}
	if !ip.IsLoopback() {
		return fmt.Errorf("address %q is not loopback", address)
	}
	return nil
}
