//go:build !linux

package transport

import "net"

func peerCredentials(net.Conn) (PeerInfo, error) {
	return PeerInfo{}, ErrNoPeerCredentials
}
