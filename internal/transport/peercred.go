package transport

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/credentials"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// ErrNoPeerCredentials is returned when a connection cannot report who is
// on the other end
var ErrNoPeerCredentials = errors.New("peer credentials unavailable")

// PeerInfo is the kernel's account of a connected process
type PeerInfo struct {
	credentials.CommonAuthInfo
	PID protocol.PID
	UID uint32
}

// AuthType implements credentials.AuthInfo
func (PeerInfo) AuthType() string { return "peercred" }

// peerCreds authenticates Unix socket peers by their kernel credentials.
// It adds no encryption.
type peerCreds struct{}

// PeerCredentials returns server transport credentials that attach a
// PeerInfo to every connection
func PeerCredentials() credentials.TransportCredentials {
	return peerCreds{}
}

func (peerCreds) ServerHandshake(conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	info, err := peerCredentials(conn)
	if err != nil {
		return nil, nil, err
	}
	info.CommonAuthInfo = credentials.CommonAuthInfo{SecurityLevel: credentials.NoSecurity}
	return conn, info, nil
}

func (peerCreds) ClientHandshake(_ context.Context, _ string, conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return conn, PeerInfo{CommonAuthInfo: credentials.CommonAuthInfo{SecurityLevel: credentials.NoSecurity}}, nil
}

func (peerCreds) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{SecurityProtocol: "peercred"}
}

func (c peerCreds) Clone() credentials.TransportCredentials { return c }

func (peerCreds) OverrideServerName(string) error { return nil }
