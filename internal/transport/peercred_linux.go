package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

func peerCredentials(conn net.Conn) (PeerInfo, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return PeerInfo{}, fmt.Errorf("%w: %T is not a unix socket", ErrNoPeerCredentials, conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return PeerInfo{}, fmt.Errorf("%w: %v", ErrNoPeerCredentials, err)
	}

	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return PeerInfo{}, fmt.Errorf("%w: %v", ErrNoPeerCredentials, err)
	}
	if credErr != nil {
		return PeerInfo{}, fmt.Errorf("%w: %v", ErrNoPeerCredentials, credErr)
	}

	return PeerInfo{PID: protocol.PID(cred.Pid), UID: cred.Uid}, nil
}
