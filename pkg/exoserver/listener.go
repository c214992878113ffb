package exoserver

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// every worker in the pool binds the same address; SO_REUSEPORT makes the
// kernel balance incoming connections across them. this replaces a shared
// listener handed down from the supervisor - workers stay fully symmetric
// and a restarted worker just re-binds.
func listenReusePort(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network string, address string, conn syscall.RawConn) error {
			var sockErr error

			if err := conn.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}

			return sockErr
		},
	}

	return lc.Listen(ctx, "tcp", addr)
}
