package lsp

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// ServeTCP listens on the loopback port, serves the first client to connect
// and returns when that session ends.
func ServeTCP(ctx context.Context, port int, opts Options) error {
	ln, err := Listen(port)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, opts)
}

// Listen opens the loopback listener used by ServeTCP.
func Listen(port int) (net.Listener, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return ln, nil
}

// Serve accepts one connection from ln, closes ln and runs a server on the
// connection.
func Serve(ctx context.Context, ln net.Listener, opts Options) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	conn, err := ln.Accept()
	stop()
	ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	closeConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer closeConn()
	return NewServer(conn, conn, opts).Run(ctx)
}
