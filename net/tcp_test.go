//go:build !windows

package net

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wanproxy-go/reactor"
)

func TestTCPClient_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, aerr := ln.Accept()
		if aerr == nil {
			defer conn.Close()
		}
		close(accepted)
	}()

	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	c := NewTCPClient()

	var got reactor.Event
	_, err = c.Connect(loop, ln.Addr().String(), reactor.NewCallback(func(ev reactor.Event) {
		got = ev
		loop.Stop()
	}))
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	<-accepted

	require.Equal(t, reactor.EventDone, got.Type)
	conn, ok := got.Value.(net.Conn)
	require.True(t, ok)
	conn.Close()
}

func TestTCPClient_Connect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	c := NewTCPClient()

	var got reactor.Event
	_, err = c.Connect(loop, addr, reactor.NewCallback(func(ev reactor.Event) {
		got = ev
		loop.Stop()
	}))
	require.NoError(t, err)

	require.NoError(t, loop.Start())
	require.Equal(t, reactor.EventError, got.Type)
}

func TestTCPClient_Connect_CancelBeforeComplete(t *testing.T) {
	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	c := NewTCPClient()

	fired := false
	action, err := c.Connect(loop, "10.255.255.1:1", reactor.NewCallback(func(reactor.Event) {
		fired = true
	}))
	require.NoError(t, err)
	action.Cancel()

	loop.Schedule(reactor.NewCallback(func(reactor.Event) { loop.Stop() }))
	require.NoError(t, loop.Start())
	require.False(t, fired)
}
