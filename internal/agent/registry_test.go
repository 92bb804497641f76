package agent

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/a2a"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRegistry_SpawnUnknown(t *testing.T) {
	_, err := NewRegistry().Spawn("nope")
	assert.Error(t, err)
}

func TestRegistry_SpawnAllAndDiscover(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b-echo", func() Agent { return NewBaseAgent(testCard(), echoProcess()) })
	reg.Register("a-echo", func() Agent { return NewBaseAgent(testCard(), echoProcess()) })
	assert.Equal(t, []string{"a-echo", "b-echo"}, reg.Names())

	port := freePort(t)
	eps, err := reg.SpawnAll(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Skipf("ports unavailable: %v", err)
	}
	defer reg.StopAll(context.Background())

	require.Len(t, eps, 2)
	assert.Equal(t, "a-echo", eps[0].Name)

	card, err := a2a.NewHTTPClient().DiscoverAgent(context.Background(), "http://"+eps[0].Addr)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", card.Name)
}

func TestRegistry_SpawnAll_BindFailureStopsStarted(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	reg := NewRegistry()
	reg.Register("only", func() Agent { return NewBaseAgent(testCard(), echoProcess()) })

	_, err = reg.SpawnAll(context.Background(), "127.0.0.1", busy)
	assert.Error(t, err)
	assert.NoError(t, reg.StopAll(context.Background()))
}
