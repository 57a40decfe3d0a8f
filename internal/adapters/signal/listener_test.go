package signal

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeTCP(t *testing.T) {
	ctl := newTestController(t, nil)
	ln, err := Listen("127.0.0.1:0", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- ctl.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(ioTimeout)))

	require.NoError(t, proto.WriteMessage(conn, &proto.Login{Username: "alice"}))
	m, err := proto.ReadMessage(conn, proto.MaxFrameSize)
	require.NoError(t, err)
	resp, ok := m.(*proto.LoginResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(ioTimeout):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, 0, ctl.Orch.Registry.Len())
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	_, err := LoadTLSConfig("does-not-exist.crt", "does-not-exist.key")
	assert.Error(t, err)
}
