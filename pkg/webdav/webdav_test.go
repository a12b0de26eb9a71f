package webdav

import (
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShare(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(path.Join(dir, "config.json"), []byte(`{"kp":0.1}`), 0o600))

	s := New(0, dir)
	addr, err := s.Start()
	require.NoError(t, err)
	defer s.Stop()
	assert.True(t, s.Running())

	again, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/config.json")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"kp":0.1}`, string(body))

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	require.NoError(t, s.Stop())
}
