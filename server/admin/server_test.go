package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/server/status"
)

type fakeStatus struct {
}

func (s *fakeStatus) Register(group *gin.RouterGroup) {
	group.GET("/foo", s.fooRoute)
}

func (s *fakeStatus) fooRoute(c *gin.Context) {
	c.String(http.StatusOK, "foo")
}

var _ status.Handler = &fakeStatus{}

type nopTransport struct {
}

func (t *nopTransport) Transfer(_ context.Context, _ string, _ []broadcast.Value) error {
	return nil
}

func TestServer_AdminRoutes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(
		prometheus.NewRegistry(),
		log.NewNopLogger(),
	)
	go func() {
		assert.NoError(t, s.Serve(ln))
	}()
	defer s.Shutdown(context.TODO())

	t.Run("health", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/health", ln.Addr().String())
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("ready", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/ready", ln.Addr().String())

		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		s.SetReady(true)

		resp, err = http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		s.SetReady(false)

		resp, err = http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/metrics", ln.Addr().String())
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/foo", ln.Addr().String())
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_StatusRoutes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(
		prometheus.NewRegistry(),
		log.NewNopLogger(),
	)
	s.AddStatus("/mystatus", &fakeStatus{})

	go func() {
		assert.NoError(t, s.Serve(ln))
	}()
	defer s.Shutdown(context.TODO())

	t.Run("status ok", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/status/mystatus/foo", ln.Addr().String())
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		buf := new(bytes.Buffer)
		//nolint
		buf.ReadFrom(resp.Body)
		assert.Equal(t, []byte("foo"), buf.Bytes())
	})

	t.Run("not found", func(t *testing.T) {
		url := fmt.Sprintf("http://%s/status/notfound", ln.Addr().String())
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_BroadcastStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	engine := broadcast.NewEngine(
		"n1",
		&nopTransport{},
		&broadcast.Config{
			TransferTimeout: time.Second,
		},
		log.NewNopLogger(),
	)
	engine.SetNeighbours([]string{"n2"})
	engine.Receive("n2", []broadcast.Value{5, 3})
	engine.Round(context.Background())

	s := NewServer(
		prometheus.NewRegistry(),
		log.NewNopLogger(),
	)
	s.AddStatus("/broadcast", status.NewBroadcast(engine))

	go func() {
		assert.NoError(t, s.Serve(ln))
	}()
	defer s.Shutdown(context.TODO())

	get := func(t *testing.T, path string, v any) {
		url := fmt.Sprintf("http://%s/status/broadcast%s", ln.Addr().String(), path)
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	t.Run("values", func(t *testing.T) {
		var values []broadcast.Value
		get(t, "/values", &values)
		assert.Equal(t, []broadcast.Value{5, 3}, values)
	})

	t.Run("cursors", func(t *testing.T) {
		var cursors map[string]int
		get(t, "/cursors", &cursors)
		assert.Equal(t, map[string]int{"n2": 2}, cursors)
	})

	t.Run("topology", func(t *testing.T) {
		var topology status.Topology
		get(t, "/topology", &topology)
		assert.Equal(t, status.Topology{
			NodeID:     "n1",
			Neighbours: []string{"n2"},
		}, topology)
	})

	t.Run("generation", func(t *testing.T) {
		var generation status.Generation
		get(t, "/generation", &generation)
		assert.Equal(t, uint64(1), generation.Generation)
	})
}
