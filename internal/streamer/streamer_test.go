package streamer

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPumpBroadcastsToListener(t *testing.T) {
	s := New("test-output", nil)

	pr, pw := io.Pipe()
	go s.Pump(pr)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/stream/test-output", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.ServeHTTP(rec, req)
		close(done)
	}()

	// give ServeHTTP a moment to register its listener
	time.Sleep(20 * time.Millisecond)
	_, err := pw.Write([]byte("mp3-bytes"))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_ = pw.Close()
	// The streamer outlives any one upstream reader, so the client
	// stream ends when the client goes away, not when Pump returns.
	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "mp3-bytes")
}

func TestListenerCountTracksConnections(t *testing.T) {
	s := New("test-output", nil)
	assert.Equal(t, 0, s.ListenerCount())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/stream/test-output", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		s.ServeHTTP(httptest.NewRecorder(), req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, s.ListenerCount())

	cancel()
	<-done
	assert.Equal(t, 0, s.ListenerCount())
}
