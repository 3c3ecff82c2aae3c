package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/upnext/internal/app/notification"
)

func newTestClient(t *testing.T, token string) (*Client, *httptest.Server) {
	t.Helper()
	srv, _ := newStartedAPI(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", token, ts.Client()), ts
}

func TestClient_Commands(t *testing.T) {
	client, _ := newTestClient(t, testToken)
	ctx := context.Background()

	st, err := client.SetPlaylist(ctx, PlaylistRequest{
		Name: "mix",
		Tracks: []TrackRequest{
			{URL: "file:///a.mp3", Name: "A"},
			{URL: "file:///b.mp3", Name: "B"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, st.QueueSize)

	st, err = client.AddPlayNext(ctx, TrackRequest{URL: "file:///x.mp3"})
	require.NoError(t, err)
	assert.Equal(t, 3, st.QueueSize)

	q, err := client.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, q.Next, 1)
	assert.Equal(t, "file:///x.mp3", q.Next[0].Name, "name falls back to url")

	_, err = client.Do(ctx, "play/main/1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := client.Status(ctx)
		return err == nil && st.CurrentTrack != nil && st.CurrentTrack.Name == "B"
	}, 2*time.Second, 10*time.Millisecond)

	st, err = client.SetRepeat(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, "all", st.Repeat)

	st, err = client.SetShuffle(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.Shuffle)

	st, err = client.SetMute(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.Muted)

	_, err = client.Seek(ctx, 0.25)
	require.NoError(t, err)

	h, err := client.History(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, h.Tracks)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthorized", func(t *testing.T) {
		client, _ := newTestClient(t, "wrong")
		_, err := client.Status(ctx)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Unauthorized", apiErr.Message)
	})

	t.Run("empty queue", func(t *testing.T) {
		client, _ := newTestClient(t, testToken)
		_, err := client.Do(ctx, "next")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	})

	t.Run("bad seek", func(t *testing.T) {
		client, _ := newTestClient(t, testToken)
		_, err := client.Seek(ctx, 2)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_Watch(t *testing.T) {
	srv, m := newStartedAPI(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := NewClient(ts.URL, testToken, ts.Client())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Watch(ctx, func(n *notification.Notification) {
			got <- n.Type
		})
	}()

	require.Eventually(t, func() bool {
		return m.GetNotificationManager().SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop())

	timeout := time.After(2 * time.Second)
	for ended := false; !ended; {
		select {
		case typ := <-got:
			ended = typ == "session_ended"
		case <-timeout:
			t.Fatal("session_ended not received")
		}
	}

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after session end")
	}
}
