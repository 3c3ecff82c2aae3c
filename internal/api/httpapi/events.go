package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/notification"
)

const streamBuffer = 64

var errStreamClosed = errors.New("event stream closed")

// chanStream is a notification.Stream feeding one HTTP response.
type chanStream struct {
	mu     sync.Mutex
	ch     chan *notification.Notification
	closed bool
}

func newChanStream() *chanStream {
	return &chanStream{ch: make(chan *notification.Notification, streamBuffer)}
}

// Send queues n for the client. A full buffer means the client is not
// keeping up, which drops the subscription.
func (s *chanStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	select {
	case s.ch <- n:
		return nil
	default:
		return errors.New("event stream buffer full")
	}
}

func (s *chanStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// handleEvents streams notifications as newline-delimited JSON until the
// client goes away or the session ends.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream := newChanStream()
	notifier := s.session.GetNotificationManager()
	id := notifier.Subscribe(stream)
	defer func() {
		stream.close()
		notifier.Unsubscribe(id)
	}()
	zlog.Debug().Msgf("api: event stream opened: id=%s", id)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			zlog.Debug().Msgf("api: event stream closed by client: id=%s", id)
			return
		case <-s.session.Done():
			s.drain(enc, flusher, stream)
			return
		case n := <-stream.ch:
			if err := enc.Encode(n); err != nil {
				zlog.Debug().Msgf("api: event stream write failed: id=%s err=%v", id, err)
				return
			}
			flusher.Flush()
		}
	}
}

// drain writes whatever is still buffered, such as the session_ended notice.
func (s *Server) drain(enc *json.Encoder, flusher http.Flusher, stream *chanStream) {
	for {
		select {
		case n := <-stream.ch:
			if err := enc.Encode(n); err != nil {
				return
			}
		default:
			flusher.Flush()
			return
		}
	}
}
