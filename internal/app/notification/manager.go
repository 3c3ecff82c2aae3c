// Package notification fans playback events out to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/playback"
	"github.com/osa030/upnext/internal/domain/track"
)

const defaultSendTimeout = 500 * time.Millisecond

// Notification is a playback event as delivered to subscribers.
type Notification struct {
	SequenceNo uint64       `json:"sequence_no"`
	Type       string       `json:"type"`
	State      string       `json:"state"`
	Track      *track.Track `json:"track,omitempty"`
	Seconds    float64      `json:"seconds,omitempty"`
	Playing    bool         `json:"playing,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// FromEvent converts a coordinator event into a notification.
// The sequence number is assigned by Broadcast.
func FromEvent(e playback.Event) *Notification {
	return &Notification{
		Type:      e.Type.String(),
		State:     e.State.String(),
		Track:     e.Track,
		Seconds:   e.Seconds,
		Playing:   e.Playing,
		Timestamp: time.Now(),
	}
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
// A non-positive timeout uses the default of 500ms per subscriber.
func NewManager(sendTimeout time.Duration) *Manager {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   sendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps the notification with the next sequence number and sends
// it to all subscribers in parallel. A subscriber whose Send fails is
// removed; one that times out is skipped for this notification only.
func (m *Manager) Broadcast(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []string
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed, dropping subscriber: id=%s err=%v", s.id, err)
					failMu.Lock()
					failed = append(failed, s.id)
					failMu.Unlock()
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s seq=%d", s.id, n.SequenceNo)
			}
		}(sub)
	}
	wg.Wait()

	for _, id := range failed {
		m.Unsubscribe(id)
	}
}

// Run broadcasts every event from events until the channel closes or ctx ends.
func (m *Manager) Run(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Broadcast(FromEvent(e))
		}
	}
}

// LastSequenceNo returns the sequence number of the latest broadcast.
func (m *Manager) LastSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
