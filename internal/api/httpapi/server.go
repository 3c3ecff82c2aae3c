// Package httpapi provides the JSON control API for a playback session.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/playback"
	"github.com/osa030/upnext/internal/app/queue"
	"github.com/osa030/upnext/internal/app/session"
	"github.com/osa030/upnext/internal/domain/playlist"
	"github.com/osa030/upnext/internal/domain/track"
)

const maxBodyBytes = 1 << 20

// Server serves the control API of one session.
type Server struct {
	session  *session.Manager
	token    string
	router   *mux.Router
	validate *validator.Validate
}

// NewServer creates the API server. Every route requires token in the
// X-Admin-Token header.
func NewServer(sess *session.Manager, token string) *Server {
	s := &Server{
		session:  sess,
		token:    token,
		validate: validator.New(),
	}

	s.router = mux.NewRouter().StrictSlash(false)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "")
	})

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(adminAuth(token))

	// Queries
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	// Queue edits
	api.HandleFunc("/playlist", s.control(s.handleSetPlaylist)).Methods(http.MethodPut)
	api.HandleFunc("/next-queue", s.control(s.handleAddPlayNext)).Methods(http.MethodPost)

	// Transport
	api.HandleFunc("/play", s.control(s.withTracks(s.session.Playback().Play))).Methods(http.MethodPost)
	api.HandleFunc("/pause", s.control(s.simple(s.session.Playback().Pause))).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.control(s.simple(s.session.Playback().Stop))).Methods(http.MethodPost)
	api.HandleFunc("/next", s.control(s.withTracks(s.session.Playback().Next))).Methods(http.MethodPost)
	api.HandleFunc("/previous", s.control(s.withTracks(s.session.Playback().Previous))).Methods(http.MethodPost)
	api.HandleFunc("/reorder", s.control(s.simple(s.session.Playback().ReorderForPrevious))).Methods(http.MethodPost)
	api.HandleFunc("/play/{index:[0-9]+}", s.control(s.indexed(s.session.Playback().PlayAtIndex))).Methods(http.MethodPost)
	api.HandleFunc("/play/main/{index:[0-9]+}", s.control(s.indexed(s.session.Playback().PlayMainAtIndex))).Methods(http.MethodPost)
	api.HandleFunc("/play/next/{index:[0-9]+}", s.control(s.indexed(s.session.Playback().PlayNextAtIndex))).Methods(http.MethodPost)
	api.HandleFunc("/seek", s.control(s.handleSeek)).Methods(http.MethodPost)

	// Modes
	api.HandleFunc("/shuffle", s.control(s.handleShuffle)).Methods(http.MethodPut)
	api.HandleFunc("/repeat", s.control(s.handleRepeat)).Methods(http.MethodPut)
	api.HandleFunc("/mute", s.control(s.handleMute)).Methods(http.MethodPut)

	return s
}

// Handler returns the router wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	accessLog := zlog.Logger.With().Str("component", "http").Logger().Level(zerolog.DebugLevel)
	logged := handlers.LoggingHandler(accessLog, s.router)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(logged)
}

// control rejects the request unless the session is running.
func (s *Server) control(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.session.IsActive() {
			writeErr(w, session.ErrSessionNotRunning)
			return
		}
		h(w, r)
	}
}

func (s *Server) simple(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op()
		s.writeStatus(w, http.StatusOK)
	}
}

// withTracks runs op only when there is something to play.
func (s *Server) withTracks(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.session.Queue().TotalTracks() == 0 {
			writeErr(w, queue.ErrQueueEmpty)
			return
		}
		op()
		s.writeStatus(w, http.StatusOK)
	}
}

// indexed parses the {index} route variable and passes it to op.
func (s *Server) indexed(op func(int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(mux.Vars(r)["index"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid index")
			return
		}
		if s.session.Queue().TotalTracks() == 0 {
			writeErr(w, queue.ErrQueueEmpty)
			return
		}
		op(index)
		s.writeStatus(w, http.StatusOK)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.GetStatus())
}

// QueueResponse is the body of GET /v1/queue.
type QueueResponse struct {
	Main         []track.Track `json:"main"`
	Next         []track.Track `json:"next"`
	All          []track.Track `json:"all"`
	UpcomingNext []track.Track `json:"upcoming_next"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Queue().Snapshot()
	writeJSON(w, http.StatusOK, QueueResponse{
		Main:         snap.Main,
		Next:         snap.Next,
		All:          snap.All,
		UpcomingNext: s.session.Playback().UpcomingNext(),
	})
}

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	Tracks []track.Track `json:"tracks"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{Tracks: s.session.Queue().History()})
}

// TrackRequest describes a track supplied by a client.
type TrackRequest struct {
	URL    string `json:"url" validate:"required"`
	Name   string `json:"name"`
	Album  string `json:"album"`
	Artist string `json:"artist"`
	Image  string `json:"image"`
}

func (t TrackRequest) toTrack() track.Track {
	name := t.Name
	if name == "" {
		name = t.URL
	}
	return track.New(t.URL, name, t.Album, t.Artist, t.Image)
}

// PlaylistRequest is the body of PUT /v1/playlist.
type PlaylistRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Tracks []TrackRequest `json:"tracks" validate:"dive"`
}

func (s *Server) handleSetPlaylist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}

	pl := playlist.Playlist{ID: req.ID, Name: req.Name, Tracks: make([]track.Track, 0, len(req.Tracks))}
	for _, t := range req.Tracks {
		pl.Tracks = append(pl.Tracks, t.toTrack())
	}
	s.session.LoadPlaylist(pl)
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) handleAddPlayNext(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.AddPlayNext(r.Context(), req.toTrack()); err != nil {
		writeErr(w, err)
		return
	}
	s.writeStatus(w, http.StatusCreated)
}

// SeekRequest is the body of POST /v1/seek.
type SeekRequest struct {
	Fraction *float64 `json:"fraction" validate:"required"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.Playback().Seek(*req.Fraction); err != nil {
		writeErr(w, err)
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// ShuffleRequest is the body of PUT /v1/shuffle.
type ShuffleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req ShuffleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled {
		s.session.Playback().EnableShuffle()
	} else {
		s.session.Playback().DisableShuffle()
	}
	s.writeStatus(w, http.StatusOK)
}

// RepeatRequest is the body of PUT /v1/repeat.
type RepeatRequest struct {
	Mode string `json:"mode" validate:"oneof=off all one"`
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req RepeatRequest
	if !s.decode(w, r, &req) {
		return
	}
	mode, _ := playback.ParseRepeatMode(req.Mode)
	switch mode {
	case playback.RepeatAll:
		s.session.Playback().EnableRepeat()
	case playback.RepeatOne:
		s.session.Playback().EnableRepeatOne()
	default:
		s.session.Playback().DisableRepeat()
	}
	s.writeStatus(w, http.StatusOK)
}

// MuteRequest is the body of PUT /v1/mute.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req MuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.session.Playback().Mute(req.Muted)
	s.writeStatus(w, http.StatusOK)
}

// decode reads and validates a JSON body, writing 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body").Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request").Error())
		return false
	}
	return true
}

// writeStatus answers a command with the resulting session status.
func (s *Server) writeStatus(w http.ResponseWriter, code int) {
	writeJSON(w, code, s.session.GetStatus())
}
