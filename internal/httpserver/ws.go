// internal/httpserver/ws.go
//
// Websocket gateway: one goroutine pair per connection.
//   - readLoop decodes client frames and dispatches place/requestHistory.
//   - writeLoop drains the observer queue and keeps the link alive with pings.
//
// Identity: the participant id comes from the participantId (or legacy
// playerId) query parameter, or a fresh UUID. A place request may name a
// different id; ids are unverified capability tokens.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridboard/apps/go-server/internal/game"
	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/hub"
)

// Client → server events.
const (
	eventPlace          = "place"
	eventRequestHistory = "requestHistory"
)

const maxFrameBytes = 4096

var (
	errInvalidMessage = errors.New("invalid message")
	errUnknownEvent   = errors.New("unknown event")
)

// initPayload is the first frame on every connection.
type initPayload struct {
	Cells         []grid.Cell            `json:"cells"`
	History       []grid.PlacementRecord `json:"history"`
	ParticipantID string                 `json:"participantId"`
	Online        int                    `json:"online"`
	LockedUntil   int64                  `json:"lockedUntil,omitempty"`
}

// placeReq is the data of a place event. CellIndex and Char stay raw so
// a mistyped field maps to the matching placement error instead of failing
// the whole frame.
type placeReq struct {
	CellIndex     json.RawMessage `json:"cellIndex"`
	Char          json.RawMessage `json:"char"`
	ParticipantID string          `json:"participantId,omitempty"`
}

// index returns the requested cell, or -1 when it is missing, null, not an
// integer, or out of int range.
func (p placeReq) index() int {
	var idx int
	if len(p.CellIndex) == 0 || string(p.CellIndex) == "null" || json.Unmarshal(p.CellIndex, &idx) != nil {
		return -1
	}
	return idx
}

// char returns the requested value, or "" when it is missing or not a string.
func (p placeReq) char() string {
	var c string
	if len(p.Char) == 0 || json.Unmarshal(p.Char, &c) != nil {
		return ""
	}
	return c
}

type historyRes struct {
	OK      bool                   `json:"ok"`
	History []grid.PlacementRecord `json:"history"`
}

// handleWS upgrades the request and serves the connection until it closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade")
		return
	}
	// Committed placements are journaled even if the client hangs up mid-request.
	ctx := context.WithoutCancel(r.Context())
	s.serveConn(ctx, conn, participantFromRequest(r))
}

func participantFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("participantId"); id != "" {
		return id
	}
	if id := q.Get("playerId"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, participantID string) {
	defer conn.Close()

	s.players.OnConnect(participantID)

	var obs *hub.Observer
	s.svc.Sync(func(snap grid.Snapshot) {
		st := s.players.Get(participantID)
		initMsg, err := hub.NewMessage(hub.EventInit, "", initPayload{
			Cells:         snap.Cells,
			History:       snap.History,
			ParticipantID: participantID,
			Online:        s.players.OnlineCount(),
			LockedUntil:   st.LockedUntil,
		})
		if err != nil {
			log.Error().Err(err).Msg("encode init")
			obs = s.hub.Join(participantID)
			return
		}
		obs = s.hub.Join(participantID, initMsg)
	})
	s.svc.AnnouncePresence()
	log.Debug().Str("participant", participantID).Str("observer", obs.ID).Msg("connected")

	defer func() {
		s.hub.Leave(obs)
		s.players.OnDisconnect(participantID)
		s.svc.AnnouncePresence()
		log.Debug().Str("participant", participantID).Str("observer", obs.ID).Msg("disconnected")
	}()

	go s.writeLoop(conn, obs)
	s.readLoop(ctx, conn, obs, participantID)
}

// readLoop returns when the client goes away or the write side closes conn.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, obs *hub.Observer, participantID string) {
	pongWait := s.opts.PingInterval + s.opts.WriteTimeout
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("participant", participantID).Msg("read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := s.handleFrame(ctx, raw, participantID)
		if reply.Type == "" {
			continue
		}
		if !s.hub.Send(obs, reply) {
			// Dropped for being slow; the write loop is closing conn.
			return
		}
	}
}

// handleFrame turns one client frame into the ack to send back. A panic
// while handling the frame becomes an internal-error ack; the connection
// stays open.
func (s *Server) handleFrame(ctx context.Context, raw []byte, participantID string) (reply hub.Message) {
	var in hub.Message
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			log.Error().Err(err).Str("participant", participantID).Str("type", in.Type).Msg("recovered while handling frame")
			reply = s.ack(in.ID, game.Failed(err))
		}
	}()

	if err := json.Unmarshal(raw, &in); err != nil {
		return s.ack("", game.Failed(errInvalidMessage))
	}

	switch in.Type {
	case eventPlace:
		var req placeReq
		if len(in.Data) == 0 || json.Unmarshal(in.Data, &req) != nil {
			return s.ack(in.ID, game.Failed(errInvalidMessage))
		}
		pid := participantID
		if req.ParticipantID != "" {
			pid = req.ParticipantID
		}
		return s.ack(in.ID, s.svc.Place(ctx, pid, req.index(), req.char(), s.opts.Now()))

	case eventRequestHistory:
		return s.ack(in.ID, historyRes{OK: true, History: s.svc.History()})

	default:
		return s.ack(in.ID, game.Failed(errUnknownEvent))
	}
}

func (s *Server) ack(id string, data any) hub.Message {
	msg, err := hub.NewMessage(hub.EventAck, id, data)
	if err != nil {
		log.Error().Err(err).Msg("encode ack")
		return hub.Message{Type: hub.EventAck, ID: id, Data: json.RawMessage(`{"ok":false,"error":"internal error"}`)}
	}
	return msg
}

// writeLoop is the only writer of data frames on conn.
func (s *Server) writeLoop(conn *websocket.Conn, obs *hub.Observer) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case b, ok := <-obs.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debug().Err(err).Str("observer", obs.ID).Msg("write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
