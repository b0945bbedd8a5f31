// Package hub fans state changes out to every connected observer.
//
// Each observer owns a bounded queue of encoded messages drained by the
// transport's write loop. Enqueueing never blocks: an observer whose queue
// is full is dropped and its Done channel closed, so the transport can
// hang up and the client can re-sync with a fresh snapshot.
//
// Messages to one observer are delivered in the order they were enqueued.
// There is no ordering between observers and no acknowledgement.
package hub

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/metrics"
)

// DefaultBuffer is the per-observer queue length.
const DefaultBuffer = 64

// Event names on the wire.
const (
	EventInit       = "init"
	EventUpdateCell = "updateCell"
	EventOnline     = "online"
	EventAck        = "ack"
)

// Message is the envelope for every frame.
// ID correlates an ack with the request that caused it.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into an envelope.
func NewMessage(typ, id string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, ID: id, Data: raw}, nil
}

// UpdatePayload is the data of an updateCell broadcast.
type UpdatePayload struct {
	Update grid.PlacementRecord `json:"update"`
	Cells  []grid.Cell          `json:"cells"`
}

// OnlinePayload is the data of an online broadcast.
type OnlinePayload struct {
	Count int `json:"count"`
}

// Observer is one live connection receiving broadcasts.
type Observer struct {
	ID            string
	ParticipantID string

	send chan []byte
	done chan struct{}
}

// Messages yields encoded frames in delivery order. It is closed when the
// observer leaves or is dropped.
func (o *Observer) Messages() <-chan []byte { return o.send }

// Done is closed when the observer leaves or is dropped.
func (o *Observer) Done() <-chan struct{} { return o.done }

// Hub is the observer set.
type Hub struct {
	mu        sync.Mutex
	observers map[string]*Observer
	buffer    int
	nextID    atomic.Uint64
}

// New constructs a hub whose observers buffer up to buffer messages.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{observers: make(map[string]*Observer), buffer: buffer}
}

// Join adds an observer for participantID. Any initial messages are queued
// before the observer becomes visible to broadcasts.
func (h *Hub) Join(participantID string, initial ...Message) *Observer {
	o := &Observer{
		ID:            strconv.FormatUint(h.nextID.Add(1), 10),
		ParticipantID: participantID,
		send:          make(chan []byte, h.buffer+len(initial)),
		done:          make(chan struct{}),
	}
	for _, m := range initial {
		b, err := json.Marshal(m)
		if err != nil {
			log.Error().Err(err).Str("type", m.Type).Msg("encode initial message")
			continue
		}
		o.send <- b
	}

	h.mu.Lock()
	h.observers[o.ID] = o
	n := len(h.observers)
	h.mu.Unlock()

	metrics.SetObservers(n)
	log.Debug().Str("observer", o.ID).Str("participant", participantID).Msg("observer joined")
	return o
}

// Leave removes o. It is safe to call more than once.
func (h *Hub) Leave(o *Observer) {
	h.mu.Lock()
	h.removeLocked(o)
	n := len(h.observers)
	h.mu.Unlock()
	metrics.SetObservers(n)
}

// Send queues msg for o alone. It reports false if o is gone or was
// dropped for being too slow.
func (h *Hub) Send(o *Observer, msg Message) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("encode message")
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o.ID]; !ok {
		return false
	}
	return h.enqueueLocked(o, b)
}

// Broadcast queues msg for every observer.
func (h *Hub) Broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("encode broadcast")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, o := range h.observers {
		h.enqueueLocked(o, b)
	}
}

// BroadcastUpdate announces a committed placement with the full cell array.
func (h *Hub) BroadcastUpdate(rec grid.PlacementRecord, cells []grid.Cell) {
	msg, err := NewMessage(EventUpdateCell, "", UpdatePayload{Update: rec, Cells: cells})
	if err != nil {
		log.Error().Err(err).Msg("encode update")
		return
	}
	h.Broadcast(msg)
}

// BroadcastPresence announces the current online count.
func (h *Hub) BroadcastPresence(count int) {
	metrics.SetOnline(count)
	msg, err := NewMessage(EventOnline, "", OnlinePayload{Count: count})
	if err != nil {
		log.Error().Err(err).Msg("encode presence")
		return
	}
	h.Broadcast(msg)
}

// Len returns the number of observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close drops every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, o := range h.observers {
		h.removeLocked(o)
	}
	h.mu.Unlock()
	metrics.SetObservers(0)
}

func (h *Hub) enqueueLocked(o *Observer, b []byte) bool {
	select {
	case o.send <- b:
		return true
	default:
		log.Warn().Str("observer", o.ID).Str("participant", o.ParticipantID).Msg("observer queue full, dropping")
		metrics.ObserverDropped()
		h.removeLocked(o)
		return false
	}
}

func (h *Hub) removeLocked(o *Observer) {
	if _, ok := h.observers[o.ID]; !ok {
		return
	}
	delete(h.observers, o.ID)
	close(o.send)
	close(o.done)
}
