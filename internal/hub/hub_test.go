package hub

import (
	"encoding/json"
	"testing"

	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
)

func decode(t *testing.T, b []byte) Message {
	t.Helper()
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return m
}

func drain(o *Observer) [][]byte {
	var out [][]byte
	for {
		select {
		case b, ok := <-o.Messages():
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestJoinQueuesInitialFirst(t *testing.T) {
	h := New(4)
	initMsg, _ := NewMessage(EventInit, "", map[string]string{"participantId": "p1"})
	o := h.Join("p1", initMsg)
	h.BroadcastPresence(1)

	got := drain(o)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if m := decode(t, got[0]); m.Type != EventInit {
		t.Fatalf("expected init first, got %q", m.Type)
	}
	if m := decode(t, got[1]); m.Type != EventOnline || string(m.Data) != `{"count":1}` {
		t.Fatalf("unexpected presence message %+v", m)
	}
}

func TestBroadcastReachesAllInOrder(t *testing.T) {
	h := New(8)
	a, b := h.Join("p1"), h.Join("p2")
	for i := 0; i < 3; i++ {
		h.BroadcastUpdate(grid.PlacementRecord{CellIndex: i, Char: "x"}, []grid.Cell{{Value: "x"}})
	}
	for _, o := range []*Observer{a, b} {
		msgs := drain(o)
		if len(msgs) != 3 {
			t.Fatalf("observer %s: expected 3 messages, got %d", o.ID, len(msgs))
		}
		for i, raw := range msgs {
			m := decode(t, raw)
			var p UpdatePayload
			if err := json.Unmarshal(m.Data, &p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if m.Type != EventUpdateCell || p.Update.CellIndex != i {
				t.Fatalf("observer %s: message %d out of order: %+v", o.ID, i, p)
			}
		}
	}
}

func TestSlowObserverIsDropped(t *testing.T) {
	h := New(1)
	slow := h.Join("p1")
	fast := h.Join("p2")

	h.BroadcastPresence(1)
	<-fast.Messages()
	h.BroadcastPresence(2)

	select {
	case <-slow.Done():
	default:
		t.Fatalf("expected slow observer to be dropped")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 remaining observer, got %d", h.Len())
	}
	if h.Send(slow, Message{Type: EventAck}) {
		t.Fatalf("send to dropped observer should fail")
	}
	if len(drain(fast)) != 1 {
		t.Fatalf("fast observer should still receive broadcasts")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := New(1)
	o := h.Join("p1")
	h.Leave(o)
	h.Leave(o)
	if _, ok := <-o.Messages(); ok {
		t.Fatalf("expected closed message channel")
	}
	h.BroadcastPresence(0)
	if h.Len() != 0 {
		t.Fatalf("expected empty hub")
	}
}

func TestSendTargetsOneObserver(t *testing.T) {
	h := New(2)
	a, b := h.Join("p1"), h.Join("p2")
	msg, _ := NewMessage(EventAck, "req-1", map[string]bool{"ok": true})
	if !h.Send(a, msg) {
		t.Fatalf("send failed")
	}
	if got := drain(a); len(got) != 1 || decode(t, got[0]).ID != "req-1" {
		t.Fatalf("unexpected messages for a: %s", got)
	}
	if len(drain(b)) != 0 {
		t.Fatalf("b should not receive a's ack")
	}
}

func TestCloseDropsEveryone(t *testing.T) {
	h := New(1)
	a, b := h.Join("p1"), h.Join("p2")
	h.Close()
	for _, o := range []*Observer{a, b} {
		select {
		case <-o.Done():
		default:
			t.Fatalf("observer %s still open", o.ID)
		}
	}
}
