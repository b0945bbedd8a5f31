package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/hub"
)

// joined is an observer together with the snapshot it was synced from.
type joined struct {
	obs  *hub.Observer
	snap grid.Snapshot
}

func updatesFrom(t *testing.T, o *hub.Observer) []grid.PlacementRecord {
	t.Helper()
	var out []grid.PlacementRecord
	for {
		select {
		case b, ok := <-o.Messages():
			if !ok {
				t.Fatalf("observer %s was dropped", o.ID)
			}
			var m hub.Message
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m.Type != hub.EventUpdateCell {
				continue
			}
			var p hub.UpdatePayload
			if err := json.Unmarshal(m.Data, &p); err != nil {
				t.Fatalf("decode update: %v", err)
			}
			out = append(out, p.Update)
		default:
			return out
		}
	}
}

func TestSyncSnapshotLinesUpWithUpdates(t *testing.T) {
	h := hub.New(1024)
	svc, g, _ := newTestService(Options{Broadcaster: h})

	const placements, joiners = 100, 40
	var wg sync.WaitGroup
	for i := 0; i < placements; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.Place(context.Background(), fmt.Sprintf("p%d", i), i, "x", t0)
		}(i)
	}

	var mu sync.Mutex
	var observers []joined
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var j joined
			svc.Sync(func(snap grid.Snapshot) {
				j = joined{obs: h.Join(fmt.Sprintf("o%d", i)), snap: snap}
			})
			mu.Lock()
			observers = append(observers, j)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	final := g.History()
	if len(final) != placements {
		t.Fatalf("expected %d placements, got %d", placements, len(final))
	}
	for _, j := range observers {
		seen := append(append([]grid.PlacementRecord{}, j.snap.History...), updatesFrom(t, j.obs)...)
		if len(seen) != len(final) {
			t.Fatalf("observer %s: snapshot %d + updates = %d records, want %d",
				j.obs.ID, len(j.snap.History), len(seen), len(final))
		}
		for i := range final {
			if seen[i] != final[i] {
				t.Fatalf("observer %s: record %d is %+v, want %+v", j.obs.ID, i, seen[i], final[i])
			}
		}
	}
}

func TestAnnouncePresenceReportsLatestCount(t *testing.T) {
	rec := &recorder{}
	svc, _, r := newTestService(Options{Broadcaster: rec})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			r.OnConnect(id)
			svc.AnnouncePresence()
			if i%2 == 0 {
				r.OnDisconnect(id)
				svc.AnnouncePresence()
			}
			if i%5 == 0 {
				svc.Place(context.Background(), id, i, "x", t0.Add(time.Duration(i)*time.Millisecond))
			}
		}(i)
	}
	wg.Wait()

	if len(rec.presence) == 0 {
		t.Fatalf("no presence broadcasts recorded")
	}
	last := rec.presence[len(rec.presence)-1]
	if last != r.OnlineCount() || last != 25 {
		t.Fatalf("last presence %d, online %d, want 25", last, r.OnlineCount())
	}
}
