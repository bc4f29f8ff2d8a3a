package game

import (
	"testing"

	"github.com/jonboulle/clockwork"
)

func newTestRoom(name string) *Room {
	return NewRoom(name, schedulerConfig(), clockwork.NewFakeClock(), fixedGenerator{cp: 2.0}, &recordingSettler{})
}

func TestRegistry_AddAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newTestRoom("main"))
	reg.Add(newTestRoom("highroller"))

	room, ok := reg.Get("main")
	if !ok || room.Name != "main" {
		t.Fatalf("Get(main) = %v, %v", room, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) reported a room")
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "main" || names[1] != "highroller" {
		t.Errorf("Names() = %v, want [main highroller]", names)
	}
}

func TestRegistry_AddIgnoresDuplicates(t *testing.T) {
	reg := NewRegistry()
	first := newTestRoom("main")
	reg.Add(first)
	reg.Add(newTestRoom("main"))

	if got := len(reg.Names()); got != 1 {
		t.Fatalf("registry holds %d rooms, want 1", got)
	}
	if room, _ := reg.Get("main"); room != first {
		t.Error("duplicate Add replaced the original room")
	}
}

func TestRegistry_ClientCounts(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newTestRoom("main"))
	reg.Add(newTestRoom("highroller"))

	counts := reg.ClientCounts()
	if len(counts) != 2 {
		t.Fatalf("ClientCounts() has %d entries, want 2", len(counts))
	}
	for name, n := range counts {
		if n != 0 {
			t.Errorf("room %s reports %d viewers, want 0", name, n)
		}
	}
}

// TestRooms_IndependentState runs two rooms side by side and checks a bet in
// one never leaks into the other.
func TestRooms_IndependentState(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newTestRoom("main"))
	reg.Add(newTestRoom("highroller"))
	reg.StartAll()
	defer reg.StopAll()
	settle()

	main, _ := reg.Get("main")
	high, _ := reg.Get("highroller")

	if resp := main.Scheduler.PlaceBet(BetRequest{ParticipantID: "alice", Amount: 10}); !resp.Success {
		t.Fatalf("bet in main rejected: %s %s", resp.Reason, resp.Message)
	}

	// The same participant is free to bet again in the other room.
	if resp := high.Scheduler.PlaceBet(BetRequest{ParticipantID: "alice", Amount: 50}); !resp.Success {
		t.Fatalf("bet in highroller rejected: %s %s", resp.Reason, resp.Message)
	}

	mainSnap, ok := main.Scheduler.Snapshot().(WaitingSnapshot)
	if !ok {
		t.Fatalf("main snapshot = %T, want WaitingSnapshot", main.Scheduler.Snapshot())
	}
	highSnap, ok := high.Scheduler.Snapshot().(WaitingSnapshot)
	if !ok {
		t.Fatalf("highroller snapshot = %T, want WaitingSnapshot", high.Scheduler.Snapshot())
	}
	if mainSnap.RoundID == highSnap.RoundID {
		t.Errorf("rooms share round id %s", mainSnap.RoundID)
	}
	if len(mainSnap.Players) != 1 || mainSnap.Players[0].Amount != 10 {
		t.Errorf("main players = %+v, want one bet of 10", mainSnap.Players)
	}
	if len(highSnap.Players) != 1 || highSnap.Players[0].Amount != 50 {
		t.Errorf("highroller players = %+v, want one bet of 50", highSnap.Players)
	}
}
