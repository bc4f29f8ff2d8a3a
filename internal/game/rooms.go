package game

import (
	"log"

	"github.com/jonboulle/clockwork"
)

// Room is one independent game instance: its own hub, its own scheduler,
// its own round state. No round state is ever shared across rooms.
type Room struct {
	Name      string
	Hub       *Hub
	Scheduler *Scheduler
}

func NewRoom(name string, cfg Config, clock clockwork.Clock, gen CrashPointGenerator, settler Settler) *Room {
	hub := NewHub(name)
	return &Room{
		Name:      name,
		Hub:       hub,
		Scheduler: NewScheduler(cfg, clock, gen, hub, settler),
	}
}

// Registry holds every active room by name.
type Registry struct {
	rooms map[string]*Room
	order []string
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (r *Registry) Add(room *Room) {
	if _, ok := r.rooms[room.Name]; ok {
		return
	}
	r.rooms[room.Name] = room
	r.order = append(r.order, room.Name)
}

func (r *Registry) Get(name string) (*Room, bool) {
	room, ok := r.rooms[name]
	return room, ok
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// StartAll spins up every room's hub and scheduler. Rooms keep ticking with
// zero connected viewers; money is at stake whether anyone watches or not.
func (r *Registry) StartAll() {
	for _, name := range r.order {
		room := r.rooms[name]
		go room.Hub.Run()
		room.Scheduler.Start()
		log.Printf("[GAME] room %s started", name)
	}
}

func (r *Registry) StopAll() {
	for _, name := range r.order {
		room := r.rooms[name]
		room.Scheduler.Stop()
		room.Hub.Stop()
		log.Printf("[GAME] room %s stopped", name)
	}
}

// ClientCounts reports connected viewers per room, for health reporting.
func (r *Registry) ClientCounts() map[string]int {
	counts := make(map[string]int, len(r.order))
	for _, name := range r.order {
		counts[name] = r.rooms[name].Hub.ClientCount()
	}
	return counts
}
