package server

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	"crashpit/internal/cache"
	"crashpit/internal/database"
	"crashpit/internal/game"
	"crashpit/internal/ledger"
	"crashpit/internal/settlement"
)

type FiberServer struct {
	*fiber.App

	db      database.Service
	cache   cache.Service
	ledger  settlement.Ledger
	gateway *settlement.Gateway
	rooms   *game.Registry
}

func New() *FiberServer {
	db := database.New()

	cacheService := cache.New()
	if cacheService == nil {
		log.Fatal("[SERVER] Redis is required for the round archive")
	}

	ledgerStore := ledger.NewPostgres(db.Pool())
	gateway := settlement.NewGateway(ledgerStore)

	cfg := game.ConfigFromEnv()
	clock := clockwork.NewRealClock()
	gen := game.NewHouseEdgeGenerator(cfg.HouseEdge, cfg.MaxMultiplier)

	rooms := game.NewRegistry()
	for _, name := range roomNames() {
		room := game.NewRoom(name, cfg, clock, gen, gateway)
		room.Scheduler.SetRecorder(cacheService)
		rooms.Add(room)
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashpit",
			AppName:       "crashpit",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:      db,
		cache:   cacheService,
		ledger:  ledgerStore,
		gateway: gateway,
		rooms:   rooms,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	gateway.Start()
	rooms.StartAll()

	log.Printf("[SERVER] rooms running: %s", strings.Join(rooms.Names(), ", "))

	return server
}

func roomNames() []string {
	raw := os.Getenv("CRASH_ROOMS")
	if raw == "" {
		return []string{"main"}
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []string{"main"}
	}
	return names
}

// Shutdown stops the rooms and settlement worker, then closes connections.
// Pending settlements are drained before the ledger goes away.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] shutting down")

	s.rooms.StopAll()
	s.gateway.Stop()

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
