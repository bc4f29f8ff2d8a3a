package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"crashpit/internal/server"
)

func main() {
	s := server.New()
	s.RegisterFiberRoutes()

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	go func() {
		if err := s.Listen(fmt.Sprintf(":%d", port)); err != nil {
			log.Fatalf("[SERVER] listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		log.Printf("[SERVER] forced shutdown: %v", err)
	}

	if err := s.Shutdown(); err != nil {
		log.Printf("[SERVER] shutdown error: %v", err)
	}
	log.Println("[SERVER] bye")
}
