// devstub is a local stand-in for the platform backend. It mints bearer
// tokens and serves the directory endpoints with canned data so the client
// can be exercised without a real deployment. Not a product surface.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talkboard.app/internal/devstub"
	"talkboard.app/internal/obs"
)

func main() {
	obs.Init()

	addr := os.Getenv("TALKBOARD_STUB_ADDR")
	if addr == "" {
		addr = ":8089"
	}
	secret := os.Getenv("TALKBOARD_STUB_SECRET")
	if secret == "" {
		secret = "dev-only-secret"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           devstub.New(secret).Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting talkboard devstub on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
