// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/quartz"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/fwilhelm/connectk/internal/auth"
	"github.com/fwilhelm/connectk/internal/events"
	"github.com/fwilhelm/connectk/internal/handlers"
	"github.com/fwilhelm/connectk/internal/lobby"
	"github.com/fwilhelm/connectk/internal/middleware"
	"github.com/fwilhelm/connectk/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	st, err := store.Connect()
	if err != nil {
		log.Fatalf("store connect failed: %v", err)
	}

	broadcaster := events.NewBroadcaster(logger)
	registry := lobby.NewRegistry(st, broadcaster, logger, quartz.NewReal())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartSweeper(ctx, time.Minute)

	facade := handlers.NewFacade(registry, st, logger)

	mux := http.NewServeMux()
	mux.Handle("/lobby/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateLobbyHandler(facade),
	)))
	mux.Handle("/lobby/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListLobbiesHandler(facade),
	)))
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, facade, broadcaster),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
