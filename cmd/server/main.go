// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/openbid/auctionroom/internal/auth"
	"github.com/openbid/auctionroom/internal/cache"
	"github.com/openbid/auctionroom/internal/handlers"
	"github.com/openbid/auctionroom/internal/middleware"
	"github.com/openbid/auctionroom/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	registry := room.NewRegistry()

	// The event journal is optional: without REDIS_ADDR the rooms run
	// exactly the same, they just leave no trail.
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.Warnf("auction journal disabled: %v", err)
		} else {
			registry.Journal = func(roomCode string, actorID uuid.UUID, eventType string, payload map[string]interface{}) {
				record := cache.AuctionEventRecord{
					RoomCode:  roomCode,
					ActorID:   actorID,
					EventType: eventType,
					Payload:   payload,
					Timestamp: time.Now().Unix(),
				}
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := cache.PublishAuctionEvent(ctx, record); err != nil {
						logger.Warnf("failed to journal %s event for room %s: %v", eventType, roomCode, err)
					}
				}()
			}
			logger.Info("auction journal enabled")
		}
	}

	mux := http.NewServeMux()

	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, registry),
	)))
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(registry),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Auction server running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
