// Command mock-backend runs the deterministic LKEAP stand-in from
// pkg/mockbackend so the adapters and the lkeap CLI can be exercised offline.
//
// Point the lkeap CLI at it with:
//
//	LKEAP_CHAT_BASE_URL=http://localhost:9090/v1
//	LKEAP_RERANK_ENDPOINT=localhost:9090
//	LKEAP_RERANK_SCHEME=HTTP
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lkeap-plugin/lkeap/pkg/mockbackend"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: mockbackend.NewHandler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
