// Command indexer runs the borrower risk-tier indexer, or resets its
// database tables when invoked as `indexer reset`.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "reset" {
		if err := app.Reset(ctx); err != nil {
			log.Fatalf("reset failed: %v", err)
		}
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("indexer failed: %v", err)
	}
}
