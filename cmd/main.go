package main

import (
	"context"
	"flag"
	"log"

	"github.com/chu0802/CryptoTrader/internal/app"
)

func main() {
	mode := flag.String("mode", "backtest", "one of: backtest, fetch, trade, serve")
	total := flag.Int("total", 500000, "number of 1-minute candles to fetch (fetch mode)")
	flag.Parse()

	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	ctx := context.Background()
	switch *mode {
	case "backtest":
		err = application.RunBacktest(ctx)
	case "fetch":
		err = application.RunFetch(ctx, *total)
	case "trade":
		err = application.RunTrade(ctx)
	case "serve":
		err = application.RunServe(ctx)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}

	if err != nil {
		log.Fatalf("application error: %v", err)
	}
}
