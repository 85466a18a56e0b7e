// Command extract runs one climate extraction from the command line and
// writes the result as CSV.
//
// Usage:
//
//	go run ./cmd/extract --lat 59.91 --lon 10.75 \
//	  --decades 2030s,2050s --scenarios ssp245,ssp585 \
//	  --models ACCESS-CM2,MIROC6 --ensemble --preview 5 --out oslo.csv
//
//	go run ./cmd/extract --synthetic --place "Oslo" --decades 2020s --scenarios ssp245 --out -
//	go run ./cmd/extract probe --lat 59.91 --lon 10.75 --decades 2030s --scenarios ssp245
//	go run ./cmd/extract catalog
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(observability.NewMetrics()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
