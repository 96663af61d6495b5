// Command quaketrends downloads the precursor activity of strong earthquakes
// from the USGS event service and plots its trends.
//
// Usage:
//
//	quaketrends [base-dir] [download]
//	quaketrends status [base-dir]
//	quaketrends validate [base-dir]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
