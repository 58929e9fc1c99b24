// Command impactl administers the IMPA site content from the command line.
//
// It opens the configured storage directly, so it works whether or not the
// server is running. With the file backend a running server picks up the
// changes through its directory watch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("impactl: ")+err.Error())
		os.Exit(1)
	}
}
