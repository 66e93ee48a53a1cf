package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"legion-prm/pkg/errutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+errutil.Message(err))
		stop()
		os.Exit(1)
	}
}
