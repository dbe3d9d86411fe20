package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulnsight/vulnsight/internal/cli"
	"github.com/vulnsight/vulnsight/internal/exec"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the scan and kills child processes; a second one
	// falls through to the default handler and terminates immediately.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\n[!] Received interrupt signal, cleaning up...\n")
		signal.Stop(sigChan)
		if n := exec.Running(); n > 0 {
			fmt.Fprintf(os.Stderr, "[!] Stopping %d running tool(s)\n", n)
		}
		cancel()
		exec.KillAllProcesses()
	}()

	if err := cli.Execute(ctx); err != nil {
		exec.KillAllProcesses()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
