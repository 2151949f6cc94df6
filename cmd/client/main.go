// Package main is the entry point for the order book summary client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/torcoste/orderbook-aggregator/internal/rpc"
)

func main() {
	addr := flag.String("addr", "[::1]:10000", "Aggregator server address")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string) error {
	client, err := rpc.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer client.Close()

	summaries, errc := client.StreamBookSummary(ctx)

	program := tea.NewProgram(newModel(addr))

	go func() {
		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case summary, ok := <-summaries:
				if !ok {
					program.Quit()
					return
				}
				program.Send(summaryMsg{summary: summary})
			case err := <-errc:
				program.Send(errMsg{err: err})
				return
			}
		}
	}()

	_, err = program.Run()
	return err
}
