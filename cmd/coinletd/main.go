// Command coinletd runs a node: it serves peers and wallets over the
// wire protocol, validates and relays blocks and transactions, and
// persists a periodic snapshot to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/node"
)

func main() {
	fs := flag.NewFlagSet("coinletd", flag.ExitOnError)
	port := fs.Int("port", 9000, "listen port")
	blockchainFile := fs.String("blockchain-file", "", "path to the snapshot file")
	fs.Parse(os.Args[1:])
	peers := fs.Args()

	if err := log.Init(envLogLevel(), false, ""); err != nil {
		fmt.Fprintln(os.Stderr, "coinletd: init logging:", err)
		os.Exit(1)
	}

	if *blockchainFile == "" {
		fmt.Fprintln(os.Stderr, "coinletd: -blockchain-file is required")
		os.Exit(1)
	}

	cfg := node.Config{
		ListenAddr:     fmt.Sprintf("0.0.0.0:%d", *port),
		AdvertiseAddr:  fmt.Sprintf("localhost:%d", *port),
		SnapshotFile:   *blockchainFile,
		BootstrapPeers: peers,
	}
	n := node.New(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := n.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("node failed to start")
	}

	<-ctx.Done()
	log.Node.Info().Msg("shutting down")
	if err := n.Stop(); err != nil {
		log.Node.Error().Err(err).Msg("error during shutdown")
	}
}

// envLogLevel reads RUST_LOG for a level filter, the one environment
// input this system honors.
func envLogLevel() string {
	if lvl := os.Getenv("RUST_LOG"); lvl != "" {
		return lvl
	}
	return "info"
}
