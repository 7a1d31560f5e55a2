// Command coinlet-miner runs a standalone mining client against a
// single node: it fetches block templates, searches for a satisfying
// nonce, and submits solved blocks back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/miner"
	"github.com/coinletchain/coinlet/pkg/crypto"
)

func main() {
	fs := flag.NewFlagSet("coinlet-miner", flag.ExitOnError)
	nodeAddr := fs.String("node", "", "address of the node to mine against")
	publicKeyFile := fs.String("public-key-file", "", "path to a PEM SubjectPublicKeyInfo public key")
	fs.Parse(os.Args[1:])

	if err := log.Init(envLogLevel(), false, ""); err != nil {
		fmt.Fprintln(os.Stderr, "coinlet-miner: init logging:", err)
		os.Exit(1)
	}

	if *nodeAddr == "" || *publicKeyFile == "" {
		fmt.Fprintln(os.Stderr, "coinlet-miner: -node and -public-key-file are required")
		os.Exit(1)
	}

	publicKey, err := loadPublicKey(*publicKeyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load public key")
	}

	m, err := miner.New(*nodeAddr, publicKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to node")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Per the error handling policy, an unexpected reply terminates
	// the miner outright: miners are trivially restartable.
	if err := m.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("miner stopped")
	}
}

func loadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	return crypto.ParsePublicKeyPEM(data)
}

func envLogLevel() string {
	if lvl := os.Getenv("RUST_LOG"); lvl != "" {
		return lvl
	}
	return "info"
}
