// Command coinlet-wallet is a thin command-line loop over
// internal/walletcore: it refreshes UTXOs from a node on an interval
// and accepts "balance" and "send" commands from stdin.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/walletcore"
	"github.com/coinletchain/coinlet/pkg/crypto"
)

const refreshInterval = 5 * time.Second

func main() {
	fs := flag.NewFlagSet("coinlet-wallet", flag.ExitOnError)
	nodeAddr := fs.String("node", "", "address of the node to query and submit through")
	keyFile := fs.String("key-file", "", "path to a CBOR private key (as written by coinlet-keygen)")
	fee := fs.Float64("fee", 0, "fixed fee, in sats, applied to every send")
	fs.Parse(os.Args[1:])

	if err := log.Init(envLogLevel(), false, ""); err != nil {
		fmt.Fprintln(os.Stderr, "coinlet-wallet: init logging:", err)
		os.Exit(1)
	}

	if *nodeAddr == "" || *keyFile == "" {
		fmt.Fprintln(os.Stderr, "coinlet-wallet: -node and -key-file are required")
		os.Exit(1)
	}

	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load private key")
	}

	w, err := walletcore.New(*nodeAddr, key)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to node")
	}

	feeCfg := walletcore.FeeConfig{Type: walletcore.FeeFixed, Value: *fee}

	go refreshLoop(w)

	fmt.Printf("address: %s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Println("commands: balance | send <recipient-pubkey-hex> <amount> | quit")
	repl(w, feeCfg)
}

func refreshLoop(w *walletcore.Wallet) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := w.Refresh(); err != nil {
			log.Wallet.Warn().Err(err).Msg("utxo refresh failed")
		}
	}
}

func repl(w *walletcore.Wallet, feeCfg walletcore.FeeConfig) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "balance":
			if err := w.Refresh(); err != nil {
				fmt.Println("refresh failed:", err)
				continue
			}
			fmt.Println(w.Balance())
		case "send":
			if len(fields) != 3 {
				fmt.Println("usage: send <recipient-pubkey-hex> <amount>")
				continue
			}
			handleSend(w, feeCfg, fields[1], fields[2])
		case "quit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func handleSend(w *walletcore.Wallet, feeCfg walletcore.FeeConfig, recipientHex, amountStr string) {
	recipient, err := hex.DecodeString(recipientHex)
	if err != nil {
		fmt.Println("invalid recipient public key:", err)
		return
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		fmt.Println("invalid amount:", err)
		return
	}
	t, err := w.Send(recipient, amount, feeCfg)
	if err != nil {
		fmt.Println("send failed:", err)
		return
	}
	fmt.Println("submitted:", t.Hash().String())
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	var scalar []byte
	if err := codec.Unmarshal(data, &scalar); err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return crypto.PrivateKeyFromBytes(scalar)
}

func envLogLevel() string {
	if lvl := os.Getenv("RUST_LOG"); lvl != "" {
		return lvl
	}
	return "info"
}
