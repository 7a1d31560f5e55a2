// Command coinlet-keygen generates a fresh secp256k1 keypair and
// writes it to a PEM public key file and a CBOR private key file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/pkg/crypto"
)

func main() {
	fs := flag.NewFlagSet("coinlet-keygen", flag.ExitOnError)
	publicKeyFile := fs.String("public-key-file", "", "base path; writes <base>.pub.pem and <base>.priv.cbor")
	fs.Parse(os.Args[1:])

	if *publicKeyFile == "" {
		fmt.Fprintln(os.Stderr, "coinlet-keygen: -public-key-file is required")
		os.Exit(1)
	}

	if err := run(*publicKeyFile); err != nil {
		fmt.Fprintln(os.Stderr, "coinlet-keygen:", err)
		os.Exit(1)
	}
}

func run(base string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	pubPEM, err := crypto.MarshalPublicKeyPEM(key.PublicKey())
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	if err := os.WriteFile(base+".pub.pem", pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key file: %w", err)
	}

	privCBOR, err := codec.Marshal(key.Serialize())
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(base+".priv.cbor", privCBOR, 0o600); err != nil {
		return fmt.Errorf("write private key file: %w", err)
	}

	fmt.Println("Saved")
	return nil
}
