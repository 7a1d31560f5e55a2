package walletcore

import (
	"net"
	"testing"

	"github.com/coinletchain/coinlet/internal/wire"
	"github.com/coinletchain/coinlet/pkg/crypto"
	"github.com/coinletchain/coinlet/pkg/tx"
)

// newTestWallet builds a Wallet wired to the client end of a net.Pipe,
// with the server end left for the test to drive.
func newTestWallet(t *testing.T) (*Wallet, *crypto.PrivateKey, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	w := &Wallet{key: key, conn: client}
	t.Cleanup(func() { server.Close() })
	return w, key, server
}

func TestRefresh_InstallsUTXOs(t *testing.T) {
	w, key, server := newTestWallet(t)
	entry := wire.UTXOEntry{Output: tx.NewTransactionOutput(100, key.PublicKey())}

	done := make(chan error, 1)
	go func() { done <- w.Refresh() }()

	req, err := wire.ReadMessage(server)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if req.Type != wire.MessageFetchUTXOs {
		t.Fatalf("expected FetchUTXOs, got %v", req.Type)
	}
	if err := wire.WriteMessage(server, must(wire.NewUTXOs([]wire.UTXOEntry{entry}))); err != nil {
		t.Fatalf("server write: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := w.Balance(); got != 100 {
		t.Errorf("Balance() = %d, want 100", got)
	}
}

func TestBalance_IncludesMarkedUTXOs(t *testing.T) {
	w, key, _ := newTestWallet(t)
	w.utxos = []wire.UTXOEntry{
		{Output: tx.NewTransactionOutput(100, key.PublicKey()), Marked: false},
		{Output: tx.NewTransactionOutput(50, key.PublicKey()), Marked: true},
	}

	if got := w.Balance(); got != 150 {
		t.Errorf("Balance() = %d, want 150 (marked UTXOs still count)", got)
	}
}

func TestSpendable_ExcludesMarkedUTXOs(t *testing.T) {
	w, key, _ := newTestWallet(t)
	w.utxos = []wire.UTXOEntry{
		{Output: tx.NewTransactionOutput(100, key.PublicKey()), Marked: false},
		{Output: tx.NewTransactionOutput(50, key.PublicKey()), Marked: true},
	}

	spendable := w.Spendable()
	if len(spendable) != 1 {
		t.Fatalf("Spendable() returned %d outputs, want 1", len(spendable))
	}
	if spendable[0].Value != 100 {
		t.Errorf("Spendable()[0].Value = %d, want 100", spendable[0].Value)
	}
}

func TestSend_SignsAndSubmits(t *testing.T) {
	w, key, server := newTestWallet(t)
	w.utxos = []wire.UTXOEntry{
		{Output: tx.NewTransactionOutput(1000, key.PublicKey())},
	}
	recipient, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	done := make(chan error, 1)
	var sent tx.Transaction
	go func() {
		var sendErr error
		sent, sendErr = w.Send(recipient.PublicKey(), 100, FeeConfig{Type: FeeFixed, Value: 10})
		done <- sendErr
	}()

	req, err := wire.ReadMessage(server)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if req.Type != wire.MessageSubmitTransaction {
		t.Fatalf("expected SubmitTransaction, got %v", req.Type)
	}
	submitted, err := wire.DecodeSubmitTransaction(req)
	if err != nil {
		t.Fatalf("decode SubmitTransaction: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if submitted.Transaction.Hash() != sent.Hash() {
		t.Error("submitted transaction does not match returned transaction")
	}
	if len(sent.Outputs) != 2 {
		t.Fatalf("expected a recipient output and a change output, got %d outputs", len(sent.Outputs))
	}
	if sent.Outputs[0].Value != 100 {
		t.Errorf("recipient output value = %d, want 100", sent.Outputs[0].Value)
	}
	if want := uint64(1000 - 100 - 10); sent.Outputs[1].Value != want {
		t.Errorf("change output value = %d, want %d", sent.Outputs[1].Value, want)
	}
	if !sent.VerifyInputSignature(0, w.utxos[0].Output.Hash(), key.PublicKey()) {
		t.Error("input signature does not verify against spent output's public key")
	}
}

func TestSend_InsufficientFunds(t *testing.T) {
	w, key, _ := newTestWallet(t)
	w.utxos = []wire.UTXOEntry{
		{Output: tx.NewTransactionOutput(5, key.PublicKey())},
	}
	recipient, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	if _, err := w.Send(recipient.PublicKey(), 100, FeeConfig{Type: FeeFixed, Value: 0}); err != ErrInsufficientFunds {
		t.Errorf("Send() error = %v, want ErrInsufficientFunds", err)
	}
}
