// Package walletcore implements the wallet's core view: a periodic
// UTXO refresh against a single node, balance accounting that
// separates mempool-reserved funds from the spendable set, and
// transaction composition (coin selection, fee, change, signing).
package walletcore

import (
	"fmt"
	"net"
	"sync"

	"github.com/coinletchain/coinlet/internal/wire"
	"github.com/coinletchain/coinlet/pkg/crypto"
	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

// Wallet holds the owner's key, a connection to one node, and the
// last UTXO set fetched for that key.
type Wallet struct {
	key  *crypto.PrivateKey
	conn net.Conn

	mu    sync.Mutex // guards request/response pairs on conn
	utxos []wire.UTXOEntry
}

// New dials addr and returns a Wallet for key.
func New(addr string, key *crypto.PrivateKey) (*Wallet, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("walletcore: dial %s: %w", addr, err)
	}
	return &Wallet{key: key, conn: conn}, nil
}

func (w *Wallet) request(msg wire.Message) (wire.Message, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := wire.WriteMessage(w.conn, msg); err != nil {
		return wire.Message{}, err
	}
	return wire.ReadMessage(w.conn)
}

func (w *Wallet) send(msg wire.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wire.WriteMessage(w.conn, msg)
}

// Refresh polls FetchUTXOs and replaces the cached UTXO set.
func (w *Wallet) Refresh() error {
	reply, err := w.request(must(wire.NewFetchUTXOs(w.key.PublicKey())))
	if err != nil {
		return fmt.Errorf("walletcore: fetch utxos: %w", err)
	}
	payload, err := wire.DecodeUTXOs(reply)
	if err != nil {
		return fmt.Errorf("walletcore: unexpected reply fetching utxos: %w", err)
	}
	w.mu.Lock()
	w.utxos = payload.UTXOs
	w.mu.Unlock()
	return nil
}

// Balance returns the total value of every known UTXO, marked or not,
// for display purposes per §4.5.
func (w *Wallet) Balance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total uint64
	for _, u := range w.utxos {
		total += u.Output.Value
	}
	return total
}

// Spendable returns only the unmarked outputs: the set coin selection
// may draw from.
func (w *Wallet) Spendable() []tx.TransactionOutput {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []tx.TransactionOutput
	for _, u := range w.utxos {
		if !u.Marked {
			out = append(out, u.Output)
		}
	}
	return out
}

// Send composes, signs, and submits a transaction paying amount to
// recipientPublicKey, per §4.5: greedy coin selection over the
// spendable set, a fee per feeCfg, a change output back to the owner
// when residual funds remain, and input signatures over each spent
// output's hash.
func (w *Wallet) Send(recipientPublicKey []byte, amount uint64, feeCfg FeeConfig) (tx.Transaction, error) {
	fee := feeCfg.Compute(amount)
	selection, err := SelectCoins(w.Spendable(), amount+fee)
	if err != nil {
		return tx.Transaction{}, err
	}

	inputHashes := make([]types.Hash, len(selection.Inputs))
	inputs := make([]tx.TransactionInput, len(selection.Inputs))
	for i, prevOut := range selection.Inputs {
		h := prevOut.Hash()
		inputHashes[i] = h
		inputs[i] = tx.TransactionInput{PrevTXOHash: h}
	}

	outputs := []tx.TransactionOutput{tx.NewTransactionOutput(amount, recipientPublicKey)}
	if selection.Change > 0 {
		outputs = append(outputs, tx.NewTransactionOutput(selection.Change, w.key.PublicKey()))
	}

	t := tx.Transaction{Inputs: inputs, Outputs: outputs}
	if err := t.Sign(w.key, inputHashes); err != nil {
		return tx.Transaction{}, fmt.Errorf("walletcore: sign transaction: %w", err)
	}

	if err := w.send(must(wire.NewSubmitTransaction(t))); err != nil {
		return tx.Transaction{}, fmt.Errorf("walletcore: submit transaction: %w", err)
	}
	return t, nil
}

func must(msg wire.Message, err error) wire.Message {
	if err != nil {
		panic(err)
	}
	return msg
}
