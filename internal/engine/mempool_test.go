package engine

import (
	"testing"
	"time"

	"github.com/coinletchain/coinlet/pkg/crypto"
	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

// setupFundedEngine mines a genesis block paying payer, returning the
// engine and the genesis coinbase output.
func setupFundedEngine(t *testing.T) (*Engine, *crypto.PrivateKey, tx.TransactionOutput) {
	t.Helper()
	e := New()
	payer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	genesis := mineBlock(t, e, payer.PublicKey(), nil, 1, testTarget)
	if err := e.AddBlock(genesis); err != nil {
		t.Fatalf("AddBlock genesis: %v", err)
	}
	out := e.UTXOsFor(payer.PublicKey())[0].Output
	return e, payer, out
}

func spendFrom(t *testing.T, payer *crypto.PrivateKey, prevOut tx.TransactionOutput, value uint64, payee []byte) tx.Transaction {
	t.Helper()
	prevHash := prevOut.Hash()
	spend := tx.Transaction{
		Inputs:  []tx.TransactionInput{{PrevTXOHash: prevHash}},
		Outputs: []tx.TransactionOutput{tx.NewTransactionOutput(value, payee)},
	}
	if err := spend.Sign(payer, []types.Hash{prevHash}); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return spend
}

func TestAddToMempool_Admits(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()
	tx1 := spendFrom(t, payer, out, out.Value-1000, payee.PublicKey())

	if err := e.AddToMempool(tx1); err != nil {
		t.Fatalf("AddToMempool: %v", err)
	}
	entry := e.utxos[out.Hash()]
	if !entry.Marked {
		t.Error("referenced utxo should be marked after admission")
	}
	if len(e.MempoolTransactions(10)) != 1 {
		t.Error("expected 1 mempool transaction")
	}
}

func TestAddToMempool_RejectsCoinbase(t *testing.T) {
	e := New()
	coinbase := tx.Transaction{Outputs: []tx.TransactionOutput{tx.NewTransactionOutput(1, []byte{0x01})}}
	if err := e.AddToMempool(coinbase); err == nil {
		t.Error("expected error admitting a coinbase transaction")
	}
}

func TestAddToMempool_RejectsUnknownUTXO(t *testing.T) {
	e := New()
	payer, _ := crypto.GenerateKey()
	fake := tx.NewTransactionOutput(100, payer.PublicKey())
	spend := spendFrom(t, payer, fake, 50, payer.PublicKey())
	if err := e.AddToMempool(spend); err == nil {
		t.Error("expected error for unknown utxo")
	}
}

func TestAddToMempool_ReplacementByDominance(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()

	low := spendFrom(t, payer, out, out.Value-500, payee.PublicKey())  // fee 500
	high := spendFrom(t, payer, out, out.Value-5000, payee.PublicKey()) // fee 5000

	if err := e.AddToMempool(low); err != nil {
		t.Fatalf("AddToMempool low: %v", err)
	}
	if err := e.AddToMempool(high); err != nil {
		t.Fatalf("AddToMempool high (should replace low): %v", err)
	}

	txs := e.MempoolTransactions(10)
	if len(txs) != 1 || txs[0].Hash() != high.Hash() {
		t.Errorf("expected only the higher-fee transaction to remain, got %d entries", len(txs))
	}
}

func TestAddToMempool_RejectsLowerFeeReplacement(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()

	high := spendFrom(t, payer, out, out.Value-5000, payee.PublicKey())
	low := spendFrom(t, payer, out, out.Value-500, payee.PublicKey())

	if err := e.AddToMempool(high); err != nil {
		t.Fatalf("AddToMempool high: %v", err)
	}
	if err := e.AddToMempool(low); err == nil {
		t.Error("expected lower-fee replacement to be rejected")
	}
	txs := e.MempoolTransactions(10)
	if len(txs) != 1 || txs[0].Hash() != high.Hash() {
		t.Error("original higher-fee transaction should remain after rejected replacement")
	}
}

func TestMempool_SortedDescendingByFee(t *testing.T) {
	e := New()
	payer, _ := crypto.GenerateKey()
	payee, _ := crypto.GenerateKey()

	genesis := mineBlock(t, e, payer.PublicKey(), nil, 1, testTarget)
	if err := e.AddBlock(genesis); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	funding := e.UTXOsFor(payer.PublicKey())[0].Output

	// split funding into two outputs via a confirmed block, to get two
	// independent utxos to build differently-feed mempool entries from.
	split := tx.Transaction{
		Inputs: []tx.TransactionInput{{PrevTXOHash: funding.Hash()}},
		Outputs: []tx.TransactionOutput{
			tx.NewTransactionOutput(funding.Value/2-100, payer.PublicKey()),
			tx.NewTransactionOutput(funding.Value/2-100, payer.PublicKey()),
		},
	}
	if err := split.Sign(payer, []types.Hash{funding.Hash()}); err != nil {
		t.Fatalf("Sign split: %v", err)
	}
	b2 := mineBlock(t, e, payer.PublicKey(), []tx.Transaction{split}, 2, testTarget)
	if err := e.AddBlock(b2); err != nil {
		t.Fatalf("AddBlock b2: %v", err)
	}

	utxos := e.UTXOsFor(payer.PublicKey())
	var splitOuts []tx.TransactionOutput
	for _, u := range utxos {
		if u.Output.Value == funding.Value/2-100 {
			splitOuts = append(splitOuts, u.Output)
		}
	}
	if len(splitOuts) != 2 {
		t.Fatalf("expected 2 split outputs, got %d", len(splitOuts))
	}

	lowFee := spendFrom(t, payer, splitOuts[0], splitOuts[0].Value-100, payee.PublicKey())
	highFee := spendFrom(t, payer, splitOuts[1], splitOuts[1].Value-9000, payee.PublicKey())

	if err := e.AddToMempool(lowFee); err != nil {
		t.Fatalf("AddToMempool lowFee: %v", err)
	}
	if err := e.AddToMempool(highFee); err != nil {
		t.Fatalf("AddToMempool highFee: %v", err)
	}

	txs := e.MempoolTransactions(10)
	if len(txs) != 2 {
		t.Fatalf("expected 2 mempool txs, got %d", len(txs))
	}
	if txs[0].Hash() != highFee.Hash() {
		t.Error("higher fee transaction should sort first")
	}
}

func TestCleanupMempool_EvictsOldEntries(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()
	spend := spendFrom(t, payer, out, out.Value-1000, payee.PublicKey())

	base := time.Unix(1_000_000, 0)
	e.now = func() time.Time { return base }
	if err := e.AddToMempool(spend); err != nil {
		t.Fatalf("AddToMempool: %v", err)
	}

	e.now = func() time.Time { return base.Add((MaxMempoolTransactionAge + 1) * time.Second) }
	evicted := e.CleanupMempool()
	if evicted != 1 {
		t.Errorf("CleanupMempool evicted = %d, want 1", evicted)
	}
	if len(e.MempoolTransactions(10)) != 0 {
		t.Error("expected empty mempool after cleanup")
	}
	entry := e.utxos[out.Hash()]
	if entry.Marked {
		t.Error("utxo should be unmarked after its mempool entry is evicted")
	}
}

func TestCleanupMempool_KeepsFreshEntries(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()
	spend := spendFrom(t, payer, out, out.Value-1000, payee.PublicKey())

	base := time.Unix(1_000_000, 0)
	e.now = func() time.Time { return base }
	if err := e.AddToMempool(spend); err != nil {
		t.Fatalf("AddToMempool: %v", err)
	}

	e.now = func() time.Time { return base.Add(10 * time.Second) }
	if evicted := e.CleanupMempool(); evicted != 0 {
		t.Errorf("CleanupMempool evicted = %d, want 0", evicted)
	}
}

func TestRebuildUTXOs_ReappliesMempoolMarks(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()
	spend := spendFrom(t, payer, out, out.Value-1000, payee.PublicKey())
	if err := e.AddToMempool(spend); err != nil {
		t.Fatalf("AddToMempool: %v", err)
	}

	e.RebuildUTXOs()

	entry := e.utxos[out.Hash()]
	if !entry.Marked {
		t.Error("rebuild should reapply mempool marks")
	}
}

func TestCalculateMinerFees(t *testing.T) {
	e, payer, out := setupFundedEngine(t)
	payee, _ := crypto.GenerateKey()
	spend := spendFrom(t, payer, out, out.Value-1234, payee.PublicKey())

	fees, err := e.CalculateMinerFees([]tx.Transaction{spend})
	if err != nil {
		t.Fatalf("CalculateMinerFees: %v", err)
	}
	if fees != 1234 {
		t.Errorf("fees = %d, want 1234", fees)
	}
}

func TestCalculateMinerFees_UnknownInput(t *testing.T) {
	e := New()
	payer, _ := crypto.GenerateKey()
	fake := tx.NewTransactionOutput(100, payer.PublicKey())
	spend := spendFrom(t, payer, fake, 50, payer.PublicKey())
	if _, err := e.CalculateMinerFees([]tx.Transaction{spend}); err == nil {
		t.Error("expected error for unknown input")
	}
}
