package wire

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/coinletchain/coinlet/pkg/block"
	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

func sampleTx() tx.Transaction {
	return tx.Transaction{Outputs: []tx.TransactionOutput{tx.NewTransactionOutput(50, []byte{0xAB, 0xCD})}}
}

func sampleBlock() block.Block {
	txs := []tx.Transaction{sampleTx()}
	h := block.Header{Timestamp: 1, MerkleRoot: block.MerkleRoot(txs), Target: new(big.Int).Set(types.MinTarget)}
	return block.NewBlock(h, txs)
}

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return got
}

func TestFetchUTXOs_RoundTrip(t *testing.T) {
	msg, err := NewFetchUTXOs([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("NewFetchUTXOs: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeFetchUTXOs(got)
	if err != nil {
		t.Fatalf("DecodeFetchUTXOs: %v", err)
	}
	if !bytes.Equal(p.PublicKey, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("PublicKey = %x, want 010203", p.PublicKey)
	}
}

func TestUTXOs_RoundTrip(t *testing.T) {
	out := tx.NewTransactionOutput(25, []byte{0x09})
	msg, err := NewUTXOs([]UTXOEntry{{Output: out, Marked: true}})
	if err != nil {
		t.Fatalf("NewUTXOs: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeUTXOs(got)
	if err != nil {
		t.Fatalf("DecodeUTXOs: %v", err)
	}
	if len(p.UTXOs) != 1 || p.UTXOs[0].Output.Value != 25 || !p.UTXOs[0].Marked {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestSubmitTransaction_RoundTrip(t *testing.T) {
	txn := sampleTx()
	msg, err := NewSubmitTransaction(txn)
	if err != nil {
		t.Fatalf("NewSubmitTransaction: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeSubmitTransaction(got)
	if err != nil {
		t.Fatalf("DecodeSubmitTransaction: %v", err)
	}
	if p.Transaction.Hash() != txn.Hash() {
		t.Error("decoded transaction hash mismatch")
	}
}

func TestNewBlock_RoundTrip(t *testing.T) {
	b := sampleBlock()
	msg, err := NewNewBlock(b)
	if err != nil {
		t.Fatalf("NewNewBlock: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeNewBlock(got)
	if err != nil {
		t.Fatalf("DecodeNewBlock: %v", err)
	}
	if p.Block.Hash() != b.Hash() {
		t.Error("decoded block hash mismatch")
	}
}

func TestSubmitTemplate_RoundTrip(t *testing.T) {
	b := sampleBlock()
	msg, err := NewSubmitTemplate(b, []byte{0x01})
	if err != nil {
		t.Fatalf("NewSubmitTemplate: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeSubmitTemplate(got)
	if err != nil {
		t.Fatalf("DecodeSubmitTemplate: %v", err)
	}
	if p.Block.Hash() != b.Hash() || !bytes.Equal(p.MinerPublicKey, []byte{0x01}) {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestDiscoverNodes_RoundTrip(t *testing.T) {
	msg, err := NewDiscoverNodes("10.0.0.1:9000", "10.0.0.2:9000")
	if err != nil {
		t.Fatalf("NewDiscoverNodes: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeDiscoverNodes(got)
	if err != nil {
		t.Fatalf("DecodeDiscoverNodes: %v", err)
	}
	if p.DialerAddr != "10.0.0.1:9000" || p.DialedAddr != "10.0.0.2:9000" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestNodeList_RoundTrip(t *testing.T) {
	msg, err := NewNodeList([]string{"a:1", "b:2"})
	if err != nil {
		t.Fatalf("NewNodeList: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeNodeList(got)
	if err != nil {
		t.Fatalf("DecodeNodeList: %v", err)
	}
	if len(p.Addresses) != 2 || p.Addresses[0] != "a:1" || p.Addresses[1] != "b:2" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestAskDifference_Difference_RoundTrip(t *testing.T) {
	msg, err := NewAskDifference(42)
	if err != nil {
		t.Fatalf("NewAskDifference: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeAskDifference(got)
	if err != nil {
		t.Fatalf("DecodeAskDifference: %v", err)
	}
	if p.LocalHeight != 42 {
		t.Errorf("LocalHeight = %d, want 42", p.LocalHeight)
	}

	diffMsg, err := NewDifference(-3)
	if err != nil {
		t.Fatalf("NewDifference: %v", err)
	}
	gotDiff := roundTrip(t, diffMsg)
	dp, err := DecodeDifference(gotDiff)
	if err != nil {
		t.Fatalf("DecodeDifference: %v", err)
	}
	if dp.Difference != -3 {
		t.Errorf("Difference = %d, want -3", dp.Difference)
	}
}

func TestFetchBlock_RoundTrip(t *testing.T) {
	msg, err := NewFetchBlock(7)
	if err != nil {
		t.Fatalf("NewFetchBlock: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeFetchBlock(got)
	if err != nil {
		t.Fatalf("DecodeFetchBlock: %v", err)
	}
	if p.Height != 7 {
		t.Errorf("Height = %d, want 7", p.Height)
	}
}

func TestTemplateValidity_RoundTrip(t *testing.T) {
	msg, err := NewTemplateValidity(true)
	if err != nil {
		t.Fatalf("NewTemplateValidity: %v", err)
	}
	got := roundTrip(t, msg)
	p, err := DecodeTemplateValidity(got)
	if err != nil {
		t.Fatalf("DecodeTemplateValidity: %v", err)
	}
	if !p.Valid {
		t.Error("Valid = false, want true")
	}
}

func TestDecode_WrongType(t *testing.T) {
	msg, err := NewFetchBlock(1)
	if err != nil {
		t.Fatalf("NewFetchBlock: %v", err)
	}
	if _, err := DecodeFetchUTXOs(msg); err == nil {
		t.Error("expected ErrWrongType, got nil")
	} else if _, ok := err.(*ErrWrongType); !ok {
		t.Errorf("expected *ErrWrongType, got %T: %v", err, err)
	}
}

func TestMessageType_String(t *testing.T) {
	if MessageFetchUTXOs.String() != "FetchUTXOs" {
		t.Errorf("String() = %q, want FetchUTXOs", MessageFetchUTXOs.String())
	}
	if MessageType(99).String() == "" {
		t.Error("unknown type should still stringify to something non-empty")
	}
}
