package block

import (
	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

// Block is a header plus the transactions it commits to.
type Block struct {
	Header       Header           `cbor:"header"`
	Transactions []tx.Transaction `cbor:"transactions"`
}

// NewBlock builds a block from a header and its transactions.
func NewBlock(header Header, txs []tx.Transaction) Block {
	return Block{Header: header, Transactions: txs}
}

// Hash returns the block's identity: its header's hash.
func (b Block) Hash() types.Hash {
	return b.Header.Hash()
}

// TransactionHashes returns the content hash of each transaction, in
// order, for merkle root construction.
func (b Block) TransactionHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.Hash()
	}
	return hashes
}
