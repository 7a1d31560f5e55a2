package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/coinletchain/coinlet/internal/codec"
)

// MaxMessageSize bounds the length prefix so a malformed or hostile
// peer can't make a read allocate unbounded memory.
const MaxMessageSize = 32 * 1024 * 1024

// WriteMessage encodes msg and writes it to w as an 8-byte
// big-endian length prefix followed by the canonical CBOR payload.
func WriteMessage(w io.Writer, msg Message) error {
	encoded, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wire: encode message: %w", err)
	}
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(encoded)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message from r and decodes it.
func ReadMessage(r io.Reader) (Message, error) {
	var lenPrefix [8]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, fmt.Errorf("wire: read length prefix: %w", err)
	}
	size := binary.BigEndian.Uint64(lenPrefix[:])
	if size > MaxMessageSize {
		return Message{}, fmt.Errorf("wire: message size %d exceeds limit %d", size, MaxMessageSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, fmt.Errorf("wire: read payload: %w", err)
	}
	var msg Message
	if err := codec.Unmarshal(buf, &msg); err != nil {
		return Message{}, fmt.Errorf("wire: decode message: %w", err)
	}
	return msg, nil
}
