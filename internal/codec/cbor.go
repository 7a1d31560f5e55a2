// Package codec provides the canonical CBOR encoding shared by the
// content-hash and wire-protocol layers, so two nodes serializing the
// same value always produce the same bytes.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is deterministic: map keys sorted, shortest-form integers,
// no indefinite-length items. Every hash and every wire frame in this
// module goes through it.
var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build canonical encode mode: %v", err))
	}
	return mode
}()

// Marshal encodes v using the canonical CBOR encoding.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR-encoded data into v.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
