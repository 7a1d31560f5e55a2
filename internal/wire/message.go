// Package wire defines the node protocol's tagged message union and
// its length-prefixed framing over a reliable byte stream.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/pkg/block"
	"github.com/coinletchain/coinlet/pkg/tx"
)

// MessageType tags which payload a Message carries.
type MessageType uint8

// The closed set of message variants making up the node protocol.
const (
	MessageFetchUTXOs MessageType = iota
	MessageUTXOs
	MessageSubmitTransaction
	MessageNewTransaction
	MessageFetchTemplate
	MessageTemplate
	MessageValidateTemplate
	MessageTemplateValidity
	MessageSubmitTemplate
	MessageDiscoverNodes
	MessageNodeList
	MessageAskDifference
	MessageDifference
	MessageFetchBlock
	MessageNewBlock
)

func (t MessageType) String() string {
	switch t {
	case MessageFetchUTXOs:
		return "FetchUTXOs"
	case MessageUTXOs:
		return "UTXOs"
	case MessageSubmitTransaction:
		return "SubmitTransaction"
	case MessageNewTransaction:
		return "NewTransaction"
	case MessageFetchTemplate:
		return "FetchTemplate"
	case MessageTemplate:
		return "Template"
	case MessageValidateTemplate:
		return "ValidateTemplate"
	case MessageTemplateValidity:
		return "TemplateValidity"
	case MessageSubmitTemplate:
		return "SubmitTemplate"
	case MessageDiscoverNodes:
		return "DiscoverNodes"
	case MessageNodeList:
		return "NodeList"
	case MessageAskDifference:
		return "AskDifference"
	case MessageDifference:
		return "Difference"
	case MessageFetchBlock:
		return "FetchBlock"
	case MessageNewBlock:
		return "NewBlock"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message is the wire envelope: a type tag plus its CBOR-encoded
// payload. The payload shape is determined entirely by Type.
type Message struct {
	Type    MessageType     `cbor:"type"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// ErrWrongType is returned by a Decode* helper when the message's Type
// doesn't match the payload it was asked to decode.
type ErrWrongType struct {
	Want, Got MessageType
}

func (e *ErrWrongType) Error() string {
	return fmt.Sprintf("wire: expected %s message, got %s", e.Want, e.Got)
}

func newMessage(t MessageType, payload interface{}) (Message, error) {
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("wire: encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: encoded}, nil
}

func decodePayload(msg Message, want MessageType, out interface{}) error {
	if msg.Type != want {
		return &ErrWrongType{Want: want, Got: msg.Type}
	}
	if err := codec.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("wire: decode %s payload: %w", want, err)
	}
	return nil
}

// --- FetchUTXOs ---

type FetchUTXOsPayload struct {
	PublicKey []byte `cbor:"public_key"`
}

func NewFetchUTXOs(publicKey []byte) (Message, error) {
	return newMessage(MessageFetchUTXOs, FetchUTXOsPayload{PublicKey: publicKey})
}

func DecodeFetchUTXOs(msg Message) (FetchUTXOsPayload, error) {
	var p FetchUTXOsPayload
	err := decodePayload(msg, MessageFetchUTXOs, &p)
	return p, err
}

// --- UTXOs ---

// UTXOEntry pairs a UTXO with whether it is reserved by a mempool
// transaction.
type UTXOEntry struct {
	Output tx.TransactionOutput `cbor:"output"`
	Marked bool                 `cbor:"marked"`
}

type UTXOsPayload struct {
	UTXOs []UTXOEntry `cbor:"utxos"`
}

func NewUTXOs(entries []UTXOEntry) (Message, error) {
	return newMessage(MessageUTXOs, UTXOsPayload{UTXOs: entries})
}

func DecodeUTXOs(msg Message) (UTXOsPayload, error) {
	var p UTXOsPayload
	err := decodePayload(msg, MessageUTXOs, &p)
	return p, err
}

// --- SubmitTransaction ---

type TransactionPayload struct {
	Transaction tx.Transaction `cbor:"transaction"`
}

func NewSubmitTransaction(transaction tx.Transaction) (Message, error) {
	return newMessage(MessageSubmitTransaction, TransactionPayload{Transaction: transaction})
}

func DecodeSubmitTransaction(msg Message) (TransactionPayload, error) {
	var p TransactionPayload
	err := decodePayload(msg, MessageSubmitTransaction, &p)
	return p, err
}

// --- NewTransaction ---

func NewNewTransaction(transaction tx.Transaction) (Message, error) {
	return newMessage(MessageNewTransaction, TransactionPayload{Transaction: transaction})
}

func DecodeNewTransaction(msg Message) (TransactionPayload, error) {
	var p TransactionPayload
	err := decodePayload(msg, MessageNewTransaction, &p)
	return p, err
}

// --- FetchTemplate ---

func NewFetchTemplate(publicKey []byte) (Message, error) {
	return newMessage(MessageFetchTemplate, FetchUTXOsPayload{PublicKey: publicKey})
}

func DecodeFetchTemplate(msg Message) (FetchUTXOsPayload, error) {
	var p FetchUTXOsPayload
	err := decodePayload(msg, MessageFetchTemplate, &p)
	return p, err
}

// --- Template / ValidateTemplate / NewBlock (all carry a Block) ---

type BlockPayload struct {
	Block block.Block `cbor:"block"`
}

func NewTemplate(b block.Block) (Message, error) {
	return newMessage(MessageTemplate, BlockPayload{Block: b})
}

func DecodeTemplate(msg Message) (BlockPayload, error) {
	var p BlockPayload
	err := decodePayload(msg, MessageTemplate, &p)
	return p, err
}

func NewValidateTemplate(b block.Block) (Message, error) {
	return newMessage(MessageValidateTemplate, BlockPayload{Block: b})
}

func DecodeValidateTemplate(msg Message) (BlockPayload, error) {
	var p BlockPayload
	err := decodePayload(msg, MessageValidateTemplate, &p)
	return p, err
}

func NewNewBlock(b block.Block) (Message, error) {
	return newMessage(MessageNewBlock, BlockPayload{Block: b})
}

func DecodeNewBlock(msg Message) (BlockPayload, error) {
	var p BlockPayload
	err := decodePayload(msg, MessageNewBlock, &p)
	return p, err
}

// --- TemplateValidity ---

type TemplateValidityPayload struct {
	Valid bool `cbor:"valid"`
}

func NewTemplateValidity(valid bool) (Message, error) {
	return newMessage(MessageTemplateValidity, TemplateValidityPayload{Valid: valid})
}

func DecodeTemplateValidity(msg Message) (TemplateValidityPayload, error) {
	var p TemplateValidityPayload
	err := decodePayload(msg, MessageTemplateValidity, &p)
	return p, err
}

// --- SubmitTemplate ---

type SubmitTemplatePayload struct {
	Block          block.Block `cbor:"block"`
	MinerPublicKey []byte      `cbor:"miner_public_key"`
}

func NewSubmitTemplate(b block.Block, minerPublicKey []byte) (Message, error) {
	return newMessage(MessageSubmitTemplate, SubmitTemplatePayload{Block: b, MinerPublicKey: minerPublicKey})
}

func DecodeSubmitTemplate(msg Message) (SubmitTemplatePayload, error) {
	var p SubmitTemplatePayload
	err := decodePayload(msg, MessageSubmitTemplate, &p)
	return p, err
}

// --- DiscoverNodes ---

type DiscoverNodesPayload struct {
	DialerAddr string `cbor:"dialer_addr"`
	DialedAddr string `cbor:"dialed_addr"`
}

func NewDiscoverNodes(dialerAddr, dialedAddr string) (Message, error) {
	return newMessage(MessageDiscoverNodes, DiscoverNodesPayload{DialerAddr: dialerAddr, DialedAddr: dialedAddr})
}

func DecodeDiscoverNodes(msg Message) (DiscoverNodesPayload, error) {
	var p DiscoverNodesPayload
	err := decodePayload(msg, MessageDiscoverNodes, &p)
	return p, err
}

// --- NodeList ---

type NodeListPayload struct {
	Addresses []string `cbor:"addresses"`
}

func NewNodeList(addresses []string) (Message, error) {
	return newMessage(MessageNodeList, NodeListPayload{Addresses: addresses})
}

func DecodeNodeList(msg Message) (NodeListPayload, error) {
	var p NodeListPayload
	err := decodePayload(msg, MessageNodeList, &p)
	return p, err
}

// --- AskDifference ---

type AskDifferencePayload struct {
	LocalHeight uint32 `cbor:"local_height"`
}

func NewAskDifference(localHeight uint32) (Message, error) {
	return newMessage(MessageAskDifference, AskDifferencePayload{LocalHeight: localHeight})
}

func DecodeAskDifference(msg Message) (AskDifferencePayload, error) {
	var p AskDifferencePayload
	err := decodePayload(msg, MessageAskDifference, &p)
	return p, err
}

// --- Difference ---

type DifferencePayload struct {
	Difference int32 `cbor:"difference"`
}

func NewDifference(difference int32) (Message, error) {
	return newMessage(MessageDifference, DifferencePayload{Difference: difference})
}

func DecodeDifference(msg Message) (DifferencePayload, error) {
	var p DifferencePayload
	err := decodePayload(msg, MessageDifference, &p)
	return p, err
}

// --- FetchBlock ---

type FetchBlockPayload struct {
	Height uint64 `cbor:"height"`
}

func NewFetchBlock(height uint64) (Message, error) {
	return newMessage(MessageFetchBlock, FetchBlockPayload{Height: height})
}

func DecodeFetchBlock(msg Message) (FetchBlockPayload, error) {
	var p FetchBlockPayload
	err := decodePayload(msg, MessageFetchBlock, &p)
	return p, err
}
