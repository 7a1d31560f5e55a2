package node

import (
	"net"
	"time"

	"github.com/coinletchain/coinlet/internal/engine"
	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/wire"
	"github.com/coinletchain/coinlet/pkg/block"
	"github.com/coinletchain/coinlet/pkg/tx"
)

// handleConnection runs the per-connection dispatch loop: read one
// frame, dispatch by type, repeat. It returns (closing conn) on an
// unreadable frame or an unexpected client-only message.
func (n *Node) handleConnection(conn net.Conn, addr string) {
	defer conn.Close()
	p := newPeer(addr, conn)

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			log.Node.Debug().Str("peer", addr).Err(err).Msg("connection closed")
			return
		}
		if !n.dispatch(p, msg) {
			return
		}
	}
}

// dispatch handles a single inbound message per §4.3's contract
// table. It returns false when the connection should be closed.
func (n *Node) dispatch(p *peer, msg wire.Message) bool {
	switch msg.Type {
	case wire.MessageAskDifference:
		return n.handleAskDifference(p, msg)
	case wire.MessageFetchBlock:
		return n.handleFetchBlock(p, msg)
	case wire.MessageFetchUTXOs:
		return n.handleFetchUTXOs(p, msg)
	case wire.MessageFetchTemplate:
		return n.handleFetchTemplate(p, msg)
	case wire.MessageValidateTemplate:
		return n.handleValidateTemplate(p, msg)
	case wire.MessageSubmitTemplate:
		return n.handleSubmitTemplate(p, msg)
	case wire.MessageNewBlock:
		return n.handleNewBlock(p, msg)
	case wire.MessageSubmitTransaction, wire.MessageNewTransaction:
		return n.handleIncomingTransaction(p, msg)
	case wire.MessageDiscoverNodes:
		return n.handleDiscoverNodes(p, msg)
	default:
		// UTXOs, Template, Difference, TemplateValidity, NodeList are
		// client-only replies; a node never expects to receive them.
		log.Node.Warn().Str("peer", p.addr).Str("type", msg.Type.String()).Msg("unexpected client-only message")
		return false
	}
}

func (n *Node) handleAskDifference(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeAskDifference(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode AskDifference")
		return false
	}
	diff := int32(n.engine.Height()) - int32(payload.LocalHeight)
	reply, err := wire.NewDifference(diff)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode Difference")
		return false
	}
	return n.reply(p, reply)
}

func (n *Node) handleFetchBlock(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeFetchBlock(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode FetchBlock")
		return false
	}
	b, ok := n.engine.Block(int(payload.Height))
	if !ok {
		return false
	}
	reply, err := wire.NewNewBlock(b)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode NewBlock")
		return false
	}
	return n.reply(p, reply)
}

func (n *Node) handleFetchUTXOs(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeFetchUTXOs(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode FetchUTXOs")
		return false
	}
	entries := n.engine.UTXOsFor(payload.PublicKey)
	wireEntries := make([]wire.UTXOEntry, len(entries))
	for i, e := range entries {
		wireEntries[i] = wire.UTXOEntry{Output: e.Output, Marked: e.Marked}
	}
	reply, err := wire.NewUTXOs(wireEntries)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode UTXOs")
		return false
	}
	return n.reply(p, reply)
}

// handleFetchTemplate assembles a candidate block per §4.3: up to
// BlockTransactionCap highest-fee mempool transactions, a coinbase
// paying block reward + fees, header chained off the current tip at
// the current target.
func (n *Node) handleFetchTemplate(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeFetchTemplate(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode FetchTemplate")
		return false
	}

	picked := n.engine.MempoolTransactions(engine.BlockTransactionCap)
	fees, err := n.engine.CalculateMinerFees(picked)
	if err != nil {
		log.Node.Warn().Err(err).Msg("calculate miner fees")
		return false
	}

	coinbase := tx.NewTransactionOutput(n.engine.BlockReward()+fees, payload.PublicKey)
	all := append([]tx.Transaction{{Outputs: []tx.TransactionOutput{coinbase}}}, picked...)

	h := block.Header{
		Timestamp:     uint64(time.Now().Unix()),
		PrevBlockHash: n.engine.TipHash(),
		Nonce:         0,
		MerkleRoot:    block.MerkleRoot(all),
		Target:        n.engine.Target(),
	}
	reply, err := wire.NewTemplate(block.NewBlock(h, all))
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode Template")
		return false
	}
	return n.reply(p, reply)
}

func (n *Node) handleValidateTemplate(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeValidateTemplate(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode ValidateTemplate")
		return false
	}
	valid := payload.Block.Header.PrevBlockHash == n.engine.TipHash()
	reply, err := wire.NewTemplateValidity(valid)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode TemplateValidity")
		return false
	}
	return n.reply(p, reply)
}

func (n *Node) handleSubmitTemplate(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeSubmitTemplate(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode SubmitTemplate")
		return false
	}
	if err := n.engine.AddBlock(payload.Block); err != nil {
		log.Node.Warn().Err(err).Msg("submitted template rejected")
		return false
	}
	n.engine.RebuildUTXOs()
	n.broadcastNewBlock(payload.Block, "")
	return true
}

// handleNewBlock attempts to add a gossiped block but never forwards
// it further, to prevent broadcast storms.
func (n *Node) handleNewBlock(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeNewBlock(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode NewBlock")
		return false
	}
	if err := n.engine.AddBlock(payload.Block); err != nil {
		log.Node.Info().Err(err).Msg("gossiped block rejected")
	}
	return true
}

func (n *Node) handleIncomingTransaction(p *peer, msg wire.Message) bool {
	var t tx.Transaction
	if msg.Type == wire.MessageSubmitTransaction {
		payload, err := wire.DecodeSubmitTransaction(msg)
		if err != nil {
			log.Node.Warn().Err(err).Msg("decode SubmitTransaction")
			return false
		}
		t = payload.Transaction
	} else {
		payload, err := wire.DecodeNewTransaction(msg)
		if err != nil {
			log.Node.Warn().Err(err).Msg("decode NewTransaction")
			return false
		}
		t = payload.Transaction
	}

	if err := n.engine.AddToMempool(t); err != nil {
		log.Mempool.Info().Err(err).Msg("transaction rejected")
		return false
	}
	n.broadcastNewTransaction(t, p.addr)
	return true
}

// handleDiscoverNodes opens a reverse connection to the dialer,
// registers it, and replies with the current peer set.
func (n *Node) handleDiscoverNodes(p *peer, msg wire.Message) bool {
	payload, err := wire.DecodeDiscoverNodes(msg)
	if err != nil {
		log.Node.Warn().Err(err).Msg("decode DiscoverNodes")
		return false
	}

	back, err := dialPeer(payload.DialerAddr)
	if err != nil {
		log.Node.Warn().Err(err).Str("dialer", payload.DialerAddr).Msg("reverse connect failed")
	} else {
		n.peers.add(back)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleConnection(back.conn, back.addr)
		}()
	}

	reply, err := wire.NewNodeList(n.peers.addresses())
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode NodeList")
		return false
	}
	return n.reply(p, reply)
}

// reply writes msg back on p's connection (not through the registry,
// since p may be an as-yet-unregistered inbound connection).
func (n *Node) reply(p *peer, msg wire.Message) bool {
	if err := p.send(msg); err != nil {
		log.Node.Debug().Str("peer", p.addr).Err(err).Msg("reply failed")
		return false
	}
	return true
}

// broadcastNewBlock fans NewBlock out to every known peer, skipping
// skipAddr (the peer that submitted it), logging and continuing past
// any per-peer send failure.
func (n *Node) broadcastNewBlock(b block.Block, skipAddr string) {
	msg, err := wire.NewNewBlock(b)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode NewBlock for broadcast")
		return
	}
	for _, pr := range n.peers.all() {
		if pr.addr == skipAddr {
			continue
		}
		if err := pr.send(msg); err != nil {
			log.Node.Warn().Str("peer", pr.addr).Err(err).Msg("broadcast NewBlock failed")
		}
	}
}

func (n *Node) broadcastNewTransaction(t tx.Transaction, skipAddr string) {
	msg, err := wire.NewNewTransaction(t)
	if err != nil {
		log.Node.Warn().Err(err).Msg("encode NewTransaction for broadcast")
		return
	}
	for _, pr := range n.peers.all() {
		if pr.addr == skipAddr {
			continue
		}
		if err := pr.send(msg); err != nil {
			log.Node.Warn().Str("peer", pr.addr).Err(err).Msg("broadcast NewTransaction failed")
		}
	}
}
