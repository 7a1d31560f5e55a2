package node

import (
	"fmt"
	"os"

	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/wire"
)

// bootstrap implements §4.3 step 1-2: load a snapshot if one exists,
// otherwise download the longest chain known to the configured
// bootstrap peers, otherwise run empty as a seed node.
func (n *Node) bootstrap() error {
	if n.cfg.SnapshotFile != "" {
		if data, err := os.ReadFile(n.cfg.SnapshotFile); err == nil {
			if err := n.engine.LoadSnapshot(data); err != nil {
				return fmt.Errorf("load snapshot %s: %w", n.cfg.SnapshotFile, err)
			}
			log.Node.Info().Str("file", n.cfg.SnapshotFile).Int("height", n.engine.Height()).Msg("loaded snapshot")
			return nil
		}
	}

	if len(n.cfg.BootstrapPeers) == 0 {
		log.Node.Info().Msg("no snapshot and no bootstrap peers, running as seed node")
		return nil
	}
	return n.downloadLongestChain()
}

// downloadLongestChain asks every bootstrap peer for its height
// difference, picks the peer with the greatest positive lead, and
// replays its chain block by block.
func (n *Node) downloadLongestChain() error {
	best, bestDiff := n.findLongestChainPeer()
	if best == nil {
		log.Node.Info().Msg("no bootstrap peer reachable, running as seed node")
		return nil
	}
	defer best.close()

	log.Node.Info().Str("peer", best.addr).Int32("lead", bestDiff).Msg("downloading chain")
	for h := uint64(0); h < uint64(bestDiff); h++ {
		reply, err := best.request(must(wire.NewFetchBlock(h)))
		if err != nil {
			return fmt.Errorf("fetch block %d: %w", h, err)
		}
		payload, err := wire.DecodeNewBlock(reply)
		if err != nil {
			return fmt.Errorf("decode block %d: %w", h, err)
		}
		if err := n.engine.AddBlock(payload.Block); err != nil {
			return fmt.Errorf("add downloaded block %d: %w", h, err)
		}
	}
	n.engine.RebuildUTXOs()
	n.engine.TryAdjustTarget()
	return nil
}

// findLongestChainPeer sends AskDifference(0) to every bootstrap peer
// and returns the one reporting the highest positive lead.
func (n *Node) findLongestChainPeer() (*peer, int32) {
	var best *peer
	var bestDiff int32
	for _, addr := range n.cfg.BootstrapPeers {
		p, err := dialPeer(addr)
		if err != nil {
			log.Node.Warn().Str("peer", addr).Err(err).Msg("bootstrap dial failed")
			continue
		}
		reply, err := p.request(must(wire.NewAskDifference(0)))
		if err != nil {
			log.Node.Warn().Str("peer", addr).Err(err).Msg("AskDifference failed")
			p.close()
			continue
		}
		diffPayload, err := wire.DecodeDifference(reply)
		if err != nil {
			log.Node.Warn().Str("peer", addr).Err(err).Msg("decode Difference failed")
			p.close()
			continue
		}
		if diffPayload.Difference > bestDiff {
			if best != nil {
				best.close()
			}
			best = p
			bestDiff = diffPayload.Difference
		} else {
			p.close()
		}
	}
	return best, bestDiff
}

// discoverPeers implements §4.3 step 4: tell every bootstrap peer
// this node's address, and connect onward to whatever peer set it
// reports back.
func (n *Node) discoverPeers() {
	for _, addr := range n.cfg.BootstrapPeers {
		n.discoverFrom(addr)
	}
}

func (n *Node) discoverFrom(addr string) {
	p, err := dialPeer(addr)
	if err != nil {
		log.Node.Warn().Str("peer", addr).Err(err).Msg("discover dial failed")
		return
	}
	reply, err := p.request(must(wire.NewDiscoverNodes(n.cfg.AdvertiseAddr, addr)))
	if err != nil {
		log.Node.Warn().Str("peer", addr).Err(err).Msg("DiscoverNodes failed")
		p.close()
		return
	}
	n.peers.add(p)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.handleConnection(p.conn, p.addr)
	}()

	list, err := wire.DecodeNodeList(reply)
	if err != nil {
		log.Node.Warn().Str("peer", addr).Err(err).Msg("decode NodeList failed")
		return
	}
	for _, discovered := range list.Addresses {
		if discovered == n.cfg.AdvertiseAddr {
			continue
		}
		if _, known := n.peers.get(discovered); known {
			continue
		}
		np, err := dialPeer(discovered)
		if err != nil {
			log.Node.Warn().Str("peer", discovered).Err(err).Msg("connect to discovered peer failed")
			continue
		}
		n.peers.add(np)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleConnection(np.conn, np.addr)
		}()
	}
}

// must panics on an encode error from a constant, well-formed
// message; wire encoding of these fixed shapes cannot fail in
// practice, so surfacing an error return at every call site here
// would only obscure the bootstrap control flow.
func must(msg wire.Message, err error) wire.Message {
	if err != nil {
		panic(err)
	}
	return msg
}
