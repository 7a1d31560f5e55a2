// Package node implements the peer-to-peer server: a TCP listener
// dispatching framed wire messages against a shared blockchain
// engine, a peer registry for broadcast fan-out, and the periodic
// mempool-cleanup and snapshot-save tasks.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/coinletchain/coinlet/internal/engine"
	"github.com/coinletchain/coinlet/internal/log"
)

const (
	mempoolCleanupInterval = 30 * time.Second
	snapshotSaveInterval   = 15 * time.Second
)

// Config configures a Node at construction time.
type Config struct {
	// ListenAddr is the local bind address, e.g. "0.0.0.0:9000".
	ListenAddr string
	// AdvertiseAddr is this node's address as told to peers during
	// DiscoverNodes, typically "host:port" of ListenAddr.
	AdvertiseAddr string
	// SnapshotFile is where the chain is periodically persisted.
	// Empty disables both load-on-start and periodic save.
	SnapshotFile string
	// BootstrapPeers are asked for further peers on every start; when
	// no snapshot is loaded, the chain is also downloaded from them.
	BootstrapPeers []string
}

// Node owns the blockchain engine, the peer registry, and the
// listener, and runs the accept loop plus the periodic tasks.
type Node struct {
	cfg    Config
	engine *engine.Engine
	peers  *peerRegistry

	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Node around a fresh (empty) engine. Call Start to
// bootstrap, bind, and begin serving.
func New(cfg Config) *Node {
	return &Node{
		cfg:    cfg,
		engine: engine.New(),
		peers:  newPeerRegistry(),
	}
}

// Engine exposes the node's blockchain engine, e.g. for an
// in-process wallet or test harness sharing the same process.
func (n *Node) Engine() *engine.Engine {
	return n.engine
}

// Start bootstraps chain state (from snapshot or peer download),
// binds the listener, begins accepting connections, fans out
// DiscoverNodes to the configured bootstrap peers, and launches the
// periodic mempool-cleanup and snapshot-save tasks. It returns once
// the listener is bound; the accept loop and periodic tasks continue
// in the background until Stop is called.
func (n *Node) Start(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(ctx)

	if err := n.bootstrap(); err != nil {
		return fmt.Errorf("node: bootstrap: %w", err)
	}

	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("node: listen %s: %w", n.cfg.ListenAddr, err)
	}
	n.listener = ln
	log.Node.Info().Str("addr", n.cfg.ListenAddr).Msg("listening")

	n.wg.Add(1)
	go n.acceptLoop()

	n.discoverPeers()

	if n.cfg.SnapshotFile != "" {
		n.wg.Add(1)
		go n.periodicSave()
	}
	n.wg.Add(1)
	go n.periodicMempoolCleanup()

	return nil
}

// Stop cancels the background goroutines, closes the listener and
// every peer connection, and waits for the accept loop and periodic
// tasks to exit.
func (n *Node) Stop() error {
	n.cancel()
	if n.listener != nil {
		n.listener.Close()
	}
	for _, p := range n.peers.all() {
		p.close()
	}
	n.wg.Wait()
	return nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.ctx.Done():
				return
			default:
				log.Node.Warn().Err(err).Msg("accept failed")
				return
			}
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleConnection(conn, conn.RemoteAddr().String())
		}()
	}
}

func (n *Node) periodicMempoolCleanup() {
	defer n.wg.Done()
	ticker := time.NewTicker(mempoolCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			evicted := n.engine.CleanupMempool()
			if evicted > 0 {
				log.Mempool.Info().Int("evicted", evicted).Msg("cleanup")
			}
		}
	}
}

func (n *Node) periodicSave() {
	defer n.wg.Done()
	ticker := time.NewTicker(snapshotSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if err := n.saveSnapshot(); err != nil {
				log.Storage.Warn().Err(err).Msg("snapshot save failed")
			}
		}
	}
}

func (n *Node) saveSnapshot() error {
	data, err := n.engine.Snapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(n.cfg.SnapshotFile, data, 0o644)
}
