package node

import (
	"fmt"
	"net"
	"sync"

	"github.com/coinletchain/coinlet/internal/wire"
)

// peer wraps a single outbound-or-inbound connection. sendMu is held
// across a full send (and, for request/response pairs, across the
// matching receive) so two goroutines never interleave writes on the
// same stream.
type peer struct {
	addr   string
	conn   net.Conn
	sendMu sync.Mutex
}

func newPeer(addr string, conn net.Conn) *peer {
	return &peer{addr: addr, conn: conn}
}

// send writes msg to the peer under its exclusive send lock.
func (p *peer) send(msg wire.Message) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return wire.WriteMessage(p.conn, msg)
}

// request writes msg and reads the next frame back, holding the send
// lock across both per §5's request/response atomicity rule.
func (p *peer) request(msg wire.Message) (wire.Message, error) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := wire.WriteMessage(p.conn, msg); err != nil {
		return wire.Message{}, err
	}
	return wire.ReadMessage(p.conn)
}

func (p *peer) close() error {
	return p.conn.Close()
}

// peerRegistry is the concurrent address -> peer map, guarded by a
// read-write mutex. Readers (the broadcast/snapshot paths) hold the
// shared lock only while copying the map out, and add/remove hold it
// exclusively, so readers and writers do wait for each other for that
// long.
type peerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{peers: make(map[string]*peer)}
}

// add registers a peer under addr, closing and replacing any existing
// connection for that address.
func (r *peerRegistry) add(p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.peers[p.addr]; ok {
		old.close()
	}
	r.peers[p.addr] = p
}

func (r *peerRegistry) remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, addr)
}

func (r *peerRegistry) get(addr string) (*peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[addr]
	return p, ok
}

// addresses returns a snapshot of every known peer address.
func (r *peerRegistry) addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for addr := range r.peers {
		out = append(out, addr)
	}
	return out
}

// all returns a snapshot of the registered peers themselves, safe to
// range over after the lock is released.
func (r *peerRegistry) all() []*peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

func dialPeer(addr string) (*peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newPeer(addr, conn), nil
}
