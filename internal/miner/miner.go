// Package miner implements the standalone mining client: it connects
// to a single node over the wire protocol, fetches a block template,
// searches for a satisfying nonce on a dedicated worker goroutine, and
// submits solved blocks back.
package miner

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coinletchain/coinlet/internal/log"
	"github.com/coinletchain/coinlet/internal/wire"
	"github.com/coinletchain/coinlet/pkg/block"
)

const (
	templateTickInterval = 5 * time.Second
	noncesPerAttempt     = 2_000_000
)

// Miner holds the single connection to a node and the template state
// shared between the controller and the mining worker.
type Miner struct {
	publicKey []byte
	conn      net.Conn
	sendMu    sync.Mutex // guards request/response pairs on conn

	templateMu sync.Mutex
	template   *block.Block

	mining atomic.Bool

	solved chan block.Block
}

// New dials addr and returns a Miner ready for Run.
func New(addr string, publicKey []byte) (*Miner, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("miner: dial %s: %w", addr, err)
	}
	return &Miner{
		publicKey: publicKey,
		conn:      conn,
		solved:    make(chan block.Block, 1),
	}, nil
}

// request writes msg and reads the reply, holding the connection's
// send lock across the pair per §5's request/response atomicity rule.
func (m *Miner) request(msg wire.Message) (wire.Message, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	if err := wire.WriteMessage(m.conn, msg); err != nil {
		return wire.Message{}, err
	}
	return wire.ReadMessage(m.conn)
}

// send writes msg without waiting for a reply, for the fire-and-forget
// SubmitTemplate call (the node never replies to it directly).
func (m *Miner) send(msg wire.Message) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	return wire.WriteMessage(m.conn, msg)
}

// Run starts the mining worker and the 5s controller loop, blocking
// until ctx is cancelled or a fatal protocol error occurs.
func (m *Miner) Run(ctx context.Context) error {
	defer m.conn.Close()

	// Deferred calls run last-in first-out: cancelWorker runs before
	// wg.Wait, so an error return stops the worker before waiting on it.
	var wg sync.WaitGroup
	defer wg.Wait()
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.runWorker(workerCtx)
	}()

	ticker := time.NewTicker(templateTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.onTick(); err != nil {
				return err
			}
		case solved := <-m.solved:
			if err := m.submitBlock(solved); err != nil {
				return err
			}
		}
	}
}

// onTick implements the controller's 5s decision per §4.4: fetch a
// template if idle, otherwise revalidate the one in hand.
func (m *Miner) onTick() error {
	if !m.mining.Load() {
		return m.fetchTemplate()
	}
	return m.validateTemplate()
}

func (m *Miner) fetchTemplate() error {
	reply, err := m.request(must(wire.NewFetchTemplate(m.publicKey)))
	if err != nil {
		return fmt.Errorf("miner: fetch template: %w", err)
	}
	tmpl, err := wire.DecodeTemplate(reply)
	if err != nil {
		return fmt.Errorf("miner: unexpected reply fetching template: %w", err)
	}
	log.Miner.Info().Str("target", tmpl.Block.Header.Target.String()).Msg("received new template")
	m.setTemplate(&tmpl.Block)
	m.mining.Store(true)
	return nil
}

func (m *Miner) validateTemplate() error {
	current := m.getTemplate()
	if current == nil {
		return nil
	}
	reply, err := m.request(must(wire.NewValidateTemplate(*current)))
	if err != nil {
		return fmt.Errorf("miner: validate template: %w", err)
	}
	validity, err := wire.DecodeTemplateValidity(reply)
	if err != nil {
		return fmt.Errorf("miner: unexpected reply validating template: %w", err)
	}
	if !validity.Valid {
		log.Miner.Info().Msg("template is stale, will refetch")
		m.mining.Store(false)
	}
	return nil
}

func (m *Miner) submitBlock(b block.Block) error {
	log.Miner.Info().Str("hash", b.Hash().String()).Msg("submitting mined block")
	if err := m.send(must(wire.NewSubmitTemplate(b, m.publicKey))); err != nil {
		return fmt.Errorf("miner: submit template: %w", err)
	}
	m.mining.Store(false)
	return nil
}

func (m *Miner) setTemplate(b *block.Block) {
	m.templateMu.Lock()
	defer m.templateMu.Unlock()
	m.template = b
}

func (m *Miner) getTemplate() *block.Block {
	m.templateMu.Lock()
	defer m.templateMu.Unlock()
	if m.template == nil {
		return nil
	}
	clone := *m.template
	return &clone
}

func must(msg wire.Message, err error) wire.Message {
	if err != nil {
		panic(err)
	}
	return msg
}
