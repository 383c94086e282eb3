// Package coordinator implements the mutex coordinator (C4): the state
// machine at the heart of this system. It runs Lamport's distributed
// mutual-exclusion algorithm over value-transfer requests, gated by the
// clock (C1), the request queue (C3), and appends to the ledger (C5)
// while holding the critical section.
//
// All state mutation happens on a single actor goroutine per
// Coordinator, consuming a channel of inbound events; this is the
// realization of §5's "single logical serial actor" — transport
// handlers never touch protocol state directly, they only enqueue
// events.
package coordinator

import (
	"context"
	"sync"

	"github.com/cloudflare/cfssl/log"
	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fastestssbc/chain"
	"github.com/fastestssbc/clock"
	"github.com/fastestssbc/meta"
	"github.com/fastestssbc/queue"
)

// State is the node's local mutual-exclusion state.
type State int

const (
	Idle State = iota
	Requesting
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Held:
		return "held"
	default:
		return "unknown"
	}
}

// Registry is the external account-balance collaborator (§6, north-bound).
type Registry interface {
	Debit(ctx context.Context, node meta.NodeId, amount uint64) error
	Credit(ctx context.Context, node meta.NodeId, amount uint64) error
	Balance(ctx context.Context, node meta.NodeId) (uint64, error)
}

// PeerDirectory is C2, narrowed to what the coordinator needs.
type PeerDirectory interface {
	Peers() []meta.NodeId
}

// Transport is the east-west collaborator (§6): it carries REQUEST,
// REPLY, and RELEASE. Implementations must not block the caller on
// network I/O (§5) — they should buffer and drain outbound sends
// outside the actor.
type Transport interface {
	BroadcastRequest(env meta.RequestEnvelope)
	SendReply(to meta.NodeId, env meta.ReplyEnvelope)
	BroadcastRelease(env meta.ReleaseEnvelope)
}

// TransferResult is delivered to the caller of Transfer once the
// request's critical section has run to completion (committed or
// aborted).
type TransferResult struct {
	Outcome meta.Outcome
	Block   meta.Block
	Err     error
}

// Snapshot is a point-in-time, non-blocking read of a node's state for
// the operator surface (§6).
type Snapshot struct {
	Self        meta.NodeId
	Clock       uint64
	State       State
	Peers       []meta.NodeId
	Queue       []queue.PendingRequest
	LedgerHead  meta.Block
	LedgerLen   int
	Unreachable map[meta.NodeId]meta.RequestKey
	Fatal       bool
}

// Coordinator is one node's mutex coordinator actor.
type Coordinator struct {
	self      meta.NodeId
	clock     *clock.Clock
	queue     *queue.Queue
	ledger    *chain.Ledger
	peers     PeerDirectory
	transport Transport
	registry  Registry

	events chan event

	mu          sync.Mutex
	state       State
	fatal       bool
	selfKey     *meta.RequestKey
	pending     map[meta.RequestKey]chan TransferResult
	unreachable map[meta.NodeId]meta.RequestKey
}

// New constructs a Coordinator and starts its actor goroutine.
func New(self meta.NodeId, clk *clock.Clock, q *queue.Queue, ledger *chain.Ledger, peers PeerDirectory, transport Transport, registry Registry) *Coordinator {
	c := &Coordinator{
		self:        self,
		clock:       clk,
		queue:       q,
		ledger:      ledger,
		peers:       peers,
		transport:   transport,
		registry:    registry,
		events:      make(chan event, 256),
		pending:     make(map[meta.RequestKey]chan TransferResult),
		unreachable: make(map[meta.NodeId]meta.RequestKey),
	}
	go c.run()
	return c
}

// --- events ---

type event interface{}

type transferEvent struct {
	dst    meta.NodeId
	amount uint64
	result chan TransferResult
}

type requestEvent struct{ env meta.RequestEnvelope }
type replyEvent struct{ env meta.ReplyEnvelope }
type releaseEvent struct{ env meta.ReleaseEnvelope }
type unreachableEvent struct {
	peer meta.NodeId
	key  meta.RequestKey
}

type barrierEvent struct{ done chan struct{} }

func (c *Coordinator) run() {
	for e := range c.events {
		switch ev := e.(type) {
		case transferEvent:
			c.handleTransfer(ev)
		case requestEvent:
			c.handleRequest(ev.env)
		case replyEvent:
			c.handleReply(ev.env)
		case releaseEvent:
			c.handleRelease(ev.env)
		case unreachableEvent:
			c.handleUnreachable(ev)
		case barrierEvent:
			close(ev.done)
		}
	}
}

// Flush blocks until every event enqueued before this call has been
// processed by the actor. Since the actor drains c.events strictly in
// order, enqueuing a barrier and waiting for it to be processed is
// sufficient — useful for tests and for an operator-triggered
// quiescence check.
func (c *Coordinator) Flush() {
	done := make(chan struct{})
	c.events <- barrierEvent{done: done}
	<-done
}

// Transfer initiates a self-originated value transfer. It blocks until
// the request's critical section has run (committed or aborted), or
// until ctx is done — cancellation only stops the caller from waiting;
// a broadcast REQUEST can never be withdrawn (§5).
func (c *Coordinator) Transfer(ctx context.Context, dst meta.NodeId, amount uint64) (TransferResult, error) {
	result := make(chan TransferResult, 1)
	select {
	case c.events <- transferEvent{dst: dst, amount: amount, result: result}:
	case <-ctx.Done():
		return TransferResult{}, ctx.Err()
	}

	select {
	case r := <-result:
		return r, r.Err
	case <-ctx.Done():
		return TransferResult{}, ctx.Err()
	}
}

// HandleRequest enqueues an inbound REQUEST for actor processing.
func (c *Coordinator) HandleRequest(env meta.RequestEnvelope) {
	c.events <- requestEvent{env: env}
}

// HandleReply enqueues an inbound REPLY for actor processing.
func (c *Coordinator) HandleReply(env meta.ReplyEnvelope) {
	c.events <- replyEvent{env: env}
}

// HandleRelease enqueues an inbound RELEASE for actor processing.
func (c *Coordinator) HandleRelease(env meta.ReleaseEnvelope) {
	c.events <- releaseEvent{env: env}
}

// ReportUnreachable lets the transport tell the actor that a peer could
// not be reached after the configured retry bound (§7, unreachable_peer).
func (c *Coordinator) ReportUnreachable(peer meta.NodeId, key meta.RequestKey) {
	c.events <- unreachableEvent{peer: peer, key: key}
}

// handleUnreachable records the unreachable peer (§6, Inspect's
// Unreachable map) and, if the stalled request was this node's own
// (i.e. still in c.pending), fails it immediately with
// ErrUnreachablePeer instead of leaving its caller blocked on ctx
// timeout with no explanation.
func (c *Coordinator) handleUnreachable(ev unreachableEvent) {
	c.mu.Lock()
	c.unreachable[ev.peer] = ev.key
	resultCh, ok := c.pending[ev.key]
	if ok {
		delete(c.pending, ev.key)
	}
	c.mu.Unlock()
	log.Warningf("peer %d unreachable for request %s", ev.peer, ev.key)

	if ok && resultCh != nil {
		resultCh <- TransferResult{Err: ErrUnreachablePeer}
	}
}

// handleTransfer realizes Idle -> Requesting (§4.4, transition 1).
func (c *Coordinator) handleTransfer(ev transferEvent) {
	c.mu.Lock()
	if c.fatal {
		c.mu.Unlock()
		ev.result <- TransferResult{Err: ErrNodeFatal}
		return
	}
	if c.state != Idle {
		c.mu.Unlock()
		ev.result <- TransferResult{Err: errors.New("a transfer is already in progress on this node")}
		return
	}
	c.state = Requesting
	c.mu.Unlock()

	t := c.clock.TickSend()
	key := meta.RequestKey{Time: meta.LamportTime(t), Initiator: c.self}

	pr := &queue.PendingRequest{
		Key:             key,
		Origin:          queue.OriginSelf,
		RepliesReceived: mapset.NewSet(),
		Dst:             ev.dst,
		Amount:          ev.amount,
	}
	c.queue.Insert(pr)

	c.mu.Lock()
	c.selfKey = &key
	c.pending[key] = ev.result
	c.mu.Unlock()

	c.transport.BroadcastRequest(meta.RequestEnvelope{
		MsgId:  uuid.NewString(),
		Sender: c.self,
		SendTs: meta.LamportTime(t),
		Key:    key,
		Dst:    ev.dst,
		Amount: ev.amount,
	})

	log.Infof("node %d requesting critical section for transfer %d->%d amount=%d at %s",
		c.self, c.self, ev.dst, ev.amount, key)

	c.trySelfGrant()
}

// handleRequest realizes the "on REQUEST" transition (§4.4). A fatal
// node stops accepting new REQUESTs entirely (§7, ledger_divergence);
// RELEASE draining for requests already queued is unaffected.
func (c *Coordinator) handleRequest(env meta.RequestEnvelope) {
	c.mu.Lock()
	fatal := c.fatal
	c.mu.Unlock()
	if fatal {
		return
	}

	c.clock.TickRecv(uint64(env.SendTs))

	pr := &queue.PendingRequest{
		Key:             env.Key,
		Origin:          queue.OriginPeer,
		RepliesReceived: mapset.NewSet(),
		Dst:             env.Dst,
		Amount:          env.Amount,
	}
	if !c.queue.Insert(pr) {
		log.Infof("duplicate_request: %s already queued, replying anyway", env.Key)
	}

	tr := c.clock.TickSend()
	c.transport.SendReply(env.Sender, meta.ReplyEnvelope{
		MsgId:     uuid.NewString(),
		Sender:    c.self,
		SendTs:    meta.LamportTime(tr),
		InReplyTo: env.Key,
	})

	c.trySelfGrant()
}

// handleReply realizes the "on REPLY" transition (§4.4).
func (c *Coordinator) handleReply(env meta.ReplyEnvelope) {
	c.clock.TickRecv(uint64(env.SendTs))

	pr, ok := c.queue.Get(env.InReplyTo)
	if !ok || pr.Origin != queue.OriginSelf {
		// Late reply after our own RELEASE, or for a key we never
		// requested: ignore, no state change, no clock regression.
		return
	}
	pr.RepliesReceived.Add(env.Sender)
	c.trySelfGrant()
}

// handleRelease realizes the "on RELEASE" transition (§4.4). Uses the
// RELEASE message's own send timestamp for tick_recv, never the
// carried transaction's original ts (§9, open question resolved).
func (c *Coordinator) handleRelease(env meta.ReleaseEnvelope) {
	c.clock.TickRecv(uint64(env.SendTs))
	c.queue.Remove(env.Key)

	if env.Outcome == meta.Committed {
		c.ledger.Append(env.Transaction)
		c.checkDivergence()
	}

	c.trySelfGrant()
}

// trySelfGrant evaluates the Requesting -> Held guard (§4.4, transition
// 2) for this node's own pending request, if any, and runs the
// critical section synchronously when both conditions hold.
func (c *Coordinator) trySelfGrant() {
	c.mu.Lock()
	key := c.selfKey
	c.mu.Unlock()
	if key == nil {
		return
	}

	pr, ok := c.queue.Get(*key)
	if !ok || pr.Origin != queue.OriginSelf {
		return
	}

	needed := mapset.NewSet()
	for _, p := range c.peers.Peers() {
		needed.Add(p)
	}
	if !needed.IsSubset(pr.RepliesReceived) {
		return
	}

	min := c.queue.PeekMin()
	if min == nil || min.Key != *key {
		return
	}

	c.enterHeld(*key, pr)
}

// enterHeld realizes the body of transition 2 (invoke the registry,
// append the block on success) followed by transition 3, Held -> Idle
// (remove from queue, broadcast RELEASE).
func (c *Coordinator) enterHeld(key meta.RequestKey, pr *queue.PendingRequest) {
	c.mu.Lock()
	c.state = Held
	c.mu.Unlock()

	ctx := context.Background()
	tx := meta.Transaction{Src: c.self, Dst: pr.Dst, Amount: pr.Amount, Ts: key.Time, Initiator: c.self}

	outcome := meta.Committed
	var block meta.Block
	var transferErr error

	if err := c.registry.Debit(ctx, c.self, pr.Amount); err != nil {
		outcome = meta.Aborted
		if errors.Is(err, ErrInsufficientFunds) {
			transferErr = ErrInsufficientFunds
		} else {
			transferErr = err
		}
		log.Infof("transfer %s aborted: %v", key, err)
	} else {
		if err := c.registry.Credit(ctx, pr.Dst, pr.Amount); err != nil {
			// The debit already succeeded; a credit failure here is a
			// registry-side bug, not a protocol-level concern. Log and
			// still commit the block — the registry's own atomicity
			// contract (§5) is what this spec relies on.
			log.Errorf("credit failed after debit succeeded for %s: %v", key, err)
		}
		block = c.ledger.Append(tx)
		c.checkDivergence()

		c.mu.Lock()
		fatal := c.fatal
		c.mu.Unlock()
		if fatal {
			// The block this call just committed is what tripped
			// ledger_divergence; surface that to the caller instead of
			// a silent, unexplained success.
			transferErr = ErrLedgerDivergence
		}
	}

	// Held -> Idle.
	c.queue.Remove(key)
	tsend := c.clock.TickSend()
	c.transport.BroadcastRelease(meta.ReleaseEnvelope{
		MsgId:       uuid.NewString(),
		Sender:      c.self,
		SendTs:      meta.LamportTime(tsend),
		Key:         key,
		Outcome:     outcome,
		Transaction: tx,
	})

	c.mu.Lock()
	c.state = Idle
	c.selfKey = nil
	resultCh := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()

	log.Infof("node %d released critical section %s, outcome=%s", c.self, key, outcome)

	if resultCh != nil {
		resultCh <- TransferResult{Outcome: outcome, Block: block, Err: transferErr}
	}
}

// checkDivergence is the ledger_divergence disposition (§7): fatal,
// the node must stop accepting new requests. This should never fire
// against honest, reachable peers (invariant 5); it exists to make the
// failure mode explicit rather than silently corrupting the chain.
func (c *Coordinator) checkDivergence() {
	if idx := c.ledger.Verify(); idx != -1 {
		c.mu.Lock()
		c.fatal = true
		c.mu.Unlock()
		log.Errorf("ledger_divergence detected at block %d, node entering fatal state", idx)
	}
}

// LedgerBlocks returns every block this node's ledger currently holds,
// for the operator surface's ledger export route.
func (c *Coordinator) LedgerBlocks() []meta.Block {
	return c.ledger.Range(0, c.ledger.Length())
}

// Balance queries this node's own account balance through the
// registry, for the operator surface's inspect contract (§6).
func (c *Coordinator) Balance(ctx context.Context) (uint64, error) {
	return c.registry.Balance(ctx, c.self)
}

// Inspect returns a non-blocking snapshot of node state for the
// operator surface (§6).
func (c *Coordinator) Inspect() Snapshot {
	c.mu.Lock()
	state := c.state
	fatal := c.fatal
	unreachable := make(map[meta.NodeId]meta.RequestKey, len(c.unreachable))
	for k, v := range c.unreachable {
		unreachable[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		Self:        c.self,
		Clock:       c.clock.Value(),
		State:       state,
		Peers:       c.peers.Peers(),
		Queue:       c.queue.Snapshot(),
		LedgerHead:  c.ledger.Head(),
		LedgerLen:   c.ledger.Length(),
		Unreachable: unreachable,
		Fatal:       fatal,
	}
}
