package net

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"

	"github.com/fastestssbc/coordinator"
	"github.com/fastestssbc/meta"
	"github.com/fastestssbc/queue"
	"github.com/fastestssbc/util"
)

// OperatorCoordinator is the subset of coordinator.Coordinator the
// operator surface drives.
type OperatorCoordinator interface {
	Transfer(ctx context.Context, dst meta.NodeId, amount uint64) (coordinator.TransferResult, error)
	Inspect() coordinator.Snapshot
	Balance(ctx context.Context) (uint64, error)
	Flush()
	LedgerBlocks() []meta.Block
}

// OperatorServer exposes the north-bound operator API (§6): submit a
// transfer, inspect node state, and a quiescence check.
type OperatorServer struct {
	c       OperatorCoordinator
	timeout time.Duration
}

// NewOperatorServer builds an OperatorServer driving c.
func NewOperatorServer(c OperatorCoordinator, timeout time.Duration) *OperatorServer {
	return &OperatorServer{c: c, timeout: timeout}
}

// Attach registers the operator routes on r.
func (s *OperatorServer) Attach(r *gin.Engine) {
	r.POST("/transfer", s.handleTransfer)
	r.GET("/inspect", s.handleInspect)
	r.POST("/flush", s.handleFlush)
	r.GET("/inspect/ledger", s.handleLedgerExport)
}

type transferRequest struct {
	Dst    meta.NodeId `json:"dst"`
	Amount uint64      `json:"amount"`
}

func (s *OperatorServer) handleTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed transfer request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	result, err := s.c.Transfer(ctx, req.Dst, req.Amount)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"outcome": string(result.Outcome),
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome": string(result.Outcome),
		"block":   result.Block,
	})
}

// queueSnapshotEntry is the JSON-safe projection of a queue.PendingRequest:
// RepliesReceived is a mapset.Set, not meant to cross the wire, so the
// operator surface only reports the counted reply tally.
type queueSnapshotEntry struct {
	Key            meta.RequestKey `json:"key"`
	Origin         string          `json:"origin"`
	Dst            meta.NodeId     `json:"dst"`
	Amount         uint64          `json:"amount"`
	RepliesCounted int             `json:"replies_counted"`
}

func toQueueSnapshot(entries []queue.PendingRequest) []queueSnapshotEntry {
	out := make([]queueSnapshotEntry, 0, len(entries))
	for _, e := range entries {
		replies := 0
		if e.RepliesReceived != nil {
			replies = e.RepliesReceived.Cardinality()
		}
		out = append(out, queueSnapshotEntry{
			Key:            e.Key,
			Origin:         e.Origin.String(),
			Dst:            e.Dst,
			Amount:         e.Amount,
			RepliesCounted: replies,
		})
	}
	return out
}

func (s *OperatorServer) handleInspect(c *gin.Context) {
	snap := s.c.Inspect()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	balance, err := s.c.Balance(ctx)
	if err != nil {
		log.Warningf("inspect: balance lookup failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"node_id":        snap.Self,
		"clock":          snap.Clock,
		"state":          snap.State.String(),
		"balance":        balance,
		"peers":          snap.Peers,
		"queue_snapshot": toQueueSnapshot(snap.Queue),
		"ledger_head":    snap.LedgerHead,
		"ledger_len":     snap.LedgerLen,
		"unreachable":    snap.Unreachable,
		"fatal":          snap.Fatal,
	})
}

func (s *OperatorServer) handleFlush(c *gin.Context) {
	s.c.Flush()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleLedgerExport returns the full block chain, zstd-compressed,
// for operator-side auditing or cross-node reconciliation.
func (s *OperatorServer) handleLedgerExport(c *gin.Context) {
	blocks := s.c.LedgerBlocks()
	raw, err := util.FastestJson.Marshal(blocks)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	compressed, err := util.CompressLedger(raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/zstd", compressed)
}

// Listen starts the node's HTTP server carrying both the east-west
// peer routes and the north-bound operator routes on a single gin
// engine, mirroring the teacher's single-listener HttpListen.
func Listen(addr string, peerSrv *PeerServer, opSrv *OperatorServer) error {
	r := gin.Default()
	peerSrv.Attach(r)
	opSrv.Attach(r)
	return r.Run(addr)
}
