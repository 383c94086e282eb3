package registry

import (
	"fmt"
	"net/http"

	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/fastestssbc/meta"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes a Store over HTTP north-bound (§4.6, §6): registration
// and the debit/credit/balance calls a node's coordinator drives through
// the registry.Client.
type Server struct {
	store *Store
}

// NewServer wraps a Store for gin routing.
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// Register attaches the registry's routes to an existing gin engine, the
// way the teacher's net/http.go attaches its own routes.
func (s *Server) Register(r *gin.Engine) {
	r.POST("/register", s.handleRegister)
	r.POST("/debit", s.handleDebit)
	r.POST("/credit", s.handleCredit)
	r.GET("/balance/:id", s.handleBalance)
	r.DELETE("/node/:id", s.handleUnregister)
}

type registerRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	id, balance, peers, err := s.store.Register(req.Endpoint)
	if err != nil {
		log.Errorf("registry: register failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := meta.RegisterResponse{NodeId: id, InitialBalance: balance, Peers: peers}
	body, _ := json.Marshal(resp)
	c.Data(http.StatusOK, "application/json", body)
}

type amountRequest struct {
	NodeId meta.NodeId `json:"node_id"`
	Amount uint64      `json:"amount"`
}

func (s *Server) handleDebit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed debit request"})
		return
	}
	if err := s.store.Debit(req.NodeId, req.Amount); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleCredit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed credit request"})
		return
	}
	if err := s.store.Credit(req.NodeId, req.Amount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleUnregister drops a node's endpoint on graceful shutdown, so it
// no longer appears in peer sets future registrations receive. The
// account balance is left untouched (§4.6): the ledger history
// referencing this node must still make sense after it's gone.
func (s *Server) handleUnregister(c *gin.Context) {
	var id uint32
	if _, err := fmt.Sscan(c.Param("id"), &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
		return
	}
	if err := s.store.Unregister(meta.NodeId(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleBalance(c *gin.Context) {
	var id uint32
	if _, err := fmt.Sscan(c.Param("id"), &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
		return
	}
	bal, err := s.store.Balance(meta.NodeId(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_id": id, "balance": bal})
}
