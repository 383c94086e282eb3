// Package net carries the two HTTP surfaces a running node exposes:
// the east-west peer transport (REQUEST/REPLY/RELEASE, msgpack-coded)
// and the north-bound operator surface (JSON). Both follow the
// teacher's gin + persistent-client style in the original http.go.
package net

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-msgpack/codec"
	"github.com/pkg/errors"

	"github.com/fastestssbc/meta"
	"github.com/fastestssbc/peers"
	"github.com/fastestssbc/util"
)

var mh codec.MsgpackHandle

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &mh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(body []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(body), &mh)
	return dec.Decode(v)
}

// InboundHandler is the subset of coordinator.Coordinator the peer
// server dispatches inbound messages to.
type InboundHandler interface {
	HandleRequest(env meta.RequestEnvelope)
	HandleReply(env meta.ReplyEnvelope)
	HandleRelease(env meta.ReleaseEnvelope)
}

// UnreachableReporter lets the transport client report a peer it could
// not reach after exhausting retries (§7, unreachable_peer).
type UnreachableReporter interface {
	ReportUnreachable(peer meta.NodeId, key meta.RequestKey)
}

// PeerServer listens for inbound east-west RPCs and dispatches them to
// a node's coordinator.
type PeerServer struct {
	handler InboundHandler
}

// NewPeerServer builds a PeerServer bound to handler.
func NewPeerServer(handler InboundHandler) *PeerServer {
	return &PeerServer{handler: handler}
}

// Attach registers the east-west routes on r.
func (s *PeerServer) Attach(r *gin.Engine) {
	r.POST("/peer/request", s.onRequest)
	r.POST("/peer/reply", s.onReply)
	r.POST("/peer/release", s.onRelease)
}

func readBody(c *gin.Context) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *PeerServer) onRequest(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var env meta.RequestEnvelope
	if err := decode(body, &env); err != nil {
		log.Errorf("peer: malformed REQUEST: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if !verifyRequest(env) {
		log.Warningf("peer: REQUEST %s failed signature verification", env.Key)
		c.Status(http.StatusBadRequest)
		return
	}
	s.handler.HandleRequest(env)
	c.Status(http.StatusOK)
}

func (s *PeerServer) onReply(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var env meta.ReplyEnvelope
	if err := decode(body, &env); err != nil {
		log.Errorf("peer: malformed REPLY: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if !verifyReply(env) {
		log.Warningf("peer: REPLY to %s failed signature verification", env.InReplyTo)
		c.Status(http.StatusBadRequest)
		return
	}
	s.handler.HandleReply(env)
	c.Status(http.StatusOK)
}

func (s *PeerServer) onRelease(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var env meta.ReleaseEnvelope
	if err := decode(body, &env); err != nil {
		log.Errorf("peer: malformed RELEASE: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if !verifyRelease(env) {
		log.Warningf("peer: RELEASE %s failed signature verification", env.Key)
		c.Status(http.StatusBadRequest)
		return
	}
	s.handler.HandleRelease(env)
	c.Status(http.StatusOK)
}

// verifyRequest, verifyReply, and verifyRelease check an envelope's
// Sign against its own carried PubKey (self-certifying, matching the
// teacher's *Msg pattern in net/http.go) over the envelope with both
// fields cleared.
func verifyRequest(env meta.RequestEnvelope) bool {
	sign, pubKey := env.Sign, env.PubKey
	env.Sign, env.PubKey = nil, nil
	body, err := encode(env)
	if err != nil {
		return false
	}
	return safeVerifySign(body, sign, pubKey)
}

func verifyReply(env meta.ReplyEnvelope) bool {
	sign, pubKey := env.Sign, env.PubKey
	env.Sign, env.PubKey = nil, nil
	body, err := encode(env)
	if err != nil {
		return false
	}
	return safeVerifySign(body, sign, pubKey)
}

func verifyRelease(env meta.ReleaseEnvelope) bool {
	sign, pubKey := env.Sign, env.PubKey
	env.Sign, env.PubKey = nil, nil
	body, err := encode(env)
	if err != nil {
		return false
	}
	return safeVerifySign(body, sign, pubKey)
}

// safeVerifySign guards util.VerifySign, which panics on a missing or
// malformed PEM key: a peer route takes signature and key straight
// from the wire, so a bad or absent one must fail verification rather
// than take the process down.
func safeVerifySign(body, sign, pubKey []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return util.VerifySign(body, sign, pubKey)
}

// PeerClient implements coordinator.Transport over HTTP, msgpack-coded,
// with bounded retry/backoff per destination (§7: a peer that stays
// unreachable past the bound is reported, never silently dropped).
type PeerClient struct {
	self       meta.NodeId
	dir        *peers.Directory
	http       *http.Client
	maxRetries int
	backoff    time.Duration
	reporter   UnreachableReporter
	prvKey     []byte
	pubKey     []byte
}

// NewPeerClient builds a client against dir, reporting exhausted
// retries to reporter. prvKey/pubKey are the node's own RSA keypair
// (util.GetKeyPair); every outbound envelope is signed with prvKey and
// carries pubKey so the receiver can verify it without a separate key
// distribution step (§6, matching the teacher's self-certifying *Msg
// pattern).
func NewPeerClient(self meta.NodeId, dir *peers.Directory, maxRetries int, backoff time.Duration, reporter UnreachableReporter, prvKey, pubKey []byte) *PeerClient {
	return &PeerClient{
		self:       self,
		dir:        dir,
		http:       &http.Client{Timeout: 2 * time.Second},
		maxRetries: maxRetries,
		backoff:    backoff,
		reporter:   reporter,
		prvKey:     prvKey,
		pubKey:     pubKey,
	}
}

func (p *PeerClient) sign(body []byte) []byte {
	return util.Sign(body, p.prvKey)
}

func (p *PeerClient) post(id meta.NodeId, path string, body []byte) error {
	addr, err := p.dir.Address(id)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err := p.http.Post(fmt.Sprintf("%s/peer/%s", addr, path), "application/msgpack", bytes.NewReader(body))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("peer %d returned status %d", id, resp.StatusCode)
		} else {
			lastErr = err
		}
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(attempt+1))
		}
	}
	return errors.Wrapf(lastErr, "peer %d unreachable after %d attempts", id, p.maxRetries+1)
}

// BroadcastRequest implements coordinator.Transport.
func (p *PeerClient) BroadcastRequest(env meta.RequestEnvelope) {
	unsigned, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode REQUEST: %v", err)
		return
	}
	env.Sign, env.PubKey = p.sign(unsigned), p.pubKey
	body, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode signed REQUEST: %v", err)
		return
	}
	for _, id := range p.dir.Peers() {
		go p.sendWithReport(id, "request", body, &env.Key)
	}
}

// SendReply implements coordinator.Transport.
func (p *PeerClient) SendReply(to meta.NodeId, env meta.ReplyEnvelope) {
	unsigned, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode REPLY: %v", err)
		return
	}
	env.Sign, env.PubKey = p.sign(unsigned), p.pubKey
	body, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode signed REPLY: %v", err)
		return
	}
	go p.sendWithReport(to, "reply", body, &env.InReplyTo)
}

// BroadcastRelease implements coordinator.Transport.
func (p *PeerClient) BroadcastRelease(env meta.ReleaseEnvelope) {
	unsigned, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode RELEASE: %v", err)
		return
	}
	env.Sign, env.PubKey = p.sign(unsigned), p.pubKey
	body, err := encode(env)
	if err != nil {
		log.Errorf("peer: encode signed RELEASE: %v", err)
		return
	}
	for _, id := range p.dir.Peers() {
		go p.sendWithReport(id, "release", body, &env.Key)
	}
}

func (p *PeerClient) sendWithReport(id meta.NodeId, path string, body []byte, key *meta.RequestKey) {
	if err := p.post(id, path, body); err != nil {
		log.Warningf("peer: %v", err)
		if p.reporter != nil && key != nil {
			p.reporter.ReportUnreachable(id, *key)
		}
	}
}
