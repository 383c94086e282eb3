package net

import (
	"bytes"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fastestssbc/meta"
	"github.com/fastestssbc/util"
)

type recordingHandler struct {
	requests []meta.RequestEnvelope
	replies  []meta.ReplyEnvelope
	releases []meta.ReleaseEnvelope
}

func (h *recordingHandler) HandleRequest(env meta.RequestEnvelope) {
	h.requests = append(h.requests, env)
}
func (h *recordingHandler) HandleReply(env meta.ReplyEnvelope) { h.replies = append(h.replies, env) }
func (h *recordingHandler) HandleRelease(env meta.ReleaseEnvelope) {
	h.releases = append(h.releases, env)
}

func encodeMsgpack(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return body
}

// signRequest returns env with Sign/PubKey populated the way
// PeerClient.BroadcastRequest would before putting it on the wire.
func signRequest(t *testing.T, env meta.RequestEnvelope, prvKey, pubKey []byte) meta.RequestEnvelope {
	t.Helper()
	unsigned := encodeMsgpack(t, env)
	env.Sign, env.PubKey = util.Sign(unsigned, prvKey), pubKey
	return env
}

func TestPeerServerDispatchesRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &recordingHandler{}
	r := gin.New()
	NewPeerServer(h).Attach(r)

	prvKey, pubKey := util.GetKeyPair()
	env := signRequest(t, meta.RequestEnvelope{MsgId: "m1", Sender: 2, SendTs: 4, Key: meta.RequestKey{Time: 4, Initiator: 2}, Dst: 1, Amount: 10}, prvKey, pubKey)
	req := httptest.NewRequest("POST", "/peer/request", bytes.NewReader(encodeMsgpack(t, env)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(h.requests) != 1 || h.requests[0].Key != env.Key {
		t.Fatalf("expected dispatched REQUEST, got %+v", h.requests)
	}
}

func TestPeerServerRejectsUnsignedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &recordingHandler{}
	r := gin.New()
	NewPeerServer(h).Attach(r)

	env := meta.RequestEnvelope{MsgId: "m1", Sender: 2, SendTs: 4, Key: meta.RequestKey{Time: 4, Initiator: 2}, Dst: 1, Amount: 10}
	req := httptest.NewRequest("POST", "/peer/request", bytes.NewReader(encodeMsgpack(t, env)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(h.requests) != 0 {
		t.Fatal("an unsigned REQUEST must not be dispatched")
	}
}

func TestPeerServerRejectsTamperedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &recordingHandler{}
	r := gin.New()
	NewPeerServer(h).Attach(r)

	prvKey, pubKey := util.GetKeyPair()
	env := signRequest(t, meta.RequestEnvelope{MsgId: "m1", Sender: 2, SendTs: 4, Key: meta.RequestKey{Time: 4, Initiator: 2}, Dst: 1, Amount: 10}, prvKey, pubKey)
	env.Amount = 9999 // tamper after signing

	req := httptest.NewRequest("POST", "/peer/request", bytes.NewReader(encodeMsgpack(t, env)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(h.requests) != 0 {
		t.Fatal("a tampered REQUEST must not be dispatched")
	}
}

func TestPeerServerRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &recordingHandler{}
	r := gin.New()
	NewPeerServer(h).Attach(r)

	// 0x81 announces a one-entry msgpack map with no bytes following:
	// decoding into a struct must fail on the truncated stream.
	req := httptest.NewRequest("POST", "/peer/reply", bytes.NewReader([]byte{0x81}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(h.replies) != 0 {
		t.Fatal("malformed body must not be dispatched")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := meta.ReleaseEnvelope{
		MsgId:       "m2",
		Sender:      3,
		SendTs:      7,
		Key:         meta.RequestKey{Time: 7, Initiator: 3},
		Outcome:     meta.Committed,
		Transaction: meta.Transaction{Src: 3, Dst: 1, Amount: 9, Ts: 7, Initiator: 3},
	}
	body, err := encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out meta.ReleaseEnvelope
	if err := decode(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, env) {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, env)
	}
}
