package registry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/fastestssbc/coordinator"
	"github.com/fastestssbc/meta"
)

// Client is the node-side collaborator that drives a remote registry's
// HTTP surface; it implements coordinator.Registry.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against a registry reachable at baseURL
// (e.g. "http://127.0.0.1:9000").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// RegisterNode performs the one-time bootstrap call (§4.6): announce
// this node's east-west endpoint, receive its assigned id, opening
// balance, and current peer set.
func (c *Client) RegisterNode(endpoint string) (meta.RegisterResponse, error) {
	body, _ := json.Marshal(registerRequest{Endpoint: endpoint})
	resp, err := c.http.Post(c.baseURL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return meta.RegisterResponse{}, errors.Wrap(err, "registry: register call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return meta.RegisterResponse{}, fmt.Errorf("registry: register returned status %d", resp.StatusCode)
	}

	var out meta.RegisterResponse
	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body)
	if err := dec.Decode(&out); err != nil {
		return meta.RegisterResponse{}, errors.Wrap(err, "registry: decode register response")
	}
	return out, nil
}

// Debit implements coordinator.Registry.
func (c *Client) Debit(ctx context.Context, node meta.NodeId, amount uint64) error {
	return c.amountCall(ctx, "/debit", node, amount)
}

// Credit implements coordinator.Registry.
func (c *Client) Credit(ctx context.Context, node meta.NodeId, amount uint64) error {
	return c.amountCall(ctx, "/credit", node, amount)
}

func (c *Client) amountCall(ctx context.Context, path string, node meta.NodeId, amount uint64) error {
	body, _ := json.Marshal(amountRequest{NodeId: node, Amount: amount})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "registry: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "registry: call failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return coordinator.ErrInsufficientFunds
	default:
		return fmt.Errorf("registry: %s returned status %d", path, resp.StatusCode)
	}
}

// Unregister tells the registry this node is leaving, so future
// registrations don't see it in their peer set. Called on graceful
// shutdown (SIGINT/SIGTERM); a skipped call leaves the stale endpoint
// in the registry, where later registrations still see it as a peer
// (a restarted node registers under a fresh id).
func (c *Client) Unregister(ctx context.Context, node meta.NodeId) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/node/%d", c.baseURL, node), nil)
	if err != nil {
		return errors.Wrap(err, "registry: build unregister request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "registry: unregister call failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: unregister returned status %d", resp.StatusCode)
	}
	return nil
}

// Balance queries a node's current balance, used by the operator
// surface rather than the coordination core itself.
func (c *Client) Balance(ctx context.Context, node meta.NodeId) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/balance/%d", c.baseURL, node), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "registry: balance call failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("registry: balance returned status %d", resp.StatusCode)
	}

	var out struct {
		Balance uint64 `json:"balance"`
	}
	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body)
	if err := dec.Decode(&out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
