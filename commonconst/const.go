// Package commonconst holds the default values a node or registry
// process falls back on when config doesn't override them, the way
// the teacher's const.go centralized its deployment constants.
package commonconst

import "time"

const (
	// DefaultListenAddr is the node's own HTTP listen address (peer +
	// operator routes share one listener, §4.7).
	DefaultListenAddr = ":8000"

	// DefaultRegistryAddr is where a node looks for the account
	// registry at bootstrap if config doesn't say otherwise.
	DefaultRegistryAddr = "http://127.0.0.1:9000"

	// DefaultRegistryListenAddr is the registry process's own listen
	// address.
	DefaultRegistryListenAddr = ":9000"

	// DefaultInitialBalance seeds a newly registered node's account.
	DefaultInitialBalance = 100

	// DefaultMaxRetries bounds how many times the peer transport
	// retries a single REQUEST/REPLY/RELEASE delivery before reporting
	// unreachable_peer (§7).
	DefaultMaxRetries = 3

	// DefaultBackoff is the base delay between retries; actual delay
	// scales linearly with attempt number.
	DefaultBackoff = 100 * time.Millisecond

	// DefaultOperatorTimeout bounds how long a /transfer call waits for
	// its critical section to resolve.
	DefaultOperatorTimeout = 10 * time.Second

	// DefaultLevelDBPath is where the registry persists account state.
	DefaultLevelDBPath = "./registry-data"
)
