package coordinator

import "github.com/pkg/errors"

// Error kinds from spec §7. Local-only recoverable errors (malformed
// message, duplicate request) are swallowed at their point of origin;
// these sentinels cover the ones callers or the operator surface need
// to distinguish.
var (
	// ErrInsufficientFunds is returned by a Registry's Debit call; the
	// coordinator aborts the transfer and still releases the critical
	// section.
	ErrInsufficientFunds = errors.New("insufficient_funds")

	// ErrUnreachablePeer means transport could not deliver after the
	// configured retry bound; a self-initiated Transfer waiting on that
	// peer's REPLY is failed with this error rather than left blocked
	// until its context deadline.
	ErrUnreachablePeer = errors.New("unreachable_peer")

	// ErrLedgerDivergence is fatal: Verify() found a broken hash chain.
	ErrLedgerDivergence = errors.New("ledger_divergence")

	// ErrNodeFatal is returned by Transfer once the node has stopped
	// accepting new requests after a ledger divergence.
	ErrNodeFatal = errors.New("node is in fatal state, no longer accepting requests")
)
