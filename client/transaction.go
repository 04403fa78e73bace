package client

import (
	"sync"
	"time"

	"github.com/intuitivelabs/httpcore/httpmsg"
)

// TxState is a Transaction's terminal/non-terminal state (§3 Data Model
// "Transaction"), extended with Rejected — SPEC_FULL.md's C5 expansion
// resolving §9 Open Question #3 ("concurrent request() calls sharing a
// pool entry would corrupt current-transaction") in favor of explicit
// serialization: a connection busy with an in-flight transaction refuses
// a second one outright rather than silently corrupting the slot.
type TxState uint8

const (
	TxInProgress TxState = iota
	TxCompleted
	TxUnableToConnect
	TxBroken
	TxTimeout
	// TxRejected is an implementation detail, never wire-visible: the
	// client itself enforces "one in-flight transaction per connection"
	// instead of leaving it to caller discipline.
	TxRejected
)

func (s TxState) String() string {
	switch s {
	case TxInProgress:
		return "InProgress"
	case TxCompleted:
		return "Completed"
	case TxUnableToConnect:
		return "UnableToConnect"
	case TxBroken:
		return "Broken"
	case TxTimeout:
		return "Timeout"
	case TxRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Transaction is a single in-flight (or already-terminal) request/response
// pair. Ownership is cyclic with its ClientConnectionState by design (§9
// "Non-owning back-references"): the connection's current-transaction
// reference is non-owning, while the Transaction's own conn reference is
// owning only while InProgress and is cleared at completion.
type Transaction struct {
	mu   sync.Mutex
	cond *sync.Cond

	state    TxState
	response *httpmsg.Message
	complete bool

	persistConnection bool
	reassembly        []byte

	conn *ClientConnectionState // owning while InProgress; cleared on completion

	completionCB func(*Transaction)
	upgradeCB    UpgradeCallback
}

func newTransaction(persist bool) *Transaction {
	t := &Transaction{state: TxInProgress, persistConnection: persist}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// State returns the transaction's current state.
func (t *Transaction) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Response returns the partially or fully constructed response.
func (t *Transaction) Response() *httpmsg.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.response
}

// SetCompletionCallback installs fn, invoked once when the transaction
// completes (immediately, if it's already complete).
func (t *Transaction) SetCompletionCallback(fn func(*Transaction)) {
	t.mu.Lock()
	already := t.complete
	t.completionCB = fn
	t.mu.Unlock()
	if already && fn != nil {
		fn(t)
	}
}

// AwaitCompletion blocks until the transaction completes, with no
// deadline.
func (t *Transaction) AwaitCompletion() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.complete {
		t.cond.Wait()
	}
}

// AwaitCompletionTimeout blocks until the transaction completes or timeout
// elapses, returning true only on timely completion (§5 "await-completion
// with a timeout must return a boolean distinguishing timely completion
// from deadline expiry").
func (t *Transaction) AwaitCompletionTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.AwaitCompletion()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// completeWith is §4.5 "Completion semantics": set complete, clear the owning
// connection back-reference, signal waiters, then (outside any lock held
// by the caller of complete beyond t's own) fire the completion callback.
// If the connection should not persist and is still open, it is broken
// here — unclean, since nothing is draining a send.
func (t *Transaction) completeWith(state TxState, resp *httpmsg.Message) {
	t.mu.Lock()
	t.state = state
	if resp != nil {
		t.response = resp
	}
	conn := t.conn
	t.conn = nil
	t.complete = true
	cb := t.completionCB
	t.cond.Broadcast()
	t.mu.Unlock()

	if conn != nil && !t.persistConnection {
		_ = conn.conn.Break(false)
	}
	if cb != nil {
		cb(t)
	}
}
