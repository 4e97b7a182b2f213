// Package txstate tracks a write transaction from submission to confirmation.
package txstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/strangelove-ventures/fundlens/metrics"
	"go.uber.org/zap"
)

// Phase is the position of a tracker in the transaction lifecycle:
//
//	Idle -> Pending -> WaitingForReceipt -> Confirmed | Failed
//
// Reset returns to Idle from any phase that is not in flight.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhasePending           Phase = "pending"
	PhaseWaitingForReceipt Phase = "waiting_for_receipt"
	PhaseConfirmed         Phase = "confirmed"
	PhaseFailed            Phase = "failed"
)

var (
	// ErrBusy is returned by Submit and Reset while a transaction is in flight.
	ErrBusy = errors.New("a transaction is already in flight")
	// ErrNotReset is returned by Submit when the previous transaction failed and Reset was not called.
	ErrNotReset = errors.New("previous transaction failed, reset before submitting")
)

const subscriberBuffer = 16

// State is a snapshot of a tracker.
type State struct {
	Phase Phase
	// ActionID groups the transactions of one user action, such as a token approval and the
	// vote that follows it.
	ActionID string
	Label    string
	TxHash   common.Hash
	// Receipt is set once the transaction is mined, including when it reverted.
	Receipt *types.Receipt
	// Failure is set in PhaseFailed.
	Failure *Failure
	At      time.Time
}

// Terminal reports whether no transaction is in flight.
func (s State) Terminal() bool {
	return s.Phase == PhaseConfirmed || s.Phase == PhaseFailed
}

type Config struct {
	Logger *zap.Logger
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Tracker holds the transaction state of one session. Only one transaction may be in flight at
// a time.
type Tracker struct {
	log   *zap.Logger
	clock clockwork.Clock

	mu    sync.Mutex
	state State
	subs  map[chan State]struct{}
}

func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		log:   cfg.Logger.With(zap.String("sys", "txstate")),
		clock: cfg.Clock,
		state: State{Phase: PhaseIdle, At: cfg.Clock.Now()},
		subs:  make(map[chan State]struct{}),
	}, nil
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset returns the tracker to Idle. It fails with ErrBusy while a transaction is in flight,
// since a submitted transaction cannot be cancelled.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Phase == PhasePending || t.state.Phase == PhaseWaitingForReceipt {
		return ErrBusy
	}
	if t.state.Phase != PhaseIdle {
		t.transition(State{Phase: PhaseIdle})
	}
	return nil
}

// Subscribe returns a channel that receives every state change until ctx is done or the
// returned unsubscribe func is called, whichever comes first. Either one closes the channel.
// Slow subscribers miss intermediate states rather than block the tracker.
func (t *Tracker) Subscribe(ctx context.Context) (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var (
		once sync.Once
		stop = make(chan struct{})
	)
	unsubscribe := func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			close(ch)
			t.mu.Unlock()
			close(stop)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return ch, unsubscribe
}

// Submit sends a transaction and waits for its receipt, moving through the lifecycle. It may be
// called from Idle, or from Confirmed to chain a follow-up transaction into the same action.
// A mined receipt with a failed status ends in Failed and is returned alongside the error.
func (t *Tracker) Submit(
	ctx context.Context,
	label string,
	send func(ctx context.Context) (common.Hash, error),
	wait func(ctx context.Context, hash common.Hash) (*types.Receipt, error),
) (*types.Receipt, error) {
	t.mu.Lock()
	switch t.state.Phase {
	case PhasePending, PhaseWaitingForReceipt:
		t.mu.Unlock()
		return nil, ErrBusy
	case PhaseFailed:
		t.mu.Unlock()
		return nil, ErrNotReset
	}
	actionID := t.state.ActionID
	if t.state.Phase == PhaseIdle || actionID == "" {
		actionID = uuid.NewString()
	}
	t.transition(State{Phase: PhasePending, ActionID: actionID, Label: label})
	t.mu.Unlock()

	hash, err := send(ctx)
	if err != nil {
		return nil, t.fail(State{ActionID: actionID, Label: label}, err)
	}
	t.set(State{Phase: PhaseWaitingForReceipt, ActionID: actionID, Label: label, TxHash: hash})

	receipt, err := wait(ctx, hash)
	if err != nil {
		return nil, t.fail(State{ActionID: actionID, Label: label, TxHash: hash}, err)
	}
	if receipt == nil {
		f := &Failure{
			Kind:   FailureUnknown,
			Reason: fmt.Sprintf("no receipt returned for transaction %s", hash.Hex()),
		}
		return nil, t.fail(State{ActionID: actionID, Label: label, TxHash: hash}, f)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		f := &Failure{
			Kind:   FailureReverted,
			Reason: fmt.Sprintf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber),
		}
		return receipt, t.fail(State{ActionID: actionID, Label: label, TxHash: hash, Receipt: receipt}, f)
	}

	t.set(State{Phase: PhaseConfirmed, ActionID: actionID, Label: label, TxHash: hash, Receipt: receipt})
	return receipt, nil
}

func (t *Tracker) fail(s State, err error) error {
	f := newFailure(err)
	s.Phase = PhaseFailed
	s.Failure = f
	t.set(s)
	return f
}

func (t *Tracker) set(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transition(s)
}

// transition must be called with mu held.
func (t *Tracker) transition(s State) {
	s.At = t.clock.Now()
	t.state = s
	metrics.TxTransitionsTotal.WithLabelValues(string(s.Phase)).Inc()

	fields := []zap.Field{
		zap.String("phase", string(s.Phase)),
		zap.String("action_id", s.ActionID),
		zap.String("label", s.Label),
	}
	if s.TxHash != (common.Hash{}) {
		fields = append(fields, zap.String("tx_hash", s.TxHash.Hex()))
	}
	if s.Failure != nil {
		fields = append(fields, zap.String("failure_kind", string(s.Failure.Kind)), zap.String("reason", s.Failure.Reason))
		t.log.Warn("Transaction failed", fields...)
	} else {
		t.log.Info("Transaction state changed", fields...)
	}

	for ch := range t.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
