// Package lookup owns the WHOIS lookup lifecycle: it validates user input,
// issues one provider query per submission and exposes the resulting
// view-state to renderers.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

// Provider performs the actual WHOIS query. Errors should be one of
// *ProviderError, *TransportError or *ParseError; anything else is reported
// as an unexpected failure.
type Provider interface {
	Query(ctx context.Context, domain string) (*models.WhoisRecord, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, domain string) (*models.WhoisRecord, error)

// Query calls f(ctx, domain)
func (f ProviderFunc) Query(ctx context.Context, domain string) (*models.WhoisRecord, error) {
	return f(ctx, domain)
}

// Report describes one settled submission
type Report struct {
	RequestID string
	Domain    string
	State     ViewState
	Duration  time.Duration
	// Stale is set when the stale guard discarded the outcome because a newer
	// submission was made while this one was outstanding.
	Stale bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for lookup events
func WithLogger(logger logr.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithStaleGuard makes the controller ignore responses of submissions that
// were superseded by a newer one. Without it the last response to settle wins.
func WithStaleGuard() Option {
	return func(c *Controller) {
		c.staleGuard = true
	}
}

// WithReporter registers a function called once per settled submission
func WithReporter(fn func(Report)) Option {
	return func(c *Controller) {
		c.reporter = fn
	}
}

// Controller mediates between user intent, the provider and the view-state.
// The view-state is owned by the controller; renderers only read snapshots.
type Controller struct {
	provider   Provider
	log        logr.Logger
	staleGuard bool
	reporter   func(Report)

	mu         sync.Mutex
	state      ViewState
	input      string
	seq        uint64
	lastIntent string

	// notifyMu serializes transitions with their notifications so subscribers
	// observe states in the order they were set.
	notifyMu    sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int

	inflight sync.WaitGroup
}

// New creates a controller in the Idle state
func New(provider Provider, opts ...Option) *Controller {
	c := &Controller{
		provider:    provider,
		log:         logr.Discard(),
		state:       Idle{},
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current view-state and input buffer
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Input: c.input}
}

// Subscribe registers fn to be called with every new snapshot. Callbacks run
// synchronously on the transitioning goroutine and must not call Submit.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn

	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.subscribers, id)
	}
}

// Submit starts a lookup for domainText. Empty or whitespace-only text fails
// immediately without contacting the provider. Otherwise the state is set to
// Loading before Submit returns and one provider query runs in the
// background. The returned channel receives the outcome of this submission
// and is then closed.
func (c *Controller) Submit(ctx context.Context, domainText string) <-chan ViewState {
	done := make(chan ViewState, 1)

	if strings.TrimSpace(domainText) == "" {
		failure := FailureFrom(ErrEmptyDomain)
		c.transition(func() bool {
			c.input = domainText
			c.seq++
			c.state = failure
			return true
		})
		c.log.V(1).Info("Rejected empty domain")
		c.report(Report{State: failure})

		done <- failure
		close(done)
		return done
	}

	var seq uint64
	c.transition(func() bool {
		c.input = domainText
		c.seq++
		seq = c.seq
		c.state = Loading{Domain: domainText}
		return true
	})

	c.inflight.Add(1)
	go c.run(ctx, seq, domainText, done)

	return done
}

// SubmitIntent is the entry point for user triggers. The button and the
// Enter key of one user intent share an intent ID; a repeated ID is ignored
// and reports false. An empty ID is always submitted.
func (c *Controller) SubmitIntent(ctx context.Context, intentID, domainText string) (<-chan ViewState, bool) {
	if intentID != "" {
		c.mu.Lock()
		if intentID == c.lastIntent {
			c.mu.Unlock()
			c.log.V(1).Info("Ignored repeated intent", "intent", intentID)
			return nil, false
		}
		c.lastIntent = intentID
		c.mu.Unlock()
	}
	return c.Submit(ctx, domainText), true
}

// Wait blocks until every outstanding submission has settled
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// run performs one provider query and settles its outcome. The deferred
// settle guarantees Loading is cleared on every path, panics included.
func (c *Controller) run(ctx context.Context, seq uint64, domain string, done chan<- ViewState) {
	defer c.inflight.Done()

	requestID := uuid.NewString()
	log := c.log.WithValues("requestID", requestID, "domain", domain)
	start := time.Now()

	var final ViewState = Failure{Kind: KindUnknown, Message: MsgUnexpected}
	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "Provider panicked")
			final = Failure{Kind: KindUnknown, Message: MsgUnexpected}
		}

		applied := c.settle(seq, final)
		elapsed := time.Since(start)
		log.Info("Lookup settled", "phase", final.Phase(), "duration", elapsed, "applied", applied)
		c.report(Report{
			RequestID: requestID,
			Domain:    domain,
			State:     final,
			Duration:  elapsed,
			Stale:     !applied,
		})

		done <- final
		close(done)
	}()

	log.V(1).Info("Querying provider")
	record, err := c.provider.Query(ctx, domain)
	switch {
	case err != nil:
		failure := FailureFrom(err)
		log.Error(err, "Lookup failed", "kind", failure.Kind)
		final = failure
	case record == nil:
		log.Error(nil, "Provider returned no record")
		final = Failure{Kind: KindParse, Message: MsgParse}
	default:
		final = Success{Record: *record}
	}
}

// settle applies the outcome of submission seq. With the stale guard on,
// outcomes of superseded submissions are dropped.
func (c *Controller) settle(seq uint64, state ViewState) bool {
	applied := false
	c.transition(func() bool {
		if c.staleGuard && seq != c.seq {
			return false
		}
		c.state = state
		applied = true
		return true
	})
	return applied
}

// transition runs mutate under the state lock and, if it changed the state,
// notifies subscribers with the resulting snapshot.
func (c *Controller) transition(mutate func() bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	changed := mutate()
	snap := Snapshot{State: c.state, Input: c.input}
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range c.subscribers {
		fn(snap)
	}
}

func (c *Controller) report(r Report) {
	if c.reporter != nil {
		c.reporter(r)
	}
}
