package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

// countingProvider records how often it was called and answers from fn
type countingProvider struct {
	calls atomic.Int32
	fn    ProviderFunc
}

func (p *countingProvider) Query(ctx context.Context, domain string) (*models.WhoisRecord, error) {
	p.calls.Add(1)
	if p.fn == nil {
		return &models.WhoisRecord{DomainName: domain}, nil
	}
	return p.fn(ctx, domain)
}

// gatedProvider blocks each query until its domain's gate is released
type gatedProvider struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedProvider(domains ...string) *gatedProvider {
	p := &gatedProvider{gates: make(map[string]chan struct{})}
	for _, d := range domains {
		p.gates[d] = make(chan struct{})
	}
	return p
}

func (p *gatedProvider) release(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.gates[domain])
}

func (p *gatedProvider) Query(ctx context.Context, domain string) (*models.WhoisRecord, error) {
	p.mu.Lock()
	gate := p.gates[domain]
	p.mu.Unlock()
	<-gate
	return &models.WhoisRecord{DomainName: domain}, nil
}

func awaitState(t *testing.T, ch <-chan ViewState) ViewState {
	t.Helper()
	select {
	case st, ok := <-ch:
		require.True(t, ok, "channel closed without a state")
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lookup to settle")
		return nil
	}
}

func exampleRecord() *models.WhoisRecord {
	return &models.WhoisRecord{
		DomainName:     "example.com",
		Registrar:      "Example Registrar, LLC",
		CreationDate:   "2020-01-01",
		UpdatedDate:    "2021-01-01",
		ExpirationDate: "2025-01-01",
		Emails:         "admin@example.com",
		WhoisServer:    "whois.example.com",
		DNSSEC:         "unsigned",
		NameServers:    []string{"ns1.example.com", "ns2.example.com"},
	}
}

func TestNewControllerStartsIdle(t *testing.T) {
	c := New(&countingProvider{})
	snap := c.Snapshot()

	assert.Equal(t, PhaseIdle, snap.State.Phase())
	assert.Empty(t, snap.Input)
}

func TestSubmitRejectsBlankInputWithoutProviderCall(t *testing.T) {
	inputs := []string{"", " ", "\t", "\n  \t"}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			provider := &countingProvider{}
			c := New(provider)

			st := awaitState(t, c.Submit(context.Background(), input))

			failure, ok := st.(Failure)
			require.True(t, ok, "expected Failure, got %T", st)
			assert.Equal(t, KindValidation, failure.Kind)
			assert.Equal(t, "Please enter a domain name", failure.Message)
			assert.Equal(t, failure, c.Snapshot().State)
			assert.Equal(t, input, c.Snapshot().Input)

			c.Wait()
			assert.Zero(t, provider.calls.Load())
		})
	}
}

func TestSubmitExampleScenario(t *testing.T) {
	provider := &countingProvider{
		fn: func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
			return exampleRecord(), nil
		},
	}
	c := New(provider)

	st := awaitState(t, c.Submit(context.Background(), "example.com"))

	success, ok := st.(Success)
	require.True(t, ok, "expected Success, got %T", st)
	if diff := cmp.Diff(*exampleRecord(), success.Record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"ns1.example.com", "ns2.example.com"}, success.Record.NameServers)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, "example.com", c.Snapshot().Input)
}

func TestSubmitSetsLoadingSynchronously(t *testing.T) {
	provider := newGatedProvider("example.com")
	c := New(provider)

	done := c.Submit(context.Background(), "example.com")

	snap := c.Snapshot()
	loading, ok := snap.State.(Loading)
	require.True(t, ok, "expected Loading, got %T", snap.State)
	assert.Equal(t, "example.com", loading.Domain)

	provider.release("example.com")
	st := awaitState(t, done)
	assert.Equal(t, PhaseSuccess, st.Phase())
	assert.Equal(t, PhaseSuccess, c.Snapshot().State.Phase())
}

func TestSubmitClearsPreviousResult(t *testing.T) {
	provider := newGatedProvider("first.com", "second.com")
	provider.release("first.com")
	c := New(provider)

	awaitState(t, c.Submit(context.Background(), "first.com"))
	require.Equal(t, PhaseSuccess, c.Snapshot().State.Phase())

	done := c.Submit(context.Background(), "second.com")
	assert.Equal(t, PhaseLoading, c.Snapshot().State.Phase())

	provider.release("second.com")
	awaitState(t, done)
}

func TestSubmitErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"provider message", &ProviderError{StatusCode: 400, Message: "bad domain"}, KindProvider, "bad domain"},
		{"provider without message", &ProviderError{StatusCode: 500}, KindProvider, MsgNotOK},
		{"transport", &TransportError{Err: errors.New("dial tcp: connection refused")}, KindTransport, MsgTransport},
		{"parse", &ParseError{Err: errors.New("unexpected end of JSON input")}, KindParse, MsgParse},
		{"wrapped parse", fmt.Errorf("decode: %w", &ParseError{Err: errors.New("bad")}), KindParse, MsgParse},
		{"unknown", errors.New("boom"), KindUnknown, MsgUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(ProviderFunc(func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
				return nil, tt.err
			}))

			st := awaitState(t, c.Submit(context.Background(), "example.com"))

			assert.Equal(t, Failure{Kind: tt.kind, Message: tt.message}, st)
			assert.Equal(t, st, c.Snapshot().State)
			assert.Equal(t, "example.com", c.Snapshot().Input, "input must be kept for resubmission")
		})
	}
}

func TestSubmitNeverLeavesLoading(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, domain string) (*models.WhoisRecord, error)
	}{
		{"nil record", func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
			return nil, nil
		}},
		{"panic", func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
			panic("provider exploded")
		}},
		{"malformed body", func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
			return nil, &ParseError{Err: errors.New("invalid character '<'")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&countingProvider{fn: tt.fn})

			st := awaitState(t, c.Submit(context.Background(), "example.com"))
			c.Wait()

			assert.Equal(t, PhaseFailure, st.Phase())
			assert.Equal(t, PhaseFailure, c.Snapshot().State.Phase())
		})
	}
}

func TestLastResponseToSettleWins(t *testing.T) {
	provider := newGatedProvider("a.com", "b.com")
	c := New(provider)

	doneA := c.Submit(context.Background(), "a.com")
	doneB := c.Submit(context.Background(), "b.com")

	provider.release("b.com")
	awaitState(t, doneB)
	require.Equal(t, "b.com", c.Snapshot().State.(Success).Record.DomainName)

	provider.release("a.com")
	awaitState(t, doneA)
	assert.Equal(t, "a.com", c.Snapshot().State.(Success).Record.DomainName,
		"without the stale guard the later settling response overwrites the state")
}

func TestStaleGuardKeepsNewestSubmission(t *testing.T) {
	provider := newGatedProvider("a.com", "b.com")

	var reports []Report
	var mu sync.Mutex
	c := New(provider, WithStaleGuard(), WithReporter(func(r Report) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	}))

	doneA := c.Submit(context.Background(), "a.com")
	doneB := c.Submit(context.Background(), "b.com")

	provider.release("b.com")
	awaitState(t, doneB)
	provider.release("a.com")
	stA := awaitState(t, doneA)

	assert.Equal(t, "a.com", stA.(Success).Record.DomainName, "channel carries the submission's own outcome")
	assert.Equal(t, "b.com", c.Snapshot().State.(Success).Record.DomainName)
	assert.Equal(t, "b.com", c.Snapshot().Input)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 2)
	assert.False(t, reports[0].Stale)
	assert.True(t, reports[1].Stale)
}

func TestSubmitIntentIgnoresRepeatedIntent(t *testing.T) {
	provider := &countingProvider{}
	c := New(provider)

	done, ok := c.SubmitIntent(context.Background(), "intent-1", "example.com")
	require.True(t, ok)
	awaitState(t, done)

	// Enter key and button click of the same intent
	done, ok = c.SubmitIntent(context.Background(), "intent-1", "example.com")
	assert.False(t, ok)
	assert.Nil(t, done)

	done, ok = c.SubmitIntent(context.Background(), "intent-2", "example.com")
	require.True(t, ok)
	awaitState(t, done)

	done, ok = c.SubmitIntent(context.Background(), "", "example.com")
	require.True(t, ok)
	awaitState(t, done)

	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestSubscribeObservesTransitionsInOrder(t *testing.T) {
	provider := &countingProvider{}
	c := New(provider)

	var mu sync.Mutex
	var phases []Phase
	unsubscribe := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.State.Phase())
	})

	awaitState(t, c.Submit(context.Background(), "example.com"))
	awaitState(t, c.Submit(context.Background(), "  "))

	unsubscribe()
	awaitState(t, c.Submit(context.Background(), "example.org"))
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseLoading, PhaseSuccess, PhaseFailure}, phases)
}

func TestSubmitPassesDomainTextVerbatim(t *testing.T) {
	var got string
	c := New(&countingProvider{
		fn: func(ctx context.Context, domain string) (*models.WhoisRecord, error) {
			got = domain
			return &models.WhoisRecord{DomainName: domain}, nil
		},
	})

	awaitState(t, c.Submit(context.Background(), " Example.COM "))
	assert.Equal(t, " Example.COM ", got)
}

func TestSnapshotFrame(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want Frame
	}{
		{"idle", Snapshot{State: Idle{}}, Frame{Phase: PhaseIdle}},
		{"nil state", Snapshot{}, Frame{Phase: PhaseIdle}},
		{"loading", Snapshot{State: Loading{Domain: "example.com"}, Input: "example.com"},
			Frame{Phase: PhaseLoading, Input: "example.com", Domain: "example.com"}},
		{"success", Snapshot{State: Success{Record: *exampleRecord()}, Input: "example.com"},
			Frame{Phase: PhaseSuccess, Input: "example.com", Record: exampleRecord()}},
		{"failure", Snapshot{State: Failure{Kind: KindProvider, Message: "bad domain"}, Input: "x"},
			Frame{Phase: PhaseFailure, Input: "x", Error: &FrameError{Kind: KindProvider, Message: "bad domain"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.snap.Frame()); diff != "" {
				t.Errorf("Frame() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
