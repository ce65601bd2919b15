package lookup

import "github.com/AmanuelCh/whois-domain-lookup/pkg/models"

// Phase names the active variant of a ViewState
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// ViewState is the single source of truth a renderer reads. It is a closed
// union: Idle, Loading, Success and Failure are the only implementations.
type ViewState interface {
	Phase() Phase
	viewState()
}

// Idle is the state before any lookup was submitted
type Idle struct{}

// Loading is held while a provider query is outstanding
type Loading struct {
	Domain string
}

// Success carries the record returned by the provider
type Success struct {
	Record models.WhoisRecord
}

// Failure carries a user-facing message and the kind of error behind it
type Failure struct {
	Kind    Kind
	Message string
}

func (Idle) Phase() Phase    { return PhaseIdle }
func (Loading) Phase() Phase { return PhaseLoading }
func (Success) Phase() Phase { return PhaseSuccess }
func (Failure) Phase() Phase { return PhaseFailure }

func (Idle) viewState()    {}
func (Loading) viewState() {}
func (Success) viewState() {}
func (Failure) viewState() {}

// Snapshot is what a renderer reads on every redraw
type Snapshot struct {
	State ViewState
	Input string
}

// Frame is the wire form of a Snapshot used by the JSON API, the websocket
// session and the json output format.
type Frame struct {
	Phase  Phase               `json:"phase"`
	Input  string              `json:"input"`
	Domain string              `json:"domain,omitempty"`
	Record *models.WhoisRecord `json:"record,omitempty"`
	Error  *FrameError         `json:"error,omitempty"`
}

// FrameError is the wire form of a Failure
type FrameError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Frame converts the snapshot to its wire form
func (s Snapshot) Frame() Frame {
	frame := Frame{Input: s.Input}
	if s.State == nil {
		frame.Phase = PhaseIdle
		return frame
	}

	frame.Phase = s.State.Phase()
	switch st := s.State.(type) {
	case Loading:
		frame.Domain = st.Domain
	case Success:
		record := st.Record
		frame.Record = &record
	case Failure:
		frame.Error = &FrameError{Kind: st.Kind, Message: st.Message}
	}
	return frame
}
