package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/internal/output"
	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

// Message types exchanged over the websocket
const (
	MessageSubmit     = "submit"
	MessageState      = "state"
	MessageDelegation = "delegation"
	MessageError      = "error"
)

// ClientMessage is a frame sent by the page
type ClientMessage struct {
	Type   string `json:"type"`
	Intent string `json:"intent"`
	Domain string `json:"domain"`
}

// ServerMessage is a frame pushed to the page
type ServerMessage struct {
	Type       string             `json:"type"`
	State      *lookup.Frame      `json:"state,omitempty"`
	Delegation *models.Delegation `json:"delegation,omitempty"`
	HTML       string             `json:"html,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// session is one websocket connection with its own controller
type session struct {
	server     *Server
	conn       *websocket.Conn
	controller *lookup.Controller
	log        logr.Logger

	writeMu sync.Mutex
	checks  sync.WaitGroup
	// generation counts state pushes; a delegation frame is only sent while
	// the result it belongs to is still the latest one
	generation atomic.Uint64
}

func (s *Server) handleSession(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.log.V(1).Info("Websocket upgrade failed", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	s.metrics.sessions.Add(1)
	defer s.metrics.sessions.Add(-1)

	log := s.log.WithValues("session", uuid.NewString())
	sess := &session{
		server:     s,
		conn:       conn,
		controller: s.newController(log),
		log:        log,
	}
	sess.run(c.Request.Context())
}

// run pushes every view-state change to the page and feeds submissions to
// the controller until the connection closes
func (sess *session) run(ctx context.Context) {
	unsubscribe := sess.controller.Subscribe(func(snap lookup.Snapshot) {
		gen := sess.generation.Add(1)
		sess.pushState(snap)
		if success, ok := snap.State.(lookup.Success); ok && sess.server.delegator != nil {
			sess.checks.Add(1)
			go sess.pushDelegation(ctx, gen, success.Record.DomainName)
		}
	})
	defer func() {
		unsubscribe()
		sess.controller.Wait()
		sess.checks.Wait()
	}()

	sess.pushState(sess.controller.Snapshot())

	for {
		var msg ClientMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.V(1).Info("Websocket read failed", "error", err.Error())
			}
			return
		}

		switch msg.Type {
		case MessageSubmit:
			if _, accepted := sess.controller.SubmitIntent(ctx, msg.Intent, msg.Domain); !accepted {
				sess.log.V(1).Info("Ignoring repeated intent", "intent", msg.Intent)
			}
		default:
			sess.send(ServerMessage{Type: MessageError, Error: "unknown message type " + msg.Type})
		}
	}
}

func (sess *session) pushState(snap lookup.Snapshot) {
	frame := snap.Frame()
	html, err := sess.server.renderFragment("result", newPage(&output.View{Snapshot: snap}))
	if err != nil {
		sess.log.Error(err, "Rendering result fragment failed")
	}
	sess.send(ServerMessage{Type: MessageState, State: &frame, HTML: html})
}

// pushDelegation runs the live check for the result pushed as generation gen
// and drops the card if a newer state has reached the page since.
func (sess *session) pushDelegation(ctx context.Context, gen uint64, domain string) {
	defer sess.checks.Done()

	delegation := sess.server.delegator.Delegation(ctx, domain)
	html, err := sess.server.renderFragment("card", output.DelegationCard(delegation))
	if err != nil {
		sess.log.Error(err, "Rendering delegation card failed")
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if sess.generation.Load() != gen {
		sess.log.V(1).Info("Dropping delegation of a superseded result", "domain", domain)
		return
	}
	sess.write(ServerMessage{Type: MessageDelegation, Delegation: delegation, HTML: html})
}

// send serializes writes; gorilla connections allow one concurrent writer
func (sess *session) send(msg ServerMessage) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	sess.write(msg)
}

// write must be called with writeMu held
func (sess *session) write(msg ServerMessage) {
	if err := sess.conn.WriteJSON(msg); err != nil {
		sess.log.V(1).Info("Websocket write failed", "type", msg.Type, "error", err.Error())
	}
}
