package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/codeclub/liveclass/internal/editor"
	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/session"
)

// Gateway is the websocket entry point for the live editing actions: edit,
// cursor, lock/unlock and the sync handshake. Everything it mutates is
// transient registry state; persisted session facts go through the REST API
// and the deriver instead.
type Gateway struct {
	registry       *editor.Registry
	dir            session.Directory
	broadcaster    *Broadcaster
	authToken      string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	validate       *validator.Validate
}

func NewGateway(registry *editor.Registry, dir session.Directory, broadcaster *Broadcaster, authToken string, allowedOrigins []string) *Gateway {
	g := &Gateway{
		registry:       registry,
		dir:            dir,
		broadcaster:    broadcaster,
		authToken:      authToken,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		validate:       validator.New(),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		g.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			g.allowedHosts[parsed.Host] = true
		}
	}
	return g
}

// HandleWS upgrades the connection and serves it until the peer goes away.
// Query parameters: user (required), team and/or class (at least one). The
// acting role is resolved server-side; the client never chooses it.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !g.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := r.URL.Query().Get("user")
	teamID, _ := strconv.Atoi(r.URL.Query().Get("team"))
	classID, _ := strconv.Atoi(r.URL.Query().Get("class"))
	if userID == "" || (teamID == 0 && classID == 0) {
		http.Error(w, "user and team or class required", http.StatusBadRequest)
		return
	}

	role := event.Student
	if teamID != 0 {
		var err error
		if classID == 0 {
			classID, err = g.dir.TeamClass(r.Context(), teamID)
			if err != nil {
				http.Error(w, "team not found", http.StatusNotFound)
				return
			}
		}
		role, err = session.DetermineRole(r.Context(), g.dir, teamID, userID)
		if err != nil {
			http.Error(w, "cannot resolve role", http.StatusInternalServerError)
			return
		}
	} else if curator, err := g.dir.HasRole(r.Context(), userID, event.Curator); err == nil && curator {
		role = event.Curator
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: g.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("ws client connected: user=%s team=%d class=%d role=%s", userID, teamID, classID, role)
	c := newClient(conn, userID, role, teamID, classID)
	g.broadcaster.register(c)
	if teamID != 0 {
		g.registry.AddConnection(teamID, userID)
	}

	defer g.disconnect(c)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.dispatch(c, data)
	}
}

// disconnect is the single cleanup step: locks released, connection
// refcount dropped (clearing the team buffer when it was the last one) and
// peers told which lines came free.
func (g *Gateway) disconnect(c *client) {
	if c.teamID != 0 {
		freed, remaining := g.registry.RemoveConnection(c.teamID, c.userID)
		if len(freed) > 0 && remaining > 0 {
			g.broadcaster.ToTeam(c.teamID, Message{
				Type:    MsgUnlocked,
				Payload: UnlockedPayload{TeamID: c.teamID, Lines: freed, ActorID: c.userID},
			})
		}
	}
	g.broadcaster.remove(c)
	log.Printf("ws client disconnected: user=%s team=%d", c.userID, c.teamID)
}

func (g *Gateway) dispatch(c *client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.rejectWith(c, "malformed message")
		return
	}

	// Every action below acts on team registry state. A class-only
	// connection is receive-only; letting it through would grow state for a
	// team id of 0 that no disconnect ever cleans up.
	if c.teamID == 0 {
		g.rejectWith(c, "connection has no team")
		return
	}

	switch env.Type {
	case MsgEdit:
		g.handleEdit(c, env.Payload)
	case MsgCursor:
		g.handleCursor(c, env.Payload)
	case MsgLock:
		g.handleLock(c, env.Payload)
	case MsgSyncRequest:
		g.handleSyncRequest(c)
	case MsgSyncResponse:
		g.handleSyncResponse(c, env.Payload)
	default:
		g.rejectWith(c, "unknown message type "+string(env.Type))
	}
}

func (g *Gateway) handleEdit(c *client, raw json.RawMessage) {
	var p EditPayload
	if !g.decode(c, raw, &p) {
		return
	}
	p.TeamID = c.teamID
	p.ActorID = c.userID
	p.ActorRole = c.role

	if g.registry.LockedByOther(c.teamID, p.LineNumber, c.userID) {
		log.Printf("user %s attempted to edit locked line %d in team %d", c.userID, p.LineNumber, c.teamID)
		g.broadcaster.ToUser(c.userID, Message{Type: MsgEditRejected, Payload: p})
		return
	}

	g.registry.ApplyEdit(c.teamID, editor.Edit{
		Line:     p.LineNumber,
		Position: p.Position,
		Content:  p.Content,
		Kind:     p.ChangeKind,
	})
	g.broadcaster.ToTeam(c.teamID, Message{Type: MsgEdit, Payload: p})
}

func (g *Gateway) handleCursor(c *client, raw json.RawMessage) {
	var p CursorPayload
	if !g.decode(c, raw, &p) {
		return
	}
	p.TeamID = c.teamID
	p.ActorID = c.userID
	p.ActorRole = c.role
	g.broadcaster.ToTeam(c.teamID, Message{Type: MsgCursor, Payload: p})
}

func (g *Gateway) handleLock(c *client, raw json.RawMessage) {
	var p LockPayload
	if !g.decode(c, raw, &p) {
		return
	}
	p.TeamID = c.teamID
	p.ActorID = c.userID
	p.ActorRole = c.role

	switch p.Action {
	case ActionLock:
		if g.registry.TryLock(c.teamID, p.LineNumber, c.userID, c.role) {
			g.broadcaster.ToTeam(c.teamID, Message{Type: MsgLock, Payload: p})
		} else {
			// Denied: a private notice, not an error.
			p.Action = ActionLockRejected
			g.broadcaster.ToUser(c.userID, Message{Type: MsgLock, Payload: p})
		}
	case ActionUnlock:
		g.registry.Unlock(c.teamID, p.LineNumber, c.userID)
		g.broadcaster.ToTeam(c.teamID, Message{Type: MsgLock, Payload: p})
	}
}

// handleSyncRequest serves a late joiner the current buffer. When the server
// holds nothing yet (first connection raced an empty team), the request is
// relayed so an already-connected peer can answer.
func (g *Gateway) handleSyncRequest(c *client) {
	req := SyncRequestPayload{TeamID: c.teamID, ActorID: c.userID}
	if code := g.registry.Buffer(c.teamID); code != "" {
		g.broadcaster.ToUser(c.userID, Message{
			Type:    MsgSyncResponse,
			Payload: SyncResponsePayload{TeamID: c.teamID, Code: code, RequestingActorID: c.userID},
		})
		return
	}
	g.broadcaster.ToTeam(c.teamID, Message{Type: MsgSyncRequest, Payload: req})
}

// handleSyncResponse seeds the server buffer from a peer's answer and
// forwards it to the requester. Seeding never overwrites edits that landed
// in the meantime.
func (g *Gateway) handleSyncResponse(c *client, raw json.RawMessage) {
	var p SyncResponsePayload
	if !g.decode(c, raw, &p) {
		return
	}
	p.TeamID = c.teamID
	p.RespondingActorID = c.userID

	g.registry.SeedBuffer(c.teamID, p.Code)
	if p.RequestingActorID != "" {
		g.broadcaster.ToUser(p.RequestingActorID, Message{Type: MsgSyncResponse, Payload: p})
	}
}

func (g *Gateway) decode(c *client, raw json.RawMessage, payload interface{}) bool {
	if err := json.Unmarshal(raw, payload); err != nil {
		g.rejectWith(c, "malformed payload")
		return false
	}
	if err := g.validate.Struct(payload); err != nil {
		g.rejectWith(c, "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (g *Gateway) rejectWith(c *client, reason string) {
	g.broadcaster.ToUser(c.userID, Message{Type: MsgError, Payload: ErrorPayload{Reason: reason}})
}

func (g *Gateway) authorize(r *http.Request) bool {
	if g.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == g.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == g.authToken
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(g.allowedOrigins) > 0 {
		if g.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return g.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}
	if host == "localhost" || strings.HasPrefix(host, "localhost:") {
		return true
	}
	if host == "127.0.0.1" || strings.HasPrefix(host, "127.0.0.1:") {
		return true
	}
	return false
}
