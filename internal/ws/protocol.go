package ws

import (
	"encoding/json"

	"github.com/codeclub/liveclass/internal/editor"
	"github.com/codeclub/liveclass/internal/event"
)

type MessageType string

const (
	MsgEdit         MessageType = "edit"
	MsgCursor       MessageType = "cursor"
	MsgLock         MessageType = "lock"
	MsgSyncRequest  MessageType = "sync_request"
	MsgSyncResponse MessageType = "sync_response"
	MsgEditRejected MessageType = "edit_rejected"
	MsgUnlocked     MessageType = "unlocked"
	MsgEvent        MessageType = "event"
	MsgError        MessageType = "error"
)

// Message is an outbound frame.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is an inbound frame; the payload is decoded per message type.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EditPayload carries a single-line change. Identity fields are stamped by
// the gateway from the connection, never trusted from the client.
type EditPayload struct {
	TeamID     int             `json:"teamId"`
	LineNumber int             `json:"lineNumber" validate:"required,min=1"`
	Position   *int            `json:"position,omitempty"`
	Content    string          `json:"content"`
	ChangeKind editor.EditKind `json:"changeKind" validate:"required"`
	ActorID    string          `json:"actorId,omitempty"`
	ActorRole  event.Role      `json:"actorRole,omitempty"`
}

type CursorPayload struct {
	TeamID    int        `json:"teamId"`
	Line      int        `json:"line" validate:"required,min=1"`
	Column    int        `json:"column" validate:"min=0"`
	ActorID   string     `json:"actorId,omitempty"`
	ActorRole event.Role `json:"actorRole,omitempty"`
}

type LockAction string

const (
	ActionLock         LockAction = "LOCK"
	ActionUnlock       LockAction = "UNLOCK"
	ActionLockRejected LockAction = "LOCK_REJECTED"
)

type LockPayload struct {
	TeamID     int        `json:"teamId"`
	LineNumber int        `json:"lineNumber" validate:"required,min=1"`
	Action     LockAction `json:"action" validate:"required,oneof=LOCK UNLOCK"`
	ActorID    string     `json:"actorId,omitempty"`
	ActorRole  event.Role `json:"actorRole,omitempty"`
}

type SyncRequestPayload struct {
	TeamID  int    `json:"teamId"`
	ActorID string `json:"requestingActorId,omitempty"`
}

type SyncResponsePayload struct {
	TeamID            int    `json:"teamId"`
	Code              string `json:"code"`
	RequestingActorID string `json:"requestingActorId,omitempty"`
	RespondingActorID string `json:"respondingActorId,omitempty"`
}

type UnlockedPayload struct {
	TeamID  int    `json:"teamId"`
	Lines   []int  `json:"lines"`
	ActorID string `json:"actorId"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}
