package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// Envelope types.
const (
	TypeHello  = "hello"  // server → client, once, names the seat
	TypeAck    = "ack"    // client → server, answers hello
	TypeCall   = "call"   // client → server
	TypeResult = "result" // server → client, answers one call
	TypeNotice = "notice" // server → client, informational
)

// HelloMessage tells a client which seat it plays.
type HelloMessage struct {
	Match  string       `json:"match,omitempty"`
	Team   model.Team   `json:"team"`
	Planet model.Planet `json:"planet"`
}

type AckMessage struct {
	Status string `json:"status"`
}

// NoticeMessage is a free-form server event, e.g. a round starting.
type NoticeMessage struct {
	Round int    `json:"round"`
	Text  string `json:"text"`
}

type CallMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type ResultMessage struct {
	ID    uint64          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorInfo      `json:"error,omitempty"`
}

// Error kinds carried in ErrorInfo.
const (
	ErrKindRejected    = "rejected"
	ErrKindUnknownUnit = "unknown_unit"
	ErrKindGameOver    = "game_over"
	ErrKindOther       = "error"
)

// ErrorInfo is an error sent across the wire. Rejections keep their action
// and unit so the client can rebuild a *host.RejectedError.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Action  string `json:"action,omitempty"`
	Unit    int    `json:"unit,omitempty"`
	Message string `json:"message"`
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var re *host.RejectedError
	switch {
	case errors.As(err, &re):
		return &ErrorInfo{Kind: ErrKindRejected, Action: re.Action, Unit: re.Unit, Message: re.Reason}
	case errors.Is(err, host.ErrUnknownUnit):
		return &ErrorInfo{Kind: ErrKindUnknownUnit, Message: err.Error()}
	case errors.Is(err, host.ErrGameOver):
		return &ErrorInfo{Kind: ErrKindGameOver, Message: err.Error()}
	}
	return &ErrorInfo{Kind: ErrKindOther, Message: err.Error()}
}

// Err converts the wire form back into an error the host package knows.
func (e *ErrorInfo) Err() error {
	switch e.Kind {
	case ErrKindRejected:
		return &host.RejectedError{Action: e.Action, Unit: e.Unit, Reason: e.Message}
	case ErrKindUnknownUnit:
		return fmt.Errorf("%s: %w", e.Message, host.ErrUnknownUnit)
	case ErrKindGameOver:
		return host.ErrGameOver
	}
	return errors.New(e.Message)
}
