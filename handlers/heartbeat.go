// handlers/heartbeat.go
package handlers

import (
	"encoding/json"

	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/session"
)

// HeartbeatHandler keeps a session off the idle sweep's list.
type HeartbeatHandler struct{}

func NewHeartbeatHandler() *HeartbeatHandler {
	return &HeartbeatHandler{}
}

func (h *HeartbeatHandler) MessageType() string {
	return network.MsgTypeHeartbeat
}

func (h *HeartbeatHandler) Handle(payload json.RawMessage, sess *session.Session) error {
	sess.Touch()
	return nil
}
