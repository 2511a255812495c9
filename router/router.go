// router/router.go
package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/monitor"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/session"
)

// Handler is the unit of logic bound to one inbound message type. A nil
// return means success; a domain error (anything exposing Kind) is reported
// back to the sender as an error reply.
type Handler interface {
	MessageType() string
	Handle(payload json.RawMessage, sess *session.Session) error
}

// domainError is satisfied by handler errors that are safe to echo to the
// client verbatim.
type domainError interface {
	error
	Kind() string
}

// Router decodes inbound envelopes and dispatches them to the handler
// registered for their message type. It is the single place domain errors are
// turned into error replies; nothing a handler does can crash the server.
type Router struct {
	handlers map[string]Handler
	metrics  *monitor.Monitor
}

func New(metrics *monitor.Monitor) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		metrics:  metrics,
	}
}

// Register binds a handler to its message type. Two handlers for the same
// type is a configuration error, caught at startup rather than at message
// time.
func (r *Router) Register(h Handler) error {
	msgType := h.MessageType()
	if _, exists := r.handlers[msgType]; exists {
		return fmt.Errorf("handler already registered for message type %s", msgType)
	}
	r.handlers[msgType] = h
	return nil
}

// Dispatch handles one raw inbound message from sess: decode, route, reply.
// Malformed or unroutable messages are dropped silently, logged and counted;
// the sender gets no reply for them.
func (r *Router) Dispatch(raw []byte, sess *session.Session) {
	start := time.Now()
	r.metrics.IncMessagesReceived()

	var env network.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Log.Debugf("Dropping undecodable message from session %s: %v", sess.GetID(), err)
		r.metrics.IncMessagesDropped()
		return
	}

	if env.MessageType == "" || emptyPayload(env.Payload) {
		logger.Log.Debugf("Dropping message with incomplete envelope from session %s", sess.GetID())
		r.metrics.IncMessagesDropped()
		return
	}

	handler, exists := r.handlers[env.MessageType]
	if !exists {
		logger.Log.Infof("No handler registered for message type %s", env.MessageType)
		r.metrics.IncMessagesDropped()
		return
	}

	err := r.invoke(handler, env.Payload, sess)
	r.metrics.ObserveMessageLatency(time.Since(start))

	if err == nil {
		r.reply(sess, network.MsgTypeSuccess, network.SuccessPayload{
			Message: "handled message of type " + env.MessageType,
		})
		return
	}

	var derr domainError
	if errors.As(err, &derr) {
		logger.Log.Infof("Handler for %s rejected message from session %s: %v", env.MessageType, sess.GetID(), derr)
		r.metrics.IncHandlerErrors(derr.Kind())
		r.reply(sess, network.MsgTypeError, network.ErrorPayload{Error: derr.Error()})
		return
	}

	logger.Log.Errorf("Internal error handling %s from session %s: %v", env.MessageType, sess.GetID(), err)
	r.metrics.IncHandlerErrors("internal")
	r.reply(sess, network.MsgTypeError, network.ErrorPayload{
		Error: "internal error handling message of type " + env.MessageType,
	})
}

// invoke calls the handler, converting a panic into an error so one bad
// message never takes down other connections or rooms.
func (r *Router) invoke(handler Handler, payload json.RawMessage, sess *session.Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler.Handle(payload, sess)
}

// reply goes to the originating session only, never to other room members.
func (r *Router) reply(sess *session.Session, msgType string, payload any) {
	if err := sess.SendMessage(msgType, payload); err != nil {
		logger.Log.Warnf("Failed to send %s reply to session %s: %v", msgType, sess.GetID(), err)
	}
}

func emptyPayload(payload json.RawMessage) bool {
	return len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null"))
}
