package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"probloom-client/internal/app"
	"probloom-client/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler bridges browser views to the store: every state change is pushed
// to the socket, and inbound intents are run through the problem service.
type WSHandler struct {
	service  *app.ProblemService
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[chan peerPayload]struct{}
}

func NewWSHandler(service *app.ProblemService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		peers:   make(map[chan peerPayload]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

var (
	errUnsupportedIntent = errors.New("unsupported message type")
	errInvalidPayload    = errors.New("invalid payload")
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type idPayload struct {
	ID int `json:"id"`
}

// draftPayload carries the target id of an edit alongside the new field values.
type draftPayload[T any] struct {
	ID    int `json:"id"`
	Draft T   `json:"draft"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type ackPayload struct {
	Intent string `json:"intent"`
}

type peerPayload struct {
	Instance string       `json:"instance"`
	Snapshot app.Snapshot `json:"snapshot"`
}

// PeerSnapshot forwards a snapshot published by another instance to every
// connected view. Views that are behind miss it.
func (h *WSHandler) PeerSnapshot(instance string, snap app.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.peers {
		select {
		case ch <- peerPayload{Instance: instance, Snapshot: snap}:
		default:
		}
	}
}

func (h *WSHandler) watchPeers() (<-chan peerPayload, func()) {
	ch := make(chan peerPayload, 4)
	h.mu.Lock()
	h.peers[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.peers, ch)
		h.mu.Unlock()
	}
}

// ServeWS upgrades the request and serves one view session until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Store().Subscribe()
	defer cancel()
	peers, stopPeers := h.watchPeers()
	defer stopPeers()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case peer := <-peers:
				select {
				case send <- outboundMessage[any]{Type: "peer", Payload: peer}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply := outboundMessage[any]{Type: "ack", Payload: ackPayload{Intent: inbound.Type}}
		if err := h.handleIntent(r.Context(), inbound); err != nil {
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	// the writer may have exited on a write error; drain so nothing blocks on send
	go func() {
		for range send {
		}
	}()
	close(send)
	<-writerDone
}

func (h *WSHandler) handleIntent(ctx context.Context, msg inboundMessage) error {
	switch msg.Type {
	case "loadProblemSets":
		return h.service.LoadProblemSets(ctx)
	case "undo":
		h.service.Store().Undo()
		return nil
	case "createProblemSet":
		var draft domain.ProblemSetDraft
		if err := decodePayload(msg.Payload, &draft); err != nil {
			return err
		}
		_, err := h.service.CreateProblemSet(ctx, draft)
		return err
	case "editProblemSet":
		var payload draftPayload[domain.ProblemSetDraft]
		if err := decodePayload(msg.Payload, &payload); err != nil || payload.ID <= 0 {
			return errInvalidPayload
		}
		_, err := h.service.EditProblemSet(ctx, payload.ID, payload.Draft)
		return err
	case "createProblem":
		var draft domain.ProblemDraft
		if err := decodePayload(msg.Payload, &draft); err != nil {
			return err
		}
		_, err := h.service.CreateProblem(ctx, draft)
		return err
	case "updateProblem":
		var payload draftPayload[domain.ProblemDraft]
		if err := decodePayload(msg.Payload, &payload); err != nil || payload.ID <= 0 {
			return errInvalidPayload
		}
		_, err := h.service.UpdateProblem(ctx, payload.ID, payload.Draft)
		return err
	case "openProblemSet", "loadProblemSet", "loadSolvers", "loadProblem", "deleteProblemSet", "deleteProblem":
	default:
		return errUnsupportedIntent
	}

	var payload idPayload
	if err := decodePayload(msg.Payload, &payload); err != nil || payload.ID <= 0 {
		return errInvalidPayload
	}
	switch msg.Type {
	case "openProblemSet":
		return h.service.OpenProblemSet(ctx, payload.ID)
	case "loadProblemSet":
		return h.service.LoadProblemSet(ctx, payload.ID)
	case "loadSolvers":
		return h.service.LoadSolvers(ctx, payload.ID)
	case "loadProblem":
		return h.service.LoadProblem(ctx, payload.ID)
	case "deleteProblemSet":
		return h.service.DeleteProblemSet(ctx, payload.ID)
	default:
		return h.service.DeleteProblem(ctx, payload.ID)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errInvalidPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidPayload
	}
	return nil
}
