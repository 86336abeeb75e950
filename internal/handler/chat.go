package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const (
	maxDecodeErrorsPerConn = 3
	chatWriteTimeout       = 10 * time.Second
)

var errPeerClosed = errors.New("chat peer closed")

// chatFrame is both the client and the server websocket envelope.
// Clients send join, message and announcement; the server answers with
// joined, message, announcement and error.
type chatFrame struct {
	Type    string             `json:"type"`
	EventID string             `json:"eventId,omitempty"`
	Body    string             `json:"body,omitempty"`
	Message *model.ChatMessage `json:"message,omitempty"`
	Code    string             `json:"code,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// frameConn is the part of *websocket.Conn a peer writes through.
type frameConn interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
	Close() error
}

// chatPeer serializes writes to one connection. A write that fails or
// misses its deadline closes the connection, which ends its read loop.
type chatPeer struct {
	mu      sync.Mutex
	conn    frameConn
	encoder *json.Encoder
	timeout time.Duration
	closed  bool
}

func newChatPeer(conn frameConn, timeout time.Duration) *chatPeer {
	return &chatPeer{conn: conn, encoder: json.NewEncoder(conn), timeout: timeout}
}

func (p *chatPeer) send(f chatFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		p.closeLocked()
		return err
	}
	if err := p.encoder.Encode(f); err != nil {
		p.closeLocked()
		return err
	}
	return nil
}

func (p *chatPeer) closeLocked() {
	p.closed = true
	_ = p.conn.Close()
}

// chatHub fans messages out to the peers joined to each event channel.
type chatHub struct {
	mu    sync.Mutex
	rooms map[string]map[*chatPeer]struct{}
}

func newChatHub() *chatHub {
	return &chatHub{rooms: make(map[string]map[*chatPeer]struct{})}
}

func (h *chatHub) join(eventID string, p *chatPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[*chatPeer]struct{})
		h.rooms[eventID] = room
	}
	room[p] = struct{}{}
}

func (h *chatHub) leave(eventID string, p *chatPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[eventID]
	delete(room, p)
	if len(room) == 0 {
		delete(h.rooms, eventID)
	}
}

func (h *chatHub) broadcast(eventID string, f chatFrame) {
	h.mu.Lock()
	peers := make([]*chatPeer, 0, len(h.rooms[eventID]))
	for p := range h.rooms[eventID] {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.send(f); err != nil {
			h.leave(eventID, p)
		}
	}
}

// ChatHistory handles GET /chat/{eventId}
func (a *API) ChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.Chat.History(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

// RemoveChatMessage handles DELETE /chat/messages/{messageId}
func (a *API) RemoveChatMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.Chat.Remove(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "messageId"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ChatSocket handles GET /chat/ws?eventId=
// The session cookie was already verified by the auth middleware.
func (a *API) ChatSocket(w http.ResponseWriter, r *http.Request) {
	srv := websocket.Server{
		Handshake: a.checkSocketOrigin,
		Handler:   a.serveChat,
	}
	srv.ServeHTTP(w, r)
}

// checkSocketOrigin accepts non-browser clients and the CORS allow-list.
func (a *API) checkSocketOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	for _, o := range a.CORSOrigins {
		if strings.TrimRight(o, "/") == origin {
			return nil
		}
	}
	return errors.New("origin not allowed")
}

func (a *API) serveChat(conn *websocket.Conn) {
	defer conn.Close()
	// Clear the http.Server deadlines left on the hijacked conn; writes get
	// their own per-frame deadline in chatPeer.send.
	_ = conn.SetDeadline(time.Time{})

	ctx := conn.Request().Context()
	actor := actorFrom(ctx)
	peer := newChatPeer(conn, chatWriteTimeout)
	joined := map[string]bool{}
	defer func() {
		for eventID := range joined {
			a.hub.leave(eventID, peer)
		}
	}()

	sendErr := func(err error) {
		code := apperr.CodeOf(err)
		msg := "request failed"
		if ae, ok := apperr.As(err); ok && code != apperr.CodeInternal {
			msg = ae.Message
		}
		_ = peer.send(chatFrame{Type: "error", Code: string(code), Error: msg})
	}

	join := func(eventID string) {
		if _, err := a.Chat.Join(ctx, actor, eventID); err != nil {
			sendErr(err)
			return
		}
		a.hub.join(eventID, peer)
		joined[eventID] = true
		_ = peer.send(chatFrame{Type: "joined", EventID: eventID})
	}

	if eventID := conn.Request().URL.Query().Get("eventId"); eventID != "" {
		join(eventID)
	}

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var f chatFrame
		if err := decoder.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			decodeErrors++
			sendErr(apperr.Invalid("frame", "invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			// A json.Decoder cannot recover from a syntax error.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		switch f.Type {
		case "join":
			join(f.EventID)
		case string(model.ChatMessageKind), string(model.ChatAnnouncement):
			if !joined[f.EventID] {
				sendErr(apperr.New(apperr.CodeInvalidState, "join the event channel first"))
				continue
			}
			msg, err := a.Chat.Post(ctx, actor, f.EventID, model.ChatKind(f.Type), f.Body)
			if err != nil {
				sendErr(err)
				continue
			}
			a.hub.broadcast(msg.EventID, chatFrame{Type: string(msg.Kind), EventID: msg.EventID, Message: msg})
		default:
			sendErr(apperr.Invalid("type", "unsupported frame type"))
		}
	}
}
