package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"careerlink/auth"
	"careerlink/contract"
	"careerlink/domain"
	"careerlink/domain/event"
	apperrors "careerlink/errors"
	"careerlink/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxInboundFrameBytes = 64 * 1024

// errorEvent reports a rejected inbound event back to its sender.
type errorEvent ErrorPayload

func (errorEvent) Event() string { return "error" }

// Gateway terminates websocket connections and bridges them to the realtime
// core. One connection runs two goroutines: the handler's read loop, which
// dispatches inbound events sequentially (the per-session actor), and a
// write pump draining the connection sink. The multiplexer flushes queued
// history in OnConnect before the read loop starts, so a reconnecting
// client always observes its backlog first.
type Gateway struct {
	log           *slog.Logger
	identity      auth.Identity
	registry      contract.IPresenceRegistry
	mux           contract.IMultiplexer
	delivery      services.IDeliveryService
	notifications services.INotificationService
	upgrader      websocket.Upgrader

	connectionBufferSize int
	deliveryTimeout      time.Duration
	pongWait             time.Duration
	pingInterval         time.Duration
}

func NewGateway(
	log *slog.Logger,
	identity auth.Identity,
	registry contract.IPresenceRegistry,
	mux contract.IMultiplexer,
	delivery services.IDeliveryService,
	notifications services.INotificationService,
	connectionBufferSize int,
	deliveryTimeout, pongWait time.Duration,
) *Gateway {
	return &Gateway{
		log:           log,
		identity:      identity,
		registry:      registry,
		mux:           mux,
		delivery:      delivery,
		notifications: notifications,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin filtering belongs to the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connectionBufferSize: connectionBufferSize,
		deliveryTimeout:      deliveryTimeout,
		pongWait:             pongWait,
		pingInterval:         pongWait * 9 / 10,
	}
}

// Router mounts the realtime endpoint next to the operational ones.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", g.handleWS)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := g.identity.UserIDFromToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	ctx := r.Context()
	sink := NewSink(g.log, g.connectionBufferSize, g.deliveryTimeout)
	go g.writePump(conn, sink, userID)

	// Register and flush the offline backlog before reading anything new.
	if err := g.mux.OnConnect(ctx, userID, sink); err != nil {
		g.log.Error("Connect failed", "user_id", userID, "error", err)
	}

	g.readLoop(ctx, conn, sink, userID)

	sink.Close()
	// Only tear presence down if this sink is still the active one; a
	// replacement connection must not be marked offline by its predecessor.
	if current, ok := g.registry.Sink(userID); !ok || current == contract.ConnectionSink(sink) {
		g.mux.OnDisconnect(ctx, userID)
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, sink *Sink, userID string) {
	conn.SetReadLimit(maxInboundFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(g.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("Connection dropped", "user_id", userID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.pongWait))

		if session, changed := g.registry.Touch(userID); changed {
			g.mux.BroadcastPresence(ctx, session)
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			g.pushError(ctx, sink, "", apperrors.NewValidation("malformed envelope: %v", err))
			continue
		}
		g.dispatch(ctx, sink, userID, envelope)
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, sink *Sink, userID string) {
	ticker := time.NewTicker(g.pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-sink.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.deliveryTimeout)); err != nil {
				return
			}
		case evt := <-sink.Events():
			envelope, err := Encode(evt)
			if err != nil {
				g.log.Error("Failed to encode outbound event",
					"user_id", userID, "event", evt.Event(), "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(g.deliveryTimeout))
			if err := conn.WriteJSON(envelope); err != nil {
				g.log.Warn("Write failed, closing connection", "user_id", userID, "error", err)
				return
			}
		}
	}
}

// dispatch routes one inbound event. Inbound traffic for a connection is
// processed sequentially right here, which is what keeps one session free
// of internal races.
func (g *Gateway) dispatch(ctx context.Context, sink *Sink, userID string, envelope Envelope) {
	switch envelope.Event {
	case EvtSendMessage:
		g.handleSendMessage(ctx, sink, userID, envelope)
	case EvtTypingStart, EvtTypingStop:
		g.handleTyping(ctx, userID, envelope)
	case EvtConversationRead:
		g.handleConversationRead(ctx, sink, userID, envelope)
	case EvtJoinConversation, EvtListMessages:
		g.handleListMessages(ctx, sink, userID, envelope)
	case EvtGetNotifications:
		g.handleGetNotifications(ctx, sink, userID)
	case EvtMarkNotificationRead:
		g.handleNotificationAction(ctx, sink, userID, envelope, func(cmd domain.NotificationActionCommand) error {
			_, err := g.notifications.MarkAsRead(ctx, cmd)
			return err
		})
	case EvtMarkAllRead:
		if _, err := g.notifications.MarkAllRead(ctx, userID); err != nil {
			g.pushError(ctx, sink, envelope.Event, err)
		}
	case EvtDeleteNotification:
		g.handleNotificationAction(ctx, sink, userID, envelope, func(cmd domain.NotificationActionCommand) error {
			return g.notifications.Delete(ctx, cmd)
		})
	default:
		g.pushError(ctx, sink, envelope.Event,
			apperrors.NewValidation("unknown event %q", envelope.Event))
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, sink *Sink, userID string, envelope Envelope) {
	var payload sendMessagePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("malformed payload: %v", err))
		return
	}

	cmd := domain.SendMessageCommand{
		SenderID:    userID,
		RecipientID: payload.RecipientID,
		Content:     payload.Content,
		Type:        domain.MessageType(payload.Type),
		CreatedAt:   time.Now().UTC(),
	}
	if cmd.Type == "" {
		cmd.Type = domain.MessageText
	}
	if payload.ConversationID != "" {
		convID, err := uuid.Parse(payload.ConversationID)
		if err != nil {
			g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("invalid conversationId"))
			return
		}
		cmd.ConversationID = convID
	}

	msg, err := g.delivery.Send(ctx, cmd)
	if err != nil {
		g.pushError(ctx, sink, envelope.Event, err)
		return
	}
	// Echo to the sender so their thread view appends the authoritative
	// message (ID, timestamp, delivery status) without a refetch.
	g.mux.PushToUser(ctx, userID, event.NewMessage{Message: msg})
}

func (g *Gateway) handleTyping(ctx context.Context, userID string, envelope Envelope) {
	var payload conversationPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return // fire and forget, drop silently
	}
	convID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return
	}
	err = g.delivery.Typing(ctx, domain.TypingCommand{
		UserID:         userID,
		ConversationID: convID,
		Stopped:        envelope.Event == EvtTypingStop,
	})
	if err != nil {
		g.log.Debug("Typing indicator dropped", "user_id", userID, "error", err)
	}
}

func (g *Gateway) handleConversationRead(ctx context.Context, sink *Sink, userID string, envelope Envelope) {
	var payload conversationPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("malformed payload: %v", err))
		return
	}
	convID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("invalid conversationId"))
		return
	}
	if _, err := g.delivery.MarkConversationRead(ctx, domain.ConversationReadCommand{
		UserID:         userID,
		ConversationID: convID,
	}); err != nil {
		g.pushError(ctx, sink, envelope.Event, err)
	}
}

func (g *Gateway) handleListMessages(ctx context.Context, sink *Sink, userID string, envelope Envelope) {
	var payload listMessagesPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("malformed payload: %v", err))
		return
	}
	convID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("invalid conversationId"))
		return
	}
	messages, cursor, err := g.delivery.ListMessages(ctx, domain.ListMessagesCommand{
		UserID:         userID,
		ConversationID: convID,
		Cursor:         payload.Cursor,
	})
	if err != nil {
		g.pushError(ctx, sink, envelope.Event, err)
		return
	}
	g.push(ctx, sink, userID, event.MessagesLoaded{
		ConversationID: convID,
		Messages:       messages,
		Cursor:         cursor,
	})
}

func (g *Gateway) handleGetNotifications(ctx context.Context, sink *Sink, userID string) {
	notifications, unread, err := g.notifications.List(ctx, userID)
	if err != nil {
		g.pushError(ctx, sink, EvtGetNotifications, err)
		return
	}
	g.push(ctx, sink, userID, event.NotificationsLoaded{
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

func (g *Gateway) handleNotificationAction(
	ctx context.Context, sink *Sink, userID string, envelope Envelope,
	action func(domain.NotificationActionCommand) error,
) {
	var payload notificationPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("malformed payload: %v", err))
		return
	}
	notifID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		g.pushError(ctx, sink, envelope.Event, apperrors.NewValidation("invalid notificationId"))
		return
	}
	if err := action(domain.NotificationActionCommand{
		UserID:         userID,
		NotificationID: notifID,
	}); err != nil {
		g.pushError(ctx, sink, envelope.Event, err)
	}
}

func (g *Gateway) push(ctx context.Context, sink *Sink, userID string, evt event.DomainEvent) {
	if err := sink.Consume(ctx, evt); err != nil {
		g.log.Warn("Failed to push reply", "user_id", userID, "event", evt.Event(), "error", err)
	}
}

func (g *Gateway) pushError(ctx context.Context, sink *Sink, inboundEvent string, err error) {
	kind := "internal"
	switch {
	case apperrors.IsValidation(err):
		kind = "validation"
	case apperrors.IsAuthorization(err):
		kind = "authorization"
	case apperrors.IsPersistence(err):
		kind = "persistence"
	}
	g.log.Debug(fmt.Sprintf("Rejected inbound event %q", inboundEvent), "kind", kind, "error", err)
	pushErr := sink.Consume(ctx, errorEvent{Source: inboundEvent, Reason: err.Error(), Kind: kind})
	if pushErr != nil {
		g.log.Warn("Failed to push error payload", "error", pushErr)
	}
}
