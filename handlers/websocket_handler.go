package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Sayat07/hacklive-system/realtime"
	"github.com/Sayat07/hacklive-system/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub              *realtime.Hub
	broadcastService services.BroadcastService
}

func NewWebSocketHandler(hub *realtime.Hub, bs services.BroadcastService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:              hub,
		broadcastService: bs,
	}
}

// ServeWs обрабатывает WebSocket подключения зрителей мероприятия.
// Клиент подключается к /ws/events/{slug} и только читает push-сообщения.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, "Missing event slug", http.StatusBadRequest)
		return
	}

	// Снимаем текущее состояние до апгрейда, чтобы вернуть обычный 404,
	// если мероприятие не существует.
	state, err := h.broadcastService.GetState(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for event %s: %v", slug, err)
		return
	}

	client := realtime.NewClient(h.hub, conn, slug)
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Новый подписчик сразу получает актуальное состояние, дальше живёт
	// на push-сообщениях.
	snapshot, err := json.Marshal(realtime.Message{
		Type:      realtime.MessageStateChanged,
		Payload:   state,
		EventSlug: slug,
	})
	if err == nil {
		client.Send <- snapshot
	}
}
