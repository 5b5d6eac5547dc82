package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Типы сообщений, которые движок рассылает подписчикам мероприятия.
const (
	MessageStateChanged   = "STATE_CHANGED"
	MessageVoteRecorded   = "VOTE_RECORDED"
	MessageResultsUpdated = "RESULTS_UPDATED"
)

// Message — конверт для всех push-уведомлений. Доставка at-least-once:
// подписчики обязаны быть идемпотентными (перечитать текущее состояние
// достаточно).
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	EventSlug string      `json:"event_slug,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	ID        string
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	EventSlug string
	IsClosed  bool
	Mu        sync.Mutex
}

// Hub держит комнаты подписчиков, по одной на слаг мероприятия.
// Подписчики — только читатели; входящие сообщения игнорируются.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, eventSlug string) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256), // Буферизированный канал
		EventSlug: eventSlug,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.EventSlug]; !ok {
				h.rooms[client.EventSlug] = make(map[*Client]bool)
			}
			h.rooms[client.EventSlug][client] = true
			log.Printf("Client %s registered to event %s. Total clients: %d", client.ID, client.EventSlug, len(h.rooms[client.EventSlug]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.EventSlug]; ok {
				if _, okClient := roomClients[client]; okClient {
					client.Mu.Lock()
					if !client.IsClosed {
						close(client.Send)
						client.IsClosed = true
					}
					client.Mu.Unlock()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.EventSlug)
						log.Printf("Event room %s closed as it's empty.", client.EventSlug)
					} else {
						log.Printf("Client %s unregistered from event %s. Total clients: %d", client.ID, client.EventSlug, len(roomClients))
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// SubscriberCount возвращает число подключённых клиентов мероприятия.
func (h *Hub) SubscriberCount(eventSlug string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventSlug])
}

// BroadcastToEvent отправляет сообщение всем подписчикам мероприятия.
// Медленные клиенты (полный канал) пропускаются, не блокируя остальных.
func (h *Hub) BroadcastToEvent(eventSlug string, msgType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[eventSlug]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(Message{
		Type:      msgType,
		Payload:   payload,
		EventSlug: eventSlug,
	})
	if err != nil {
		log.Printf("Error marshalling %s message for event %s: %v", msgType, eventSlug, err)
		return
	}

	for client := range roomClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("Client %s send channel full for event %s. Skipping.", client.ID, eventSlug)
		}
		client.Mu.Unlock()
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		// Подписчики ничего не присылают; читаем только ради pong/close.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Client %s read error for event %s: %v", c.ID, c.EventSlug, err)
			}
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Сливаем накопившиеся сообщения в тот же фрейм.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
