package server

import (
	"net/http"

	"stock-chatbot/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets owns the client set. It exits when the server stops.
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.stateMutex.Lock()
			s.clients[client] = struct{}{}
			s.stateMutex.Unlock()

		case client := <-s.unregister:
			s.drop(client)

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestPush = message.Timestamp
			s.stateMutex.Unlock()

			for client := range s.snapshotClients() {
				if client.userID != message.UserID {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow consumer
					s.drop(client)
				}
			}

		case <-s.done:
			for client := range s.snapshotClients() {
				s.drop(client)
			}
			return
		}
	}
}

func (s *APIServer) snapshotClients() map[*Client]struct{} {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	out := make(map[*Client]struct{}, len(s.clients))
	for c := range s.clients {
		out[c] = struct{}{}
	}
	return out
}

func (s *APIServer) drop(client *Client) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// -----------------------------------------------------------------------------
// Publisher
// -----------------------------------------------------------------------------

// Publish queues a delivery for the user's clients. A full queue drops it.
func (s *APIServer) Publish(d models.MDelivery) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.broadcast <- d:
	default:
		s.Logger.Warning("Websocket queue full, dropping delivery for %d", d.UserID)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	userID, err := parseUserID(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:    s,
		conn:   conn,
		userID: userID,
		send:   make(chan models.MDelivery, 64),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
