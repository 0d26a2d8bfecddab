package websocket

import "github.com/rs/zerolog/log"

type delivery struct {
	userID  string
	message []byte
}

// Hub maintains the set of active clients and fans out account activity
// to the clients of the account it concerns.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// A map of user IDs to the clients connected for that user.
	subscriptions map[string]map[*Client]bool

	deliveries chan delivery
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		deliveries:    make(chan delivery, 64),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.addSubscription(client)
			log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.UserID).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case d := <-h.deliveries:
			for client := range h.subscriptions[d.userID] {
				select {
				case client.Send <- d.message:
				default:
					// Slow consumer; the write pump exits once Send is closed.
					h.drop(client)
				}
			}
		}
	}
}

// Stop terminates Run and closes every client's Send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// PublishTo queues message for every client connected as userID. It never
// blocks the caller; messages are dropped when the hub is backed up or stopped.
func (h *Hub) PublishTo(userID string, message []byte) {
	select {
	case <-h.done:
	case h.deliveries <- delivery{userID: userID, message: message}:
	default:
		log.Warn().Str("user_id", userID).Msg("Websocket hub backlog full, dropping message")
	}
}

// Add registers client with the hub.
func (h *Hub) Add(client *Client) {
	select {
	case <-h.done:
		close(client.Send)
	case h.register <- client:
	}
}

// Remove unregisters client. Safe to call after Stop.
func (h *Hub) Remove(client *Client) {
	select {
	case <-h.done:
	case h.unregister <- client:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client) {
	if h.subscriptions[client.UserID] == nil {
		h.subscriptions[client.UserID] = make(map[*Client]bool)
	}
	h.subscriptions[client.UserID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	if subs, ok := h.subscriptions[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, client.UserID)
		}
	}
}
