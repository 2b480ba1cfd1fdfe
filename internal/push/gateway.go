package push

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/infrastructure"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway fans live trade snapshots out to websocket clients. Each client
// subscribes to (strategy, symbol) pairs; the gateway holds one JetStream
// subscription per subject and drops it when the last client leaves.
type Gateway struct {
	logger        *zap.Logger
	js            nats.JetStreamContext
	clients       map[*client]bool
	subscriptions map[string]map[*client]bool
	natsSubs      map[string]*nats.Subscription
	mu            sync.RWMutex
}

func NewGateway(js nats.JetStreamContext, logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:        logger,
		js:            js,
		clients:       make(map[*client]bool),
		subscriptions: make(map[string]map[*client]bool),
		natsSubs:      make(map[string]*nats.Subscription),
	}
}

// subscribeRequest is the client-to-gateway protocol. A wildcard in either
// field follows NATS subject syntax.
type subscribeRequest struct {
	Action   string `json:"action"` // "subscribe", "unsubscribe"
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
}

func (r subscribeRequest) subject() string {
	return fmt.Sprintf("trade.snapshot.%s.%s", r.Strategy, r.Symbol)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[c] = true
	g.mu.Unlock()
	infrastructure.WSConnections.Inc()

	go g.writePump(c)
	g.readPump(c)
}

func (g *Gateway) readPump(c *client) {
	defer func() {
		g.mu.Lock()
		delete(g.clients, c)
		for subject, clients := range g.subscriptions {
			delete(clients, c)
			if len(clients) == 0 {
				g.dropSubjectLocked(subject)
			}
		}
		g.mu.Unlock()
		infrastructure.WSConnections.Dec()
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req subscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		subject := req.subject()

		g.mu.Lock()
		switch req.Action {
		case "subscribe":
			if g.subscriptions[subject] == nil {
				g.subscriptions[subject] = make(map[*client]bool)
				if err := g.subscribeToNATS(subject); err != nil {
					g.logger.Error("failed to subscribe to NATS", zap.String("subject", subject), zap.Error(err))
				}
			}
			g.subscriptions[subject][c] = true
			g.logger.Info("client subscribed", zap.String("subject", subject))
		case "unsubscribe":
			if clients, ok := g.subscriptions[subject]; ok {
				delete(clients, c)
				if len(clients) == 0 {
					g.dropSubjectLocked(subject)
				}
			}
		}
		g.mu.Unlock()
	}
}

func (g *Gateway) dropSubjectLocked(subject string) {
	if sub, ok := g.natsSubs[subject]; ok {
		sub.Unsubscribe()
		delete(g.natsSubs, subject)
		g.logger.Info("dropped NATS subscription, no clients left", zap.String("subject", subject))
	}
	delete(g.subscriptions, subject)
}

func (g *Gateway) writePump(c *client) {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (g *Gateway) subscribeToNATS(subject string) error {
	sub, err := g.js.Subscribe(subject, func(msg *nats.Msg) {
		g.mu.RLock()
		clients := g.subscriptions[subject]
		if clients == nil {
			g.mu.RUnlock()
			return
		}

		for c := range clients {
			select {
			case c.send <- msg.Data:
			default:
				// Slow clients lose snapshots rather than stall the bus.
			}
		}
		g.mu.RUnlock()
		msg.Ack()
	}, nats.ManualAck())

	if err != nil {
		return err
	}

	g.natsSubs[subject] = sub
	return nil
}
