// Package status broadcasts conversion progress to websocket clients.
package status

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

const (
	pingPeriod   = 30 * time.Second
	writeTimeout = 40 * time.Second
	sendQueue    = 32
)

type Message struct {
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
	Type     int       `json:"type"`
	Progress float32   `json:"progress"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans messages out to every registered client. A client whose queue is
// full misses the update; the next one carries the current state anyway.
type hub struct {
	lock    sync.Mutex
	clients map[*client]struct{}
	last    *Message
	lastRaw []byte
}

var global = &hub{clients: make(map[*client]struct{})}

func (h *hub) add(c *client) []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c] = struct{}{}
	return h.lastRaw
}

// remove closes the client queue once. Safe to call from both pumps.
func (h *hub) remove(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) broadcast(m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Error("[status] marshal failed", zap.Error(err))
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.last, h.lastRaw = m, data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) count() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		global.remove(c)
		c.conn.Close()
	}()
	for {
		var err error
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, msg)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			logger.Debug("[status] client gone", zap.Error(err))
			return
		}
	}
}

// readLoop only exists to notice the peer closing the socket.
func (c *client) readLoop() {
	defer global.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NewClient starts streaming messages to conn. The current state is sent
// first so a page opened mid conversion is not blank.
func NewClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	if last := global.add(c); last != nil {
		c.send <- last
	}
	go c.writeLoop()
	go c.readLoop()
}

// Last returns the most recently broadcast message, nil before the first one.
func Last() *Message {
	global.lock.Lock()
	defer global.lock.Unlock()
	if global.last == nil {
		return nil
	}
	m := *global.last
	return &m
}

func Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	global.broadcast(&Message{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress,
	})
}

func Info(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), INFO, 0)
}

func Error(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), ERROR, 0)
}

func Progress(progress float32, format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}
