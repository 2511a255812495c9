// network/connection.go
package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Connection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetWriteTimeout(d time.Duration)
	ReadMessage() ([]byte, error)
}

type WSConnection struct {
	conn         *websocket.Conn
	sendMutex    sync.Mutex
	writeTimeout time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// Send writes one JSON text frame. The per-send deadline keeps a stalled
// recipient from blocking whoever is fanning out a broadcast.
func (c *WSConnection) Send(data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *WSConnection) SetWriteTimeout(d time.Duration) {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	c.writeTimeout = d
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
