package gateway

import (
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// sioConn adapts a socket.io client to relay.Conn.
type sioConn struct {
	client *socketio.Socket
	id     string
}

func newConn(client *socketio.Socket) *sioConn {
	return &sioConn{client: client, id: string(client.Id())}
}

func (c *sioConn) ID() string { return c.id }

func (c *sioConn) Emit(event string, payload any) error {
	return c.client.Emit(event, payload)
}

func (c *sioConn) Close() {
	c.client.Disconnect(true)
}
