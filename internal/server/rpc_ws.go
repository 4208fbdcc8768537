package server

import (
	"context"

	cws "github.com/coder/websocket"
)

// wsChannel bridges a coder/websocket connection to the jrpc2 Channel
// interface. One channel per connection; the context bounds every
// read/write so a dying connection unblocks the jrpc2 server loop.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
