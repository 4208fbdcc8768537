// Package taskcli is the Go client for the taskfuse daemon: JSON-RPC
// 2.0 over a WebSocket connection, with typed method wrappers and a
// dispatcher for server pushes.
package taskcli

import (
	"context"
	"fmt"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
)

// Options configures a connection.
type Options struct {
	// Secret is the daemon's bearer token.
	Secret string
	// UserID scopes the connection; every call and push applies to
	// this user only.
	UserID string
	// HTTPClient overrides the dial client. Optional.
	HTTPClient *http.Client
}

// Client is one authenticated connection to the daemon.
type Client struct {
	conn *cws.Conn
	rpc  *jrpc2.Client
	d    *Dispatcher
}

// wsChannel adapts the WebSocket connection to the jrpc2 Channel
// interface.
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

var _ channel.Channel = (*wsChannel)(nil)

// Dial connects to the daemon's WebSocket RPC endpoint, e.g.
// "ws://127.0.0.1:7419/rpc/ws".
func Dial(ctx context.Context, url string, opts *Options) (*Client, error) {
	if opts == nil || opts.Secret == "" || opts.UserID == "" {
		return nil, fmt.Errorf("taskcli: secret and user id are required")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.Secret)
	header.Set("X-Taskfuse-User", opts.UserID)

	conn, _, err := cws.Dial(ctx, url, &cws.DialOptions{
		HTTPHeader: header,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("taskcli: dial %s: %w", url, err)
	}

	d := NewDispatcher()
	c := &Client{conn: conn, d: d}
	c.rpc = jrpc2.NewClient(
		&wsChannel{conn: conn, ctx: context.Background()},
		&jrpc2.ClientOptions{OnNotify: d.dispatch},
	)
	return c, nil
}

// Dispatcher returns the push-notification dispatcher for handler
// registration.
func (c *Client) Dispatcher() *Dispatcher { return c.d }

// Close shuts down the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// call invokes a method and decodes the result into out (which may be
// nil to discard).
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	rsp, err := c.rpc.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return rsp.UnmarshalResult(out)
}
