// Package websocket carries the Polymarket CLOB market and user data feeds.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second

	// The feed uses bare text frames for keep-alive, not ws control frames.
	PingText = "PING"
	PongText = "PONG"
)

type Client struct {
	conn *websocket.Conn
}

type Auth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Subscription is the frame sent to change the set of subscribed assets.
// Type is "market" to subscribe, "unsubscribe" to drop, "user" for the
// authenticated fill stream.
type Subscription struct {
	Auth      *Auth    `json:"auth,omitempty"`
	AssetsIDs []string `json:"assets_ids"`
	Markets   []string `json:"markets,omitempty"`
	Type      string   `json:"type"`
}

// Dial opens a connection to the given feed URL.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("couldn't dial %s: %w", url, err)
	}
	_ = resp

	return &Client{conn: conn}, nil
}

func (c *Client) writeJSON(ctx context.Context, v any) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

// Subscribe adds the given assets to the market channel.
func (c *Client) Subscribe(ctx context.Context, tokenIDs []string) error {
	return c.writeJSON(ctx, Subscription{AssetsIDs: tokenIDs, Type: "market"})
}

// Unsubscribe removes the given assets from the market channel.
func (c *Client) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	return c.writeJSON(ctx, Subscription{AssetsIDs: tokenIDs, Type: "unsubscribe"})
}

// SubscribeUser opens the authenticated user channel carrying order fills.
func (c *Client) SubscribeUser(ctx context.Context, auth Auth, markets []string) error {
	return c.writeJSON(ctx, Subscription{Auth: &auth, Markets: markets, Type: "user"})
}

// Ping sends the keep-alive text frame.
func (c *Client) Ping(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, []byte(PingText))
}

type result struct {
	RawMessage []byte
	Error      error
}

// ReadMessage returns the next raw frame. It unblocks with an error when ctx
// is cancelled. Decoding is left to Parse so a malformed frame does not get
// conflated with a transport failure.
func (c *Client) ReadMessage(ctx context.Context) ([]byte, error) {
	resultCh := make(chan result, 1)

	go func() {
		_, msg, err := c.conn.ReadMessage()
		resultCh <- result{
			RawMessage: msg,
			Error:      err,
		}
	}()

	select {
	case <-ctx.Done():
		// Poke the blocked reader loose.
		c.conn.SetReadDeadline(time.Now())
		return nil, fmt.Errorf("reading message: %w", ctx.Err())
	case result := <-resultCh:
		if result.Error != nil {
			return nil, fmt.Errorf("couldn't read message: %w", result.Error)
		}
		return result.RawMessage, nil
	}
}

func (c *Client) Close(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCloseTimeout)
	}

	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)

	return c.conn.Close()
}
