// Package live subscribes to the websocket notifications Mango sends when items of a collection
// are added, updated or deleted.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
)

const websocketPath = "/rest/latest/websocket/"

type Handler func(Event)

type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger log.Logger
}

// NewClient creates a client for the live channel of a collection, e.g. "published-points".
func NewClient(cfg config.Config, collection string) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL())
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + websocketPath + strings.Trim(collection, "/")

	return &Client{
		url:    u.String(),
		dialer: websocket.DefaultDialer,
		header: http.Header{},
		logger: cfg.Logger(),
	}, nil
}

// WithToken authenticates the websocket handshake with a Mango bearer token.
func (c *Client) WithToken(token string) *Client {
	c.header.Set("Authorization", "Bearer "+token)
	return c
}

func (c *Client) URL() string {
	return c.url
}

// Subscribe reads notifications until ctx is done or the connection drops, calling handler for each
// one in the order received. It returns nil when ctx ends the subscription.
func (c *Client) Subscribe(ctx context.Context, handler Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return e.NewTransportError("unable to open live channel", err)
	}
	c.logger.Debug("live channel opened", "url", c.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug("live channel closed", "url", c.url)
				return nil
			}
			return e.NewTransportError("live channel dropped", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("ignoring malformed live message", "error", err)
			continue
		}
		if event, ok := f.event(); ok {
			handler(event)
		}
	}
}
