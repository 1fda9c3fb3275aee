// Package natsclient provides a managed NATS connection for EnvMon
// components: core publish/subscribe/request plus JetStream stream helpers.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/envmon/errors"
)

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
)

// Client manages a NATS connection and its JetStream context.
type Client struct {
	url    string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	consumers   map[string]jetstream.ConsumeContext
	consumersMu sync.Mutex

	// Connection options
	clientName    string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		clientName:    "envmon",
		maxReconnects: -1, // infinite by default
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		consumers:     make(map[string]jetstream.ConsumeContext),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	return c, nil
}

// URL returns the configured server URL
func (c *Client) URL() string {
	return c.url
}

// Connect establishes the NATS connection and JetStream context.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", fmt.Sprintf("connect to %s", c.url))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return errors.WrapTransient(err, "Client", "Connect", "create JetStream context")
	}

	c.conn = conn
	c.js = js
	c.closed = false

	c.logger.Debug("Connected to NATS", "url", c.url)

	// ctx reserved for future handshake timeouts; nats.Connect blocks on its own timeout.
	_ = ctx
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains subscriptions, stops consumers, and closes the connection.
// Safe to call more than once.
func (c *Client) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.consumersMu.Lock()
	for _, cc := range c.consumers {
		cc.Stop()
	}
	c.consumers = make(map[string]jetstream.ConsumeContext)
	c.consumersMu.Unlock()

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
		c.conn = nil
		c.js = nil
	}

	return nil
}

// Publish publishes a message to a NATS core subject
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	return conn.Publish(subject, data)
}

// Request performs a core NATS request/reply with the given timeout.
func (c *Client) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Request", fmt.Sprintf("request on %s", subject))
	}
	return msg.Data, nil
}

// Subscribe subscribes to a NATS core subject. Each message handler receives
// a context derived from the parent with a 30-second processing timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
	if err != nil {
		return err
	}

	c.subs = append(c.subs, sub)
	return nil
}

// SubscribeReply subscribes to a request subject; the handler's return value
// is sent back as the reply.
func (c *Client) SubscribeReply(ctx context.Context, subject string, handler func(context.Context, []byte) []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		reply := handler(msgCtx, msg.Data)
		if msg.Reply != "" {
			if err := msg.Respond(reply); err != nil {
				c.logger.Warn("Failed to send reply", "subject", subject, "error", err)
			}
		}
	})
	if err != nil {
		return err
	}

	c.subs = append(c.subs, sub)
	return nil
}

// EnsureStream creates or updates a JetStream stream
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return nil, ErrNotConnected
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureStream",
			fmt.Sprintf("create stream %s", cfg.Name))
	}
	return stream, nil
}

// PublishToStream publishes to a JetStream subject with at-least-once
// delivery (the publish is acknowledged by the server).
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return ErrNotConnected
	}

	if _, err := js.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "PublishToStream",
			fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// ConsumeStream creates a durable consumer on a stream and invokes the
// handler for each message. Messages are acknowledged after the handler
// returns; validation rejections are permanent, so they are acked too.
func (c *Client) ConsumeStream(ctx context.Context, streamName, subject, durable string, handler func([]byte)) error {
	c.mu.RLock()
	js := c.js
	closed := c.closed
	c.mu.RUnlock()

	if js == nil {
		return ErrNotConnected
	}
	if closed {
		return errors.WrapInvalid(fmt.Errorf("client is closed"),
			"Client", "ConsumeStream", "check client state")
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, consumerCfg)
	if err != nil {
		return errors.WrapTransient(err, "Client", "ConsumeStream",
			fmt.Sprintf("create consumer on %s", streamName))
	}

	consumeContext, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Data())
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ack message", "stream", streamName, "error", err)
		}
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "ConsumeStream", "start consuming")
	}

	c.consumersMu.Lock()
	defer c.consumersMu.Unlock()
	c.consumers[fmt.Sprintf("%s:%s", streamName, subject)] = consumeContext

	return nil
}
