// ABOUTME: NATS client wrapper for queue subscriptions
// ABOUTME: Handles connection, queue-group subscription, request/reply, and graceful shutdown

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	// NATS server URL.
	URL string

	// Subject to subscribe to for scan requests.
	Subject string

	// Queue group name for load balancing.
	QueueGroup string

	// Connection name for identification.
	Name string

	// Reconnect settings.
	MaxReconnects int
	ReconnectWait time.Duration

	// Request timeout.
	Timeout time.Duration
}

// DefaultNATSConfig returns a configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Subject:       "sentinel.scan",
		QueueGroup:    "scan-workers",
		Name:          "hikmaai-sentinel",
		MaxReconnects: -1, // Unlimited.
		ReconnectWait: 2 * time.Second,
		Timeout:       15 * time.Second,
	}
}

// Client wraps the NATS connection and subscription.
type Client struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	handler *Handler
	config  NATSConfig
	logger  *slog.Logger
}

// NewClient creates a new NATS client with the given configuration.
func NewClient(cfg NATSConfig, handler *Handler, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		handler: handler,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Connect establishes the NATS connection.
func (c *Client) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			c.logger.Error("NATS error",
				slog.Any("error", err),
				slog.String("subject", sub.Subject),
			)
		}),
	}

	conn, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c.conn = conn
	c.logger.Info("connected to NATS",
		slog.String("url", conn.ConnectedUrl()),
		slog.String("server_id", conn.ConnectedServerId()),
	)

	return nil
}

// Subscribe starts listening for scan requests.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("not connected to NATS")
	}

	sub, err := c.conn.QueueSubscribe(c.config.Subject, c.config.QueueGroup, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.sub = sub
	c.logger.Info("subscribed to NATS",
		slog.String("subject", c.config.Subject),
		slog.String("queue", c.config.QueueGroup),
	)

	return nil
}

// Request sends a scan request and waits for the reply. Used by the
// CLI and by other services that want a synchronous verdict.
func (c *Client) Request(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected to NATS")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	reqCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(reqCtx, c.config.Subject, data)
	if err != nil {
		return nil, fmt.Errorf("requesting scan: %w", err)
	}

	var resp ScanResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &resp, nil
}

// handleMessage processes an incoming NATS message.
func (c *Client) handleMessage(ctx context.Context, msg *nats.Msg) {
	ctx, span := observability.StartSpan(ctx, "nats.handle_message")
	defer span.End()

	start := time.Now()

	var req ScanRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		// The payload may hold raw identifiers; never echo it back
		// into the logs.
		c.logger.Error("failed to parse scan request", slog.Any("error", err))
		c.replyError(msg, "", "invalid request format: "+err.Error())
		return
	}

	resp := c.handler.ProcessRequest(ctx, req)

	if msg.Reply != "" {
		respData, err := json.Marshal(resp)
		if err != nil {
			c.logger.Error("failed to marshal response",
				slog.Any("error", err),
				slog.String("request_id", req.RequestID),
			)
			return
		}

		if err := msg.Respond(respData); err != nil {
			c.logger.Error("failed to send reply",
				slog.Any("error", err),
				slog.String("request_id", req.RequestID),
			)
			return
		}
	}

	elapsed := time.Since(start)
	c.logger.Info("processed scan request",
		slog.String("request_id", req.RequestID),
		observability.IdentifierAttr("url", types.NamespaceURL, req.URL),
		slog.String("status", resp.Status),
		slog.String("verdict", resp.Verdict),
		slog.Duration("duration", elapsed),
	)
}

// replyError sends an error response.
func (c *Client) replyError(msg *nats.Msg, requestID, errMsg string) {
	if msg.Reply == "" {
		return
	}

	resp := ScanResponse{
		RequestID: requestID,
		Status:    "error",
		Error:     errMsg,
		ScannedAt: time.Now().UTC(),
	}

	respData, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("failed to marshal error response", slog.Any("error", err))
		return
	}

	if err := msg.Respond(respData); err != nil {
		c.logger.Error("failed to send error reply", slog.Any("error", err))
	}
}

// Close closes the NATS connection.
func (c *Client) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe", slog.Any("error", err))
		}
	}

	if c.conn != nil {
		c.conn.Close()
	}

	return nil
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
