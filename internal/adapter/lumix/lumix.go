// Package lumix implements the cam.cgi HTTP command channel.
package lumix

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/adapter"
)

// UserAgent is the header value the camera firmware expects.
const UserAgent = "Lumix HTTP Remote"

// DefaultPort is the camera's control port.
const DefaultPort = 80

// maxReplyBytes bounds a reply body; control replies are small XML documents.
const maxReplyBytes = 1 << 20

// Channel sends commands to http://<host>:<port>/cam.cgi.
type Channel struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Channel) { ch.client = c }
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(ch *Channel) { ch.logger = l }
}

// New returns a channel for the camera at host:port.
func New(host string, port int, opts ...Option) *Channel {
	if port == 0 {
		port = DefaultPort
	}
	ch := &Channel{
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/cam.cgi?",
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// NewWithBaseURL returns a channel that sends to baseURL + "/cam.cgi".
func NewWithBaseURL(baseURL string, opts ...Option) *Channel {
	ch := New("", 0, opts...)
	ch.baseURL = baseURL + "/cam.cgi?"
	return ch
}

// Send issues cmd and returns the reply body. Non-ok result codes are not
// treated as failures here; callers inspect them with adapter.CheckResult.
func (c *Channel) Send(ctx context.Context, cmd adapter.Command) (string, error) {
	query := cmd.Query()
	c.logger.Debug().Str("cmd", query).Msg("camera command")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+query, nil)
	if err != nil {
		return "", fmt.Errorf("build request %q: %w", query, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("cmd", query).Msg("camera command failed")
		return "", adapter.NewChannelError(cmd, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", adapter.NewChannelError(cmd, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", adapter.NewChannelError(cmd, fmt.Errorf("http status %d", resp.StatusCode))
	}
	return string(body), nil
}

var _ adapter.Channel = (*Channel)(nil)
