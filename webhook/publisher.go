// Package webhook delivers notifications to an incoming webhook, best-effort and at most once.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/notification"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DeliveryError is returned by Publisher.Publish if the webhook did not accept the notification.
type DeliveryError struct {
	// StatusCode is the HTTP status returned by the webhook, or zero if the request failed before.
	StatusCode int
	// Body is an excerpt of the response body.
	Body string
	Err  error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook returned HTTP %d: %q", e.StatusCode, e.Body)
	}

	return "can't deliver notification: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Publisher posts notifications to a webhook.
type Publisher struct {
	client    http.Client
	url       string
	flavor    Flavor
	dryRun    bool
	userAgent string
	logger    *logging.Logger
}

// NewPublisher creates a Publisher from cfg, which should have been validated.
func NewPublisher(cfg Config, logger *logging.Logger) (*Publisher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.Url != "" {
		u, err := url.Parse(cfg.Url)
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse webhook URL")
		}

		tlsConfig, err := cfg.TlsOptions.MakeConfig(u.Hostname())
		if err != nil {
			return nil, errors.Wrap(err, "can't create webhook TLS config")
		}
		if tlsConfig != nil {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Publisher{
		client:    http.Client{Timeout: cfg.Timeout, Transport: transport},
		url:       cfg.Url,
		flavor:    cfg.Flavor,
		dryRun:    cfg.DryRun,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

// Publish posts p once. In dry-run mode, it only logs the payload and returns nil.
// Delivery failures are returned as *DeliveryError and are not retried.
func (p *Publisher) Publish(ctx context.Context, payload notification.Payload) error {
	encode := encodeSlack
	if p.flavor == Discord {
		encode = encodeDiscord
	}

	body, contentType, raw, err := encode(payload)
	if err != nil {
		return errors.WithStack(err)
	}

	if p.dryRun {
		p.logger.Infow("Kill ignored due to dry run", zap.ByteString("payload", raw))
		return nil
	}

	p.logger.Debugw("Sending kill to webhook", zap.String("url", RedactURL(p.url)), zap.ByteString("payload", raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: errors.Wrap(err, "cannot create HTTP request")}
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: errors.Wrap(err, "cannot POST notification")}
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode <= 299 {
		return nil
	}

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, &io.LimitedReader{R: resp.Body, N: 1 << 16})

	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(buf.String()),
		Err:        errors.Errorf("unexpected response status %q", resp.Status),
	}
}

// RedactURL strips the path and query from rawURL, which carry the secret of incoming webhooks.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.Path == "" && u.RawQuery == "" {
		return u.Redacted()
	}

	u.Path = "/REDACTED"
	u.RawPath = ""
	u.RawQuery = ""

	return u.Redacted()
}
