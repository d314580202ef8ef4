package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Resource is a kind of resource served by the reference service. Its value is the path segment of the
// resource collection.
type Resource string

const (
	SolarSystems   Resource = "solarsystems"
	Constellations Resource = "constellations"
	Regions        Resource = "regions"
	ItemTypes      Resource = "inventory/types"
)

// mediaTypes maps resources to the versioned representation requested via the Accept header.
var mediaTypes = map[Resource]string{
	SolarSystems:   "System-v1",
	Constellations: "Constellation-v1",
	Regions:        "Region-v1",
	ItemTypes:      "ItemType-v3",
}

// MediaType returns the Accept header value for r.
func (r Resource) MediaType() string {
	return fmt.Sprintf("application/vnd.ccp.eve.%s+json;charset=utf-8", mediaTypes[r])
}

// maxBodySize limits how much of a response is read.
const maxBodySize = 4 << 20

// LookupError is returned if a resource can't be fetched or its representation is unusable.
type LookupError struct {
	Resource Resource
	Ref      string // Ref is the ID or href that was looked up.
	Err      error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("can't look up %s %s: %s", e.Resource, e.Ref, e.Err)
}

// Unwrap returns the underlying error.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// userAgentTransport is an http.RoundTripper that sets the User-Agent header of every request.
type userAgentTransport struct {
	http.RoundTripper

	ClientName string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.ClientName)

	return t.RoundTripper.RoundTrip(req)
}

// Client fetches resources from the reference service. It is safe for concurrent use.
type Client struct {
	client  http.Client
	baseUrl *url.URL

	cache   *lru.Cache[string, []byte] // cache is nil unless Config.CacheSize is set.
	limiter *rate.Limiter              // limiter is nil unless Config.RateLimit is set.
}

// NewClient creates a Client from cfg, which should have been validated.
func NewClient(cfg Config) (*Client, error) {
	baseUrl, err := url.Parse(cfg.BaseUrl)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse reference base URL")
	}

	c := &Client{
		client: http.Client{
			Timeout: cfg.Timeout,
			Transport: &userAgentTransport{
				RoundTripper: http.DefaultTransport,
				ClientName:   cfg.UserAgent,
			},
		},
		baseUrl: baseUrl,
	}

	if cfg.CacheSize > 0 {
		c.cache, err = lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "can't create reference cache")
		}
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	return c, nil
}

// Get fetches the resource of kind res with the given id and decodes it into v.
func (c *Client) Get(ctx context.Context, res Resource, id int64, v any) error {
	href := c.baseUrl.JoinPath(string(res), strconv.FormatInt(id, 10)+"/").String()
	if err := c.fetch(ctx, res, href, v); err != nil {
		return &LookupError{Resource: res, Ref: strconv.FormatInt(id, 10), Err: err}
	}

	return nil
}

// GetHref fetches the resource of kind res at the absolute reference href and decodes it into v.
func (c *Client) GetHref(ctx context.Context, res Resource, href string, v any) error {
	if err := c.fetch(ctx, res, href, v); err != nil {
		return &LookupError{Resource: res, Ref: href, Err: err}
	}

	return nil
}

func (c *Client) fetch(ctx context.Context, res Resource, href string, v any) error {
	body, ok := c.cached(href)
	if !ok {
		var err error
		body, err = c.do(ctx, res, href)
		if err != nil {
			return err
		}

		if c.cache != nil {
			c.cache.Add(href, body)
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "cannot decode response")
	}

	return nil
}

func (c *Client) cached(href string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}

	return c.cache.Get(href)
}

func (c *Client) do(ctx context.Context, res Resource, href string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit wait aborted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create HTTP request")
	}

	req.Header.Set("Accept", res.MediaType())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cannot GET resource")
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(&io.LimitedReader{R: resp.Body, N: maxBodySize})
	if err != nil {
		return nil, errors.Wrap(err, "cannot read response")
	}

	if resp.StatusCode != http.StatusOK {
		excerpt := body
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}

		return nil, errors.Errorf("unexpected response status %q (%d): %q",
			resp.Status, resp.StatusCode, strings.TrimSpace(string(bytes.ToValidUTF8(excerpt, nil))))
	}

	return body, nil
}
