package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/harvester/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 10
	defaultMaxBytes = 8 << 20
	userAgent       = "Mozilla/5.0 (compatible; harvester/1.0)"

	// DefaultURLTemplate is the product comment page endpoint.
	DefaultURLTemplate = "https://club.jd.com/productpage/p-{item}-s-0-t-6-p-{page}.html"
)

// Config configures the page client.
type Config struct {
	URLTemplate string            // Placeholders: {item}, {page}, {size}
	PageSize    int               // Substituted for {size}
	Timeout     time.Duration     // Per request
	UserAgent   string            // Sent with every request
	Headers     map[string]string // Extra headers (e.g. Referer)
	MaxBytes    int64             // Response body cap
	Transport   http.RoundTripper // nil uses http.DefaultTransport
}

func (c *Config) defaults() {
	if c.URLTemplate == "" {
		c.URLTemplate = DefaultURLTemplate
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = userAgent
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
}

// Client implements domain.PageFetcher over HTTP(S).
type Client struct {
	config     Config
	httpClient *http.Client
	transcoder domain.Transcoder
	logger     *slog.Logger
}

// NewClient creates a page client. Response bodies are passed through tc.
func NewClient(cfg Config, tc domain.Transcoder, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	if tc == nil {
		return nil, fmt.Errorf("transcoder is required")
	}
	if !strings.Contains(cfg.URLTemplate, "{item}") || !strings.Contains(cfg.URLTemplate, "{page}") {
		return nil, fmt.Errorf("url template must contain {item} and {page}: %q", cfg.URLTemplate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		transcoder: tc,
		logger:     logger,
	}, nil
}

// PageURL renders the request URL for one page.
func (c *Client) PageURL(req domain.PageRequest) string {
	r := strings.NewReplacer(
		"{item}", url.PathEscape(req.ItemID),
		"{page}", strconv.Itoa(req.Page),
		"{size}", strconv.Itoa(c.config.PageSize),
	)
	return r.Replace(c.config.URLTemplate)
}

// FetchPage downloads and decodes one page.
// Errors wrap domain.ErrFetch or domain.ErrEncoding.
func (c *Client) FetchPage(ctx context.Context, req domain.PageRequest) (domain.PageResult, error) {
	body, err := c.doRequest(ctx, c.PageURL(req))
	if err != nil {
		return domain.PageResult{}, err
	}

	text, err := c.transcoder.Transcode(body)
	if err != nil {
		return domain.PageResult{}, err
	}
	return domain.PageResult{Text: text}, nil
}

// doRequest performs a GET and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrFetch, err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("page request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrFetch, err)
	}
	if int64(len(body)) > c.config.MaxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrFetch, c.config.MaxBytes)
	}
	return body, nil
}
