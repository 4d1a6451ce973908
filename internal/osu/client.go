package osu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"osu-leaderboard/internal/components/assert"
	"osu-leaderboard/internal/components/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_token    = "client.token"
	report_client_get_json = "client.get-json"
	report_client_page     = "client.page"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	ClientID     string
	ClientSecret string
	Mode         string
	APIBase      string
	TokenURL     string
	WebBase      string

	Timeout           time.Duration
	RequestsPerSecond float64
	// BypassCloudflare wraps the transport of the public site client.
	BypassCloudflare bool
	// Dump receives full HTTP transcripts when set.
	Dump telemetry.InstrumentOutput
}

// Client talks to the osu! API (token, rankings, users) and fetches public
// site pages for scraping.
type Client struct {
	api     *resty.Client
	web     *resty.Client
	options Options
	tel     telemetry.API
}

func NewClient(options Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("osu_client", tel)

	apiBase, err := url.Parse(options.APIBase)
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if _, err := url.Parse(options.WebBase); err != nil {
		return nil, fmt.Errorf("parse web base: %w", err)
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	if options.RequestsPerSecond <= 0 {
		options.RequestsPerSecond = 2
	}

	// both clients share one budget, max burst >= 2 just means that no
	// requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 2)
	limit := func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	}

	api := resty.New()
	api.SetBaseURL(apiBase.String())
	api.SetTimeout(options.Timeout)
	api.SetHeader("accept", "application/json")
	api.OnBeforeRequest(limit)
	telemetry.InstrumentResty(api, tel, telemetry.PrefixOutput("api-", options.Dump))

	web := resty.New()
	web.SetTimeout(options.Timeout)
	web.SetHeader("user-agent", browserUserAgent)
	if options.BypassCloudflare {
		web.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(web.GetClient().Transport)
	}
	web.OnBeforeRequest(limit)
	telemetry.InstrumentResty(web, tel, telemetry.PrefixOutput("web-", options.Dump))

	return &Client{
		api:     api,
		web:     web,
		options: options,
		tel:     tel,
	}, nil
}

func (c *Client) Mode() string {
	return c.options.Mode
}

func (c *Client) WebBase() string {
	return c.options.WebBase
}

// GetJSON performs an authenticated GET relative to the API base. Numbers
// are decoded as json.Number. A top level array is returned under "items".
func (c *Client) GetJSON(ctx context.Context, token, path string) (map[string]any, error) {
	res, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(path)
	if err != nil {
		c.tel.ReportBroken(report_client_get_json, path, err)
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: status %d", path, res.StatusCode())
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(res.Body()))
	decoder.UseNumber()
	err = decoder.Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("GET %s: decode: %w", path, err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{"items": v}, nil
	}
	return nil, fmt.Errorf("GET %s: unexpected json %T", path, doc)
}

// User fetches the detail document of one user in the configured mode.
func (c *Client) User(ctx context.Context, token string, id int64) (map[string]any, error) {
	return c.GetJSON(ctx, token, fmt.Sprintf("users/%d/%s", id, c.options.Mode))
}

// Page fetches a public html page, no token is sent.
func (c *Client) Page(ctx context.Context, pageUrl string) ([]byte, error) {
	res, err := c.web.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_page, pageUrl, err)
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: status %d", pageUrl, res.StatusCode())
	}
	return res.Body(), nil
}
