package ga4

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
	"golang.org/x/oauth2"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds GA4 client configuration. The service-account secrets and property id are not
// part of it: CredentialLoader reads them on every call so rotation needs no restart.
type Config struct {
	Endpoint     string        `mapstructure:"endpoint"`  // reporting API base, empty for the provider default
	TokenURL     string        `mapstructure:"token_url"` // empty for DefaultTokenURL
	Scope        string        `mapstructure:"scope"`
	Signer       string        `mapstructure:"signer"` // "rs256" or "jwt"
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	TokenCache   bool          `mapstructure:"token_cache"`
	TokenLeeway  time.Duration `mapstructure:"token_leeway"`
}

// Client issues report queries against the GA4 Data API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
}

// NewClient creates a new GA4 report client.
func NewClient(c *Config) *Client {
	httpTimeout := c.HTTPTimeout
	if httpTimeout == 0 {
		httpTimeout = 15 * time.Second
	}
	queryTimeout := c.QueryTimeout
	if queryTimeout == 0 {
		queryTimeout = httpTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   httpTimeout,
			Transport: errorBodyTransport{base: http.DefaultTransport},
		},
		endpoint:   c.Endpoint,
		timeout:    queryTimeout,
	}
}

func (c *Client) service(ctx context.Context, tok *AccessToken) (*analyticsdata.Service, error) {
	hc := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.httpClient),
		oauth2.StaticTokenSource(tok.OAuth2()),
	)
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GA4 service: %w", err)
	}
	return svc, nil
}

// RunReport runs one report and returns its rows untouched.
func (c *Client) RunReport(ctx context.Context, tok *AccessToken, propertyID string, req ReportRequest) ([]ReportRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, tok)
	if err != nil {
		return nil, &gerr.QueryError{Report: req.Name, Err: err}
	}

	resp, err := svc.Properties.RunReport(propertyName(propertyID), req.toAPI()).Context(ctx).Do()
	if err != nil {
		return nil, queryError(req.Name, err)
	}
	return rowsFromAPI(resp.Rows), nil
}

// RunRealtime returns the number of users active right now.
func (c *Client) RunRealtime(ctx context.Context, tok *AccessToken, propertyID string) (int, error) {
	const report = "realtime"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, tok)
	if err != nil {
		return 0, &gerr.QueryError{Report: report, Err: err}
	}

	req := &analyticsdata.RunRealtimeReportRequest{
		Metrics: []*analyticsdata.Metric{{Name: "activeUsers"}},
	}
	resp, err := svc.Properties.RunRealtimeReport(propertyName(propertyID), req).Context(ctx).Do()
	if err != nil {
		return 0, queryError(report, err)
	}

	rows := rowsFromAPI(resp.Rows)
	if len(rows) == 0 || len(rows[0].MetricValues) == 0 {
		return 0, nil
	}
	return parseInt(rows[0].MetricValues[0]), nil
}

// queryError keeps the provider's message and status from a googleapi error body.
func queryError(report string, err error) error {
	qe := &gerr.QueryError{Report: report, Err: err}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		qe.Code = ge.Code
		qe.Message = ge.Message
		var body struct {
			Error struct {
				Status string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(ge.Body), &body) == nil {
			qe.Status = body.Error.Status
		}
		if qe.Status == "" {
			qe.Status = http.StatusText(ge.Code)
		}
	}
	return qe
}

// errorBodyTransport turns a 2xx response whose body carries an "error" object into a failed
// response, so the API client reports it as *googleapi.Error instead of decoding an empty report.
type errorBodyTransport struct {
	base http.RoundTripper
}

func (t errorBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	var payload struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil || payload.Error == nil {
		return resp, nil
	}

	code := payload.Error.Code
	if code < 400 {
		code = http.StatusBadGateway
	}
	resp.StatusCode = code
	resp.Status = fmt.Sprintf("%d %s", code, http.StatusText(code))
	return resp, nil
}

func propertyName(id string) string {
	return "properties/" + id
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
