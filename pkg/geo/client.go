package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var errBaseURLRequired = errors.New("geo base url is required")

// Country is a selectable shipping country.
type Country struct {
	ISOCode   string `json:"isoCode"`
	Name      string `json:"name"`
	PhoneCode string `json:"phoneCode,omitempty"`
	Flag      string `json:"flag,omitempty"`
}

// City belongs to the country it was requested for.
type City struct {
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
	StateCode   string `json:"stateCode,omitempty"`
}

// Client reads country and city reference data over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Countries lists every country, sorted as the provider returns them.
func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geo client not configured")
	}
	var countries []Country
	if err := c.getJSON(ctx, c.baseURL+"/countries", &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// Cities lists the cities of the country with the given ISO code.
func (c *Client) Cities(ctx context.Context, isoCode string) ([]City, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geo client not configured")
	}
	iso := strings.ToUpper(strings.TrimSpace(isoCode))
	if iso == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country code is required")
	}
	var cities []City
	endpoint := fmt.Sprintf("%s/countries/%s/cities", c.baseURL, url.PathEscape(iso))
	if err := c.getJSON(ctx, endpoint, &cities); err != nil {
		return nil, err
	}
	for i := range cities {
		if cities[i].CountryCode == "" {
			cities[i].CountryCode = iso
		}
	}
	return cities, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geo request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		upstream := &pkgerrors.UpstreamError{Service: "geo", Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, upstream, "geo request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geo response")
	}
	return nil
}
