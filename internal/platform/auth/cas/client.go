// Package cas validates SSO tickets against the campus CAS server.
package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrAuthenticationFailed indicates the CAS server rejected the ticket.
var ErrAuthenticationFailed = errors.New("cas authentication failed")

// Client talks to a CAS 2.0 serviceValidate endpoint.
type Client struct {
	validateURL string
	serviceURL  string
	httpClient  *http.Client
}

func NewClient(validateURL, serviceURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		validateURL: validateURL,
		serviceURL:  serviceURL,
		httpClient:  httpClient,
	}
}

// serviceResponse mirrors the CAS XML body. Tag names ignore the cas:
// namespace prefix, which encoding/xml strips when matching by local name.
type serviceResponse struct {
	XMLName xml.Name `xml:"serviceResponse"`
	Success *struct {
		User string `xml:"user"`
	} `xml:"authenticationSuccess"`
	Failure *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"authenticationFailure"`
}

// Validate exchanges a ticket for the authenticated netid. Returns
// ErrAuthenticationFailed when CAS rejects the ticket.
func (c *Client) Validate(ctx context.Context, ticket string) (string, error) {
	u := fmt.Sprintf("%s?ticket=%s&service=%s",
		c.validateURL, url.QueryEscape(ticket), url.QueryEscape(c.serviceURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cas validate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("cas validate response: %w", err)
	}

	var sr serviceResponse
	if err := xml.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("cas validate parse: %w", err)
	}

	switch {
	case sr.Success != nil && sr.Success.User != "":
		return sr.Success.User, nil
	case sr.Failure != nil:
		return "", fmt.Errorf("%w: %s", ErrAuthenticationFailed, sr.Failure.Code)
	default:
		return "", fmt.Errorf("cas validate: unrecognized response")
	}
}
