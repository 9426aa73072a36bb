package pushover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

type Client struct {
	Token    string
	User     string
	Endpoint string
	HTTP     *http.Client
}

func NewClient(token, user string) *Client {
	return &Client{
		Token:    token,
		User:     user,
		Endpoint: DefaultEndpoint,
		HTTP:     http.DefaultClient,
	}
}

// Configured reports whether both credentials are set.
func (c *Client) Configured() bool {
	return c != nil && c.Token != "" && c.User != ""
}

func (c *Client) SendMessage(ctx context.Context, title, message string) error {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	params := url.Values{}
	params.Set("token", c.Token)
	params.Set("user", c.User)
	params.Set("title", title)
	params.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover api error: status %s, body %s", resp.Status, string(body))
	}

	return nil
}
