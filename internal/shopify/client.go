package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIVersion = "2024-10"

type Config struct {
	StoreDomain string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

// Configured reports whether the Admin API can be reached with this config.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.StoreDomain) != "" && strings.TrimSpace(c.AccessToken) != ""
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type userError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(config.APIVersion) == "" {
		config.APIVersion = defaultAPIVersion
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

func (c *Client) Configured() bool {
	return c.config.Configured()
}

func (c *Client) endpoint() (string, error) {
	domain := strings.TrimSpace(c.config.StoreDomain)
	if domain == "" || strings.TrimSpace(c.config.AccessToken) == "" {
		return "", ErrNotConfigured
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	domain = strings.TrimRight(domain, "/")
	return domain + "/admin/api/" + c.config.APIVersion + "/graphql.json", nil
}

func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]any, out any) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(graphQLRequest{
		Query:     strings.TrimSpace(query),
		Variables: variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(raw))}
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		return &GraphQLErrors{Errors: gql.Errors}
	}
	if out == nil {
		return nil
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return errors.New("shopify: graphql response missing data")
	}
	return json.Unmarshal(gql.Data, out)
}
