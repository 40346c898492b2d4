// Package haystack fetches and decrypts the location reports of accessories
// whose keys are loaded from disk.
package haystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
)

var logger = logrus.StandardLogger().WithField("pkg", "haystack")

const DefaultEndpoint = "https://gateway.icloud.com/acsnservice/fetch"

type Client struct {
	credentials   CredentialProvider
	endpoint      string
	authorization string
	httpClient    *http.Client
}

type Option func(*Client)

// WithEndpoint points the client at a self-hosted report server.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithAuthorization sends value as the Authorization header instead of basic
// auth built from the credentials.
func WithAuthorization(value string) Option {
	return func(c *Client) {
		c.authorization = value
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

type searchParams struct {
	StartDate int64    `json:"startDate"`
	EndDate   int64    `json:"endDate"`
	Ids       []string `json:"ids"` // A list of Hashed Advertisements (base64)
}

type FindRequest struct {
	Search []searchParams `json:"search"`
}

func New(credentials CredentialProvider, opts ...Option) *Client {
	c := &Client{
		credentials: credentials,
		endpoint:    DefaultEndpoint,
		httpClient:  http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query asks the report service for the reports published for ids between
// start and start+duration.
func (c *Client) Query(ctx context.Context, ids []lookup.ID, start time.Time, duration time.Duration) ([]Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	end := start.Add(duration)
	jsonBytes, err := json.Marshal(FindRequest{
		Search: []searchParams{{
			StartDate: start.UnixMilli(),
			EndDate:   end.UnixMilli(),
			Ids:       lookup.Strings(ids),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal find request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debugf("querying %d ids between %s and %s", len(ids), start.Format(time.RFC3339), end.Format(time.RFC3339))
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to make request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	var result FindResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("unable to decode JSON: %w", err)
	}
	return result.Results, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.credentials != nil {
		creds, err := c.credentials.Credentials(ctx)
		if err != nil {
			return fmt.Errorf("unable to get credentials: %w", err)
		}
		for k, v := range creds.Header {
			req.Header[k] = v
		}
		if creds.Username != "" || creds.Token != "" {
			req.SetBasicAuth(creds.Username, creds.Token)
		}
	}
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}
	if req.Header.Get("Authorization") == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Find expands keys into the sub keys advertised between from and to and
// queries their reports. The returned map resolves a report ID to the sub key
// able to decrypt it.
func (c *Client) Find(ctx context.Context, keys []model.MainKey, from, to time.Time) ([]Report, map[lookup.ID]model.SubKey, error) {
	subKeysMap := make(map[lookup.ID]model.SubKey)
	for _, k := range keys {
		subKeys, err := k.GetSubKeys(from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to get subkeys of %s: %w", k.ID(), err)
		}
		for _, v := range subKeys {
			subKeysMap[v.ID] = v
		}
	}

	keyIDs := maps.Keys(subKeysMap)
	sort.Slice(keyIDs, func(i, j int) bool { return keyIDs[i] < keyIDs[j] })
	reports, err := c.Query(ctx, keyIDs, from, to.Sub(from))
	if err != nil {
		return nil, nil, err
	}
	return reports, subKeysMap, nil
}
