// Package profiles queries the profile service for users matching a skill
// set. The client owns the auth token lifecycle: it logs in lazily, replaces
// the token once on a 403 and replays the query, and degrades to an empty
// match result on any other HTTP failure so a single bad call never aborts a
// batch.
package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	loginPath   = "/login"
	skillPath   = "/skill"
	contentType = "application/json"

	defaultLoginTimeout = 30 * time.Second
	defaultQueryTimeout = 60 * time.Second
)

// ErrLogin marks a failed login. Without a token no further matching is
// possible, so callers treat it as fatal for the whole run.
var ErrLogin = errors.New("profile service login failed")

// Client is an authenticated profile service client. Safe for use from
// concurrent workers: the token slot is guarded so only one login runs at a
// time.
type Client struct {
	apiURL     string
	authURL    string
	email      string
	password   string
	logger     *zap.Logger
	HTTPClient *http.Client

	mu    sync.Mutex
	token string
}

// New builds a Client. apiURL serves the skill queries, authURL the login
// endpoint.
func New(apiURL, authURL, email, password string, logger *zap.Logger) *Client {
	return &Client{
		apiURL:   apiURL,
		authURL:  authURL,
		email:    email,
		password: password,
		logger:   logger,
		HTTPClient: &http.Client{
			Timeout: defaultQueryTimeout,
		},
	}
}

// FindCompatibleUsers returns the ids of users whose profiles match the given
// skills. An empty skill set returns no users without a network call. A 403
// triggers exactly one re-login and one replay; any other non-200 response
// degrades to an empty result. Transport errors are returned to the caller so
// they can be recorded as per-item failures. Only a failed login is returned
// as ErrLogin.
func (c *Client) FindCompatibleUsers(ctx context.Context, skillNames []string) ([]string, error) {
	if len(skillNames) == 0 {
		return nil, nil
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.querySkills(ctx, token, skillNames)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}

	if status == http.StatusForbidden {
		c.logger.Info("profile token rejected, logging in again")
		token, err = c.refreshToken(ctx, token)
		if err != nil {
			return nil, err
		}
		body, status, err = c.querySkills(ctx, token, skillNames)
		if err != nil {
			return nil, fmt.Errorf("query profiles after re-login: %w", err)
		}
	}

	if status != http.StatusOK {
		c.logger.Warn("profile query failed, treating as no matches",
			zap.Int("status", status),
			zap.Int("skills", len(skillNames)),
		)
		return nil, nil
	}

	users, err := parseProfileIDs(body)
	if err != nil {
		c.logger.Warn("unexpected profile response shape, treating as no matches", zap.Error(err))
		return nil, nil
	}

	c.logger.Debug("profile query succeeded",
		zap.Int("skills", len(skillNames)),
		zap.Int("matches", len(users)),
	)
	return users, nil
}

// querySkills performs one GET against the skill endpoint. Skills are passed
// as repeated query parameters, not comma-joined.
func (c *Client) querySkills(ctx context.Context, token string, skillNames []string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+skillPath, nil)
	if err != nil {
		return nil, 0, err
	}

	q := url.Values{}
	for _, name := range skillNames {
		q.Add("names", name)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// ensureToken returns the current token, logging in first if there is none.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	return c.login(ctx)
}

// refreshToken replaces a stale token. If another worker already replaced it,
// the new token is reused instead of logging in twice.
func (c *Client) refreshToken(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.token != stale {
		return c.token, nil
	}
	return c.login(ctx)
}

// login exchanges credentials for a fresh token. Callers must hold c.mu.
func (c *Client) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode credentials: %v", ErrLogin, err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, defaultLoginTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(loginCtx, http.MethodPost, c.authURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLogin, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLogin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %s", ErrLogin, resp.Status)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrLogin, err)
	}
	if data.Token == "" {
		return "", fmt.Errorf("%w: response carried no token", ErrLogin)
	}

	c.token = data.Token
	c.logger.Info("obtained profile service token")
	return c.token, nil
}

type profile struct {
	ID string `json:"id"`
}

// parseProfileIDs accepts either a bare list of profile objects or an object
// wrapping a "profiles" list. Profile ids may arrive as strings or numbers.
func parseProfileIDs(body []byte) ([]string, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	var raw any
	switch v := data.(type) {
	case []any:
		raw = v
	case map[string]any:
		list, ok := v["profiles"]
		if !ok {
			return nil, errors.New("object response without profiles list")
		}
		raw = list
	default:
		return nil, fmt.Errorf("unsupported response shape %T", data)
	}

	var profiles []profile
	cfg := &mapstructure.DecoderConfig{
		Result:           &profiles,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode profile list: %w", err)
	}

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
