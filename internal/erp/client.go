package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type AuthMode string

const (
	AuthOAuth AuthMode = "oauth"
	AuthSign  AuthMode = "sign"
)

const (
	tokenPath = "/api/oauth/v2/token.json"

	ProductAnalyticsPath = "/api/productAnalyze/new/pageList.json"
	FBAInventoryPath     = "/api/inventoryManage/fba/pageList.json"
	WarehouseItemsPath   = "/api/warehouseManage/warehouseItemList.json"

	maxPageSize = 100
	// tokenSkew refreshes tokens a little before the upstream expires them.
	tokenSkew = time.Minute
)

type Config struct {
	BaseURL        string
	AuthMode       AuthMode
	ClientID       string
	ClientSecret   string
	Currency       string
	PageSize       int
	MinInterval    time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	Timeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		AuthMode:       AuthOAuth,
		Currency:       "USD",
		PageSize:       maxPageSize,
		MinInterval:    1100 * time.Millisecond,
		MaxRetries:     3,
		BackoffInitial: time.Second,
		Timeout:        30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.AuthMode == "" {
		c.AuthMode = defaults.AuthMode
	}
	if c.Currency == "" {
		c.Currency = defaults.Currency
	}
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		c.PageSize = defaults.PageSize
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaults.MinInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = defaults.BackoffInitial
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	return c
}

// Page is the data block of a paged response.
type Page struct {
	Rows       []map[string]interface{} `json:"rows"`
	TotalPage  json.Number              `json:"totalPage"`
	TotalCount json.Number              `json:"totalCount"`
}

type envelope struct {
	Code json.Number     `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tokenData struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Client talks to the ERP open API. Every request, token calls included, is
// spaced by at least MinInterval.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		logger:     log.Named("erp"),
		now:        time.Now,
	}
}

// FetchAll pages through an endpoint and returns every row.
func (c *Client) FetchAll(ctx context.Context, path string, params map[string]interface{}) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	for pageNo := 1; ; pageNo++ {
		body := make(map[string]interface{}, len(params)+2)
		for k, v := range params {
			body[k] = v
		}
		body["pageNo"] = pageNo
		body["pageSize"] = c.cfg.PageSize

		page, err := c.post(ctx, path, body)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Rows...)

		totalPage, _ := strconv.Atoi(page.TotalPage.String())
		c.logger.Debug("fetched page",
			zap.String("endpoint", path),
			zap.Int("page", pageNo),
			zap.Int("total_page", totalPage),
			zap.Int("rows", len(page.Rows)),
		)
		if pageNo >= totalPage || len(page.Rows) == 0 {
			return rows, nil
		}
	}
}

// ProductAnalytics returns the per-product rows of one data date.
func (c *Client) ProductAnalytics(ctx context.Context, dataDate time.Time) ([]map[string]interface{}, error) {
	day := dataDate.Format("2006-01-02")
	return c.FetchAll(ctx, ProductAnalyticsPath, map[string]interface{}{
		"startDate": day,
		"endDate":   day,
		"currency":  c.cfg.Currency,
	})
}

// FBAInventory returns the current FBA inventory snapshot.
func (c *Client) FBAInventory(ctx context.Context) ([]map[string]interface{}, error) {
	return c.FetchAll(ctx, FBAInventoryPath, nil)
}

// WarehouseItems returns local warehouse stock per SKU.
func (c *Client) WarehouseItems(ctx context.Context) ([]map[string]interface{}, error) {
	return c.FetchAll(ctx, WarehouseItemsPath, nil)
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) (*Page, error) {
	env, err := c.doWithRetry(ctx, path, body)
	if errors.Is(err, errUnauthorized) && c.cfg.AuthMode == AuthOAuth {
		c.logger.Warn("access token rejected, refreshing", zap.String("endpoint", path))
		c.invalidateToken()
		env, err = c.doWithRetry(ctx, path, body)
	}
	if errors.Is(err, errUnauthorized) {
		return nil, fmt.Errorf("%w: %s", ErrAuth, path)
	}
	if err != nil {
		return nil, err
	}

	var page Page
	if len(env.Data) > 0 && string(env.Data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(&page); err != nil {
			return nil, fmt.Errorf("erp %s: decode page: %w", path, err)
		}
	}
	return &page, nil
}

// doWithRetry retries transport failures, 429 and 5xx with exponential
// backoff. Anything else is returned immediately.
func (c *Client) doWithRetry(ctx context.Context, path string, body map[string]interface{}) (*envelope, error) {
	var env *envelope
	attempt := 0
	op := func() error {
		attempt++
		var err error
		env, err = c.do(ctx, path, body)
		if err == nil {
			return nil
		}
		var se *statusError
		switch {
		case errors.Is(err, errUnauthorized), errors.Is(err, ErrAuth):
			return backoff.Permanent(err)
		case errors.As(err, &se) && se.StatusCode != http.StatusTooManyRequests && se.StatusCode < 500:
			return backoff.Permanent(err)
		case isAPIError(err):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		c.logger.Warn("erp request failed, retrying",
			zap.String("endpoint", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}

	err := backoff.Retry(op, c.newBackOff(ctx))
	if err == nil {
		return env, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, errUnauthorized) || errors.Is(err, ErrAuth) {
		return nil, err
	}
	if isAPIError(err) {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrUpstream, path, attempt, err)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffInitial
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)
}

func (c *Client) do(ctx context.Context, path string, body map[string]interface{}) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("erp %s: marshal body: %w", path, err)
	}

	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	switch c.cfg.AuthMode {
	case AuthSign:
		u.RawQuery = c.signedQuery(body).Encode()
	default:
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		headers.Set("Authorization", "Bearer "+token)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = headers

	return c.send(req, path)
}

func (c *Client) send(req *http.Request, path string) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erp %s: read body: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 256)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("erp %s: decode envelope: %w", path, err)
	}
	if code := env.Code.String(); code != "" && code != "0" {
		return nil, &APIError{Endpoint: path, Code: code, Msg: env.Msg}
	}
	return &env, nil
}

func (c *Client) signedQuery(body map[string]interface{}) url.Values {
	params := map[string]string{
		"client_id":   c.cfg.ClientID,
		"timestamp":   strconv.FormatInt(c.now().Unix(), 10),
		"sign_method": "md5",
		"v":           "1.0",
	}
	for k, v := range body {
		params[k] = formatParam(v)
	}
	sign := Sign(params, c.cfg.ClientSecret)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("sign", sign)
	return q
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	u, err := url.Parse(c.cfg.BaseURL + tokenPath)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	q.Set("grant_type", "client_credentials")
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	env, err := c.send(req, tokenPath)
	if err != nil {
		if errors.Is(err, errUnauthorized) || isAPIError(err) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", err
	}

	var data tokenData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		return "", fmt.Errorf("%w: token response without access_token", ErrAuth)
	}
	ttl, _ := data.ExpiresIn.Int64()
	c.token = data.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl)*time.Second - tokenSkew)

	c.logger.Info("obtained access token",
		zap.String("client_id", c.cfg.ClientID),
		zap.String("token", logger.MaskSecret(data.AccessToken)),
		zap.Int64("expires_in", ttl),
	)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func isAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
