package apiclient

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
	"time"

	"golang.org/x/time/rate"

	"salescast/internal/config"
	"salescast/internal/metrics"
	"salescast/internal/model"
)

const (
	healthEndpoint  = "/"
	configEndpoint  = "/config"
	predictEndpoint = "/predict"
	retrainEndpoint = "/retrain"

	MinWeeks = 1
	MaxWeeks = 52
)

var (
	// ErrUnreachable covers transport failures and non-2xx reads.
	ErrUnreachable = errors.New("server unreachable")
	// ErrMalformed means the response violated the expected schema.
	ErrMalformed = errors.New("malformed response")
	// ErrRejected means the server declined a retrain submission.
	ErrRejected = errors.New("request rejected")
)

// Client defines the forecasting server calls the console and the
// reconciler use.
type Client interface {
	Health(ctx context.Context) (model.Health, error)
	ReadConfig(ctx context.Context) (model.HyperparameterSet, error)
	SubmitRetrain(ctx context.Context, target model.HyperparameterSet) (model.Acknowledgment, error)
	GetForecast(ctx context.Context, weeks int) ([]model.ForecastPoint, error)
}

// HTTPClient talks JSON over HTTP to the forecasting server.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewHTTPClient builds a client from the server section of the config.
// Unset numeric fields take their values from config.Default.
func NewHTTPClient(cfg config.ServerConfig) *HTTPClient {
	def := config.Default().Server
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     newLimiter(cfg.RPS, cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
	}
}

// NoRetry returns a client that sends every request exactly once. It shares
// the rate limiter and transport of c. The poll loop reads through it so a
// failed sample is retried on the next tick instead of inside the current one.
func (c *HTTPClient) NoRetry() *HTTPClient {
	cp := *c
	cp.maxAttempts = 1
	return &cp
}

func (c *HTTPClient) newRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Health reports the server status and model version.
func (c *HTTPClient) Health(ctx context.Context) (model.Health, error) {
	var out model.Health
	req, err := c.newRequest(ctx, http.MethodGet, healthEndpoint, nil)
	if err != nil {
		return out, err
	}
	if err := c.getJSON(ctx, req, healthEndpoint, &out); err != nil {
		return out, err
	}
	if out.Status == "" {
		return model.Health{}, fmt.Errorf("%w: missing status", ErrMalformed)
	}
	return out, nil
}

// ReadConfig returns the hyperparameters of the model the server is serving.
func (c *HTTPClient) ReadConfig(ctx context.Context) (model.HyperparameterSet, error) {
	var out model.HyperparameterSet
	req, err := c.newRequest(ctx, http.MethodGet, configEndpoint, nil)
	if err != nil {
		return out, err
	}
	var raw struct {
		Hyperparameters *struct {
			NEstimators  *int     `json:"n_estimators"`
			LearningRate *float64 `json:"learning_rate"`
			RandomState  *int     `json:"random_state"`
		} `json:"Hyperparameters"`
	}
	if err := c.getJSON(ctx, req, configEndpoint, &raw); err != nil {
		return out, err
	}
	hp := raw.Hyperparameters
	switch {
	case hp == nil:
		return out, fmt.Errorf("%w: missing Hyperparameters", ErrMalformed)
	case hp.NEstimators == nil:
		return out, fmt.Errorf("%w: missing n_estimators", ErrMalformed)
	case hp.LearningRate == nil:
		return out, fmt.Errorf("%w: missing learning_rate", ErrMalformed)
	case hp.RandomState == nil:
		return out, fmt.Errorf("%w: missing random_state", ErrMalformed)
	}
	out = model.HyperparameterSet{
		TreeCount:    *hp.NEstimators,
		LearningRate: *hp.LearningRate,
		RandomSeed:   *hp.RandomState,
	}
	if err := out.Validate(); err != nil {
		return model.HyperparameterSet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// SubmitRetrain asks the server to retrain with target in the background.
// It is sent once: a retry could queue a second training job.
func (c *HTTPClient) SubmitRetrain(ctx context.Context, target model.HyperparameterSet) (model.Acknowledgment, error) {
	var out model.Acknowledgment
	if err := target.Validate(); err != nil {
		return out, err
	}
	data, err := json.Marshal(target)
	if err != nil {
		return out, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, retrainEndpoint, data)
	if err != nil {
		return out, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Acknowledgment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// GetForecast returns weekly sales predictions following the last known week.
func (c *HTTPClient) GetForecast(ctx context.Context, weeks int) ([]model.ForecastPoint, error) {
	if weeks < MinWeeks || weeks > MaxWeeks {
		return nil, fmt.Errorf("%w: weeks must be within %d..%d, got %d", model.ErrInvalidInput, MinWeeks, MaxWeeks, weeks)
	}
	endpoint := predictEndpoint + "?" + url.Values{"weeks": {strconv.Itoa(weeks)}}.Encode()
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Forecast *[]struct {
			Date  *string  `json:"date"`
			Sales *float64 `json:"sales"`
		} `json:"forecast"`
	}
	if err := c.getJSON(ctx, req, predictEndpoint, &raw); err != nil {
		return nil, err
	}
	if raw.Forecast == nil {
		return nil, fmt.Errorf("%w: missing forecast", ErrMalformed)
	}
	out := make([]model.ForecastPoint, 0, len(*raw.Forecast))
	for i, p := range *raw.Forecast {
		if p.Date == nil || p.Sales == nil {
			return nil, fmt.Errorf("%w: forecast[%d] incomplete", ErrMalformed, i)
		}
		d, err := time.Parse(time.DateOnly, *p.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: forecast[%d] date %q", ErrMalformed, i, *p.Date)
		}
		out = append(out, model.ForecastPoint{Date: d, Sales: *p.Sales})
	}
	return out, nil
}

// getJSON performs an idempotent GET with retries and decodes the body into v.
func (c *HTTPClient) getJSON(ctx context.Context, req *http.Request, endpoint string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp, err := c.doWithRetry(ctx, req, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s status %d", ErrUnreachable, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
			if !retryable || attempt == c.maxAttempts {
				return resp, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}

// jitter spreads wait by +/-20%.
func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
