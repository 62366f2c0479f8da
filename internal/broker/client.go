package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
	"wheel-trader/internal/resilience"
	"wheel-trader/internal/security"
	"wheel-trader/pkg/utils"
)

const userAgent = "wheel-trader/1.0"

// ClientConfig holds configuration for the brokerage REST client.
type ClientConfig struct {
	BaseURL           string
	Username          string
	Password          string
	RequestsPerSecond float64
	SessionTimeout    time.Duration
	HTTPTimeout       time.Duration
	Retry             utils.RetryConfig
	CircuitBreaker    resilience.CircuitBreakerConfig
	HTTPClient        *http.Client
}

// Client is an authenticated JSON client for the brokerage REST API.
// Every request resolves a session token first; idempotent GETs are retried
// on transient failures.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      utils.RetryConfig
	breaker    *resilience.CircuitBreaker
	session    *SessionManager
	logger     zerolog.Logger
	safe       *security.SafeLogger
}

// envelope is the brokerage response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	var parts []string
	for _, sub := range e.Errors {
		parts = append(parts, sub.Message)
	}
	return strings.Join(parts, "; ")
}

// NewClient creates a new brokerage client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
	}
	retry.ShouldRetry = isTransient

	breakerCfg := cfg.CircuitBreaker
	breakerCfg.IsFailure = isTransient

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		retry:      retry,
		breaker:    resilience.NewCircuitBreaker("brokerage", breakerCfg),
		logger:     logger,
		safe:       security.NewSafeLogger(logger, cfg.Password),
	}
	c.session = NewSessionManager(c.createSession, cfg.SessionTimeout, logger)
	return c
}

// Sessions returns the client's session manager.
func (c *Client) Sessions() *SessionManager {
	return c.session
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs an authenticated API call and decodes the data field of
// the response into out (which may be nil).
//
// Once the brokerage keeps failing, calls are rejected without a request
// until the circuit's timeout passes.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	err := c.breaker.Execute(ctx, func() error {
		if method != http.MethodGet {
			return c.authorized(ctx, method, path, body, out)
		}
		_, err := utils.RetryWithResult(ctx, c.retry, func() (struct{}, error) {
			return struct{}{}, c.authorized(ctx, method, path, body, out)
		})
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn().Str("path", path).Msg("Brokerage circuit open, request skipped")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return err
}

// Circuit returns the client's circuit breaker.
func (c *Client) Circuit() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) authorized(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, token, body, out)

	var apiErr *errors.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.session.Invalidate()
	}
	return err
}

// do sends one request. token may be empty for the login call.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body for %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(c.logger, method, path, 0, time.Since(start), c.safe.RedactError(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.LogAPICall(c.logger, method, path, resp.StatusCode, time.Since(start), c.safe.RedactError(err))
		return fmt.Errorf("reading response %s %s: %w", method, path, err)
	}

	err = decodeEnvelope(method, path, resp.StatusCode, raw, out)
	logging.LogAPICall(c.logger, method, path, resp.StatusCode, time.Since(start), c.safe.RedactError(err))
	return err
}

func decodeEnvelope(method, path string, status int, raw []byte, out interface{}) error {
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if status < 200 || status >= 300 {
				return errors.NewAPIError(method, path, status, "", http.StatusText(status))
			}
			return fmt.Errorf("decoding response %s %s: %w", method, path, err)
		}
	}

	if env.Error != nil {
		msg := env.Error.text()
		if msg == "" {
			msg = http.StatusText(status)
		}
		return errors.NewAPIError(method, path, status, env.Error.Code, msg)
	}
	if status < 200 || status >= 300 {
		return errors.NewAPIError(method, path, status, "", http.StatusText(status))
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

type sessionRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember-me"`
}

type sessionResponse struct {
	SessionToken      string `json:"session-token"`
	SessionExpiration string `json:"session-expiration"`
	User              struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// createSession exchanges credentials for a session token. It is never
// retried.
func (c *Client) createSession(ctx context.Context) (*models.Session, error) {
	if c.username == "" || c.password == "" {
		return nil, errors.ErrMissingCredentials
	}

	c.safe.Debug().Str("user", c.username).Msg("Creating brokerage session")

	var out sessionResponse
	req := sessionRequest{Login: c.username, Password: c.password, RememberMe: true}
	if err := c.do(ctx, http.MethodPost, "/sessions", "", req, &out); err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) {
			apiErr.Message = c.safe.Redact(apiErr.Message)
		}
		c.safe.Warn().Str("user", c.username).Err(err).Msg("Brokerage login rejected")
		return nil, errors.NewAuthError(c.username, err)
	}
	if out.SessionToken == "" {
		return nil, errors.NewAuthError(c.username, fmt.Errorf("response carried no session token"))
	}

	session := &models.Session{Token: out.SessionToken, Username: out.User.Username}
	if session.Username == "" {
		session.Username = c.username
	}
	if out.SessionExpiration != "" {
		if exp, err := time.Parse(time.RFC3339, out.SessionExpiration); err == nil {
			session.ExpiresAt = exp
		}
	}

	c.safe.AddSecret(session.Token)
	c.safe.Info().
		Str("user", session.Username).
		Time("expires_at", session.ExpiresAt).
		Msg("Logged in")
	return session, nil
}

// isTransient reports whether a failed GET is worth retrying: transport
// failures, throttling and server faults.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var authErr *errors.AuthError
	if errors.As(err, &authErr) || errors.Is(err, errors.ErrMissingCredentials) {
		return false
	}
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var decodeErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return !errors.As(err, &decodeErr) && !errors.As(err, &typeErr)
}
