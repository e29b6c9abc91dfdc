package pixiv

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pixivwatch/pkg/errors"
	"pixivwatch/pkg/logger"
	"pixivwatch/pkg/ratelimit"
)

// State is the restorable authentication state of a session. It is embedded
// in the durable state file so a restart does not need a fresh token exchange.
type State struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session is an authenticated Pixiv app-API client
type Session struct {
	httpClient *http.Client
	userAgent  string
	state      State
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// Option configures a Session
type Option func(*Session)

// WithHTTPClient overrides the HTTP client, mainly for tests
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithUserAgent overrides the client user agent
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithLimiter overrides the request pacing limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

func newSession(opts ...Option) *Session {
	s := &Session{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  defaultUserAgent,
		limiter:    ratelimit.NewTokenBucket(30, time.Minute),
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession performs the initial token exchange for a refresh token
func NewSession(ctx context.Context, refreshToken string, opts ...Option) (*Session, error) {
	s := newSession(opts...)
	s.state.RefreshToken = refreshToken
	if err := s.authenticate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// RestoreSession rebuilds a session from previously persisted state
func RestoreSession(state State, opts ...Option) *Session {
	s := newSession(opts...)
	s.state = state
	return s
}

// State returns the persistable authentication state
func (s *Session) State() State {
	return s.state
}

// EnsureAuthed refreshes the access token when it is missing or expired
func (s *Session) EnsureAuthed(ctx context.Context) error {
	if s.state.AccessToken != "" && time.Now().Before(s.state.ExpiresAt) {
		return nil
	}
	return s.authenticate(ctx)
}

// authenticate exchanges the refresh token for a fresh access token
func (s *Session) authenticate(ctx context.Context) error {
	if s.state.RefreshToken == "" {
		return errors.New(errors.ErrorTypeAuth, "no refresh token configured")
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.state.RefreshToken)
	form.Set("include_policy", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, "failed to create auth request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setClientHeaders(req)

	s.logger.Debug("refreshing access token")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, "token refresh failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithCode(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read auth response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		// A rejected refresh token is an operator problem, not a transient one
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return errors.WithCode(errors.ErrorTypeAuth, resp.StatusCode, "refresh token rejected")
		}
		return errors.WithCode(errors.TypeFromStatusCode(resp.StatusCode), resp.StatusCode, "token endpoint returned %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return errors.WithCode(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse auth response: %v", err)
	}
	if auth.AccessToken == "" {
		return errors.WithCode(errors.ErrorTypeAuth, resp.StatusCode, "auth response missing access token")
	}

	s.state.AccessToken = auth.AccessToken
	if auth.RefreshToken != "" {
		s.state.RefreshToken = auth.RefreshToken
	}
	// Refresh one minute early so in-flight ticks never race expiry
	s.state.ExpiresAt = time.Now().Add(time.Duration(auth.ExpiresIn)*time.Second - time.Minute)

	s.logger.InfoWithFields("access token refreshed", map[string]interface{}{
		"expires_at": s.state.ExpiresAt,
	})

	return nil
}

// setClientHeaders sets the headers the app API requires on every request
func (s *Session) setClientHeaders(req *http.Request) {
	now := time.Now().Format(time.RFC3339)
	hash := md5.Sum([]byte(now + hashSecret))
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Client-Time", now)
	req.Header.Set("X-Client-Hash", fmt.Sprintf("%x", hash))
	req.Header.Set("Accept-Language", "en-US")
}

// FetchFollowFeed fetches page 1 of the followed-artists feed
func (s *Session) FetchFollowFeed(ctx context.Context) (*Page, error) {
	return s.fetchPage(ctx, FollowFeedURL("public"))
}

// FetchPage follows an opaque next-page cursor
func (s *Session) FetchPage(ctx context.Context, nextURL string) (*Page, error) {
	if nextURL == "" {
		return nil, errors.New(errors.ErrorTypeUnknown, "empty page cursor")
	}
	return s.fetchPage(ctx, nextURL)
}

func (s *Session) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	s.limiter.Wait()

	var page Page
	if err := s.getJSON(ctx, pageURL, &page); err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("fetched feed page", map[string]interface{}{
		"illusts":  len(page.Illusts),
		"has_next": page.NextURL != "",
	})

	return &page, nil
}

// getJSON performs an authenticated GET and decodes the JSON response
func (s *Session) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	s.setClientHeaders(req)
	req.Header.Set("Authorization", "Bearer "+s.state.AccessToken)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		return errors.New(errors.ErrorTypeNetwork, "network error: %v", err)
	}
	defer resp.Body.Close()

	s.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := s.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithCode(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		s.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"body_preview": preview,
		})
		return errors.WithCode(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP status codes to classified errors
func (s *Session) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		s.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.WithCode(errors.ErrorTypeAuth, resp.StatusCode, "authentication required")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.WithCode(errors.ErrorTypeNetwork, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		return errors.WithCode(errors.ErrorTypeNetwork, resp.StatusCode, "server error")
	default:
		return errors.WithCode(errors.ErrorTypeUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// DownloadImage fetches thumbnail bytes. Image hosts require the app
// referer or they respond 403.
func (s *Session) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Referer", BaseURL+"/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, "failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithCode(errors.TypeFromStatusCode(resp.StatusCode), resp.StatusCode, "image host returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, "failed to read image data: %v", err)
	}

	s.logger.DebugWithFields("downloaded image", map[string]interface{}{
		"url":  imageURL,
		"size": len(data),
	})

	return data, nil
}
