package pixiv

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixivwatch/pkg/errors"
	"pixivwatch/pkg/ratelimit"
)

// mockRoundTripper lets tests script HTTP responses per request
type mockRoundTripper struct {
	fn       func(req *http.Request) (*http.Response, error)
	requests []*http.Request
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	return m.fn(req)
}

func newTestSession(rt *mockRoundTripper) *Session {
	return RestoreSession(
		State{
			AccessToken:  "test-access",
			RefreshToken: "test-refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		WithHTTPClient(&http.Client{Transport: rt}),
		WithLimiter(ratelimit.Unlimited{}),
	)
}

func response(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       newBody(body),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}
}

type stringBody struct{ *strings.Reader }

func (stringBody) Close() error { return nil }

func newBody(s string) stringBody {
	return stringBody{strings.NewReader(s)}
}

func TestFetchFollowFeedParsesPage(t *testing.T) {
	feedJSON := `{
		"illusts": [
			{
				"id": 101,
				"title": "first",
				"create_date": "2026-08-20T12:30:00+09:00",
				"is_bookmarked": false,
				"image_urls": {"square_medium": "https://i.example/101_sq.jpg"}
			},
			{
				"id": 102,
				"title": "second",
				"is_bookmarked": true,
				"image_urls": {"square_medium": "https://i.example/102_sq.jpg"}
			}
		],
		"next_url": "https://app-api.pixiv.net/v2/illust/follow?offset=30"
	}`
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusOK, feedJSON), nil
	}}
	session := newTestSession(rt)

	page, err := session.FetchFollowFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, page.Illusts, 2)

	assert.Equal(t, IllustID(101), page.Illusts[0].ID)
	assert.Equal(t, "first", page.Illusts[0].Title)
	assert.False(t, page.Illusts[0].IsBookmarked)
	assert.True(t, page.Illusts[1].IsBookmarked)
	assert.Equal(t, "https://i.example/101_sq.jpg", page.Illusts[0].ImageURLs.SquareMedium)
	assert.NotEmpty(t, page.NextURL)

	req := rt.requests[0]
	assert.Equal(t, "Bearer test-access", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get("X-Client-Time"))
	assert.NotEmpty(t, req.Header.Get("X-Client-Hash"))
}

func TestFetchPageEmptyCursor(t *testing.T) {
	session := newTestSession(&mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}})

	_, err := session.FetchPage(context.Background(), "")
	assert.Error(t, err)
}

func TestStatusCodeClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusTooManyRequests, errors.ErrorTypeNetwork},
		{http.StatusInternalServerError, errors.ErrorTypeNetwork},
		{http.StatusBadGateway, errors.ErrorTypeNetwork},
		{http.StatusTeapot, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
				return response(req, tt.status, "{}"), nil
			}}
			session := newTestSession(rt)

			_, err := session.FetchFollowFeed(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", errors.TypeOf(err))
		})
	}
}

func TestFetchFollowFeedMalformedJSON(t *testing.T) {
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusOK, "<html>maintenance</html>"), nil
	}}
	session := newTestSession(rt)

	_, err := session.FetchFollowFeed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
}

func TestEnsureAuthedSkipsWhenFresh(t *testing.T) {
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		t.Fatal("no token refresh expected while the access token is fresh")
		return nil, nil
	}}
	session := newTestSession(rt)

	assert.NoError(t, session.EnsureAuthed(context.Background()))
}

func TestEnsureAuthedRefreshesExpiredToken(t *testing.T) {
	authJSON := `{
		"access_token": "new-access",
		"refresh_token": "new-refresh",
		"expires_in": 3600
	}`
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, AuthURL, req.URL.String())
		assert.Equal(t, http.MethodPost, req.Method)
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
		assert.Equal(t, "test-refresh", req.PostForm.Get("refresh_token"))
		return response(req, http.StatusOK, authJSON), nil
	}}
	session := RestoreSession(
		State{AccessToken: "stale", RefreshToken: "test-refresh", ExpiresAt: time.Now().Add(-time.Minute)},
		WithHTTPClient(&http.Client{Transport: rt}),
		WithLimiter(ratelimit.Unlimited{}),
	)

	require.NoError(t, session.EnsureAuthed(context.Background()))

	st := session.State()
	assert.Equal(t, "new-access", st.AccessToken)
	assert.Equal(t, "new-refresh", st.RefreshToken)
	assert.True(t, st.ExpiresAt.After(time.Now()))
}

func TestAuthenticateRejectedToken(t *testing.T) {
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusBadRequest, `{"error": "invalid_grant"}`), nil
	}}
	session := RestoreSession(
		State{RefreshToken: "revoked"},
		WithHTTPClient(&http.Client{Transport: rt}),
		WithLimiter(ratelimit.Unlimited{}),
	)

	err := session.EnsureAuthed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestAuthenticateWithoutRefreshToken(t *testing.T) {
	session := RestoreSession(State{},
		WithHTTPClient(&http.Client{Transport: &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		}}}),
		WithLimiter(ratelimit.Unlimited{}),
	)

	err := session.EnsureAuthed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestDownloadImageSetsReferer(t *testing.T) {
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, BaseURL+"/", req.Header.Get("Referer"))
		return response(req, http.StatusOK, "jpegbytes"), nil
	}}
	session := newTestSession(rt)

	data, err := session.DownloadImage(context.Background(), "https://i.example/101_sq.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestDownloadImageForbidden(t *testing.T) {
	rt := &mockRoundTripper{fn: func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusForbidden, ""), nil
	}}
	session := newTestSession(rt)

	_, err := session.DownloadImage(context.Background(), "https://i.example/101_sq.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}
