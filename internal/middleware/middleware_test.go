package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/config"
	"github.com/iliyamo/field-operations/internal/model"
)

type fakeResolver map[string]model.Actor

func (f fakeResolver) ResolveToken(_ context.Context, raw string) (model.Actor, error) {
	if raw == "down" {
		return model.Actor{}, apperr.Transient(errors.New("dial tcp"), "store unavailable")
	}
	a, ok := f[raw]
	if !ok {
		return model.Actor{}, errors.New("invalid credentials")
	}
	return a, nil
}

func serve(t *testing.T, h echo.HandlerFunc, token string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	r := fakeResolver{
		"pm":  {ID: 7, Role: model.RolePM, Active: true},
		"adm": {ID: 1, Role: model.RoleAdmin, Active: true},
	}
	echoID := func(c echo.Context) error {
		a, ok := ActorFrom(c)
		if !ok {
			return c.String(http.StatusInternalServerError, "no actor")
		}
		return c.String(http.StatusOK, userID(c)+":"+string(a.Role))
	}

	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"unknown token", "nope", http.StatusUnauthorized, ""},
		{"store down", "down", http.StatusServiceUnavailable, ""},
		{"valid", "pm", http.StatusOK, "7:pm"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, echoID, tc.token, Authenticate(r))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}

	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	if rec := serve(t, ok, "pm", Authenticate(r), RequireRole(model.RoleAdmin)); rec.Code != http.StatusForbidden {
		t.Fatalf("pm through admin gate: %d", rec.Code)
	}
	if rec := serve(t, ok, "adm", Authenticate(r), RequireRole(model.RoleAdmin)); rec.Code != http.StatusNoContent {
		t.Fatalf("admin through admin gate: %d", rec.Code)
	}
	// Without Authenticate there is no actor, so the gate denies.
	if rec := serve(t, ok, "", RequireRole(model.RoleAdmin)); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous through admin gate: %d", rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.9"},
		{"user", "rl:user:guest"},
		{"ip_route", "rl:ip:10.0.0.9:route:POST /v1/auth/login"},
		{"", "rl:ip:10.0.0.9:user:guest:route:POST /v1/auth/login"},
	}
	for _, tc := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}, c)
		if got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.strategy, got, tc.want)
		}
	}

	SetActor(c, model.Actor{ID: 12, Role: model.RoleField, Active: true})
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:12" {
		t.Fatalf("authenticated key = %q", got)
	}
}

func TestTokenBucketWithoutRedisPasses(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	for i := 0; i < 3; i++ {
		if rec := serve(t, ok, "", mw); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	fail := func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") }
	rec := serve(t, fail, "", RequestLogger())
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}
