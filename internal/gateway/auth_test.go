package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/concierge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"secret", "secret", true},
		{"secret", "wrong", false},
		{"short", "much-longer-secret", false},
		{"", "", true},
		{"", "secret", false},
		{"secret", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeEqual(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestResolveAuth(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "abc"})
		assert.Equal(t, "token", auth.Mode)
		assert.Equal(t, "abc", auth.Token)
	})
	t.Run("defaults to token mode", func(t *testing.T) {
		t.Setenv("CONCIERGE_GATEWAY_PASSWORD", "")
		assert.Equal(t, "token", ResolveAuth(config.GatewayAuth{}).Mode)
	})
	t.Run("password mode when password set", func(t *testing.T) {
		assert.Equal(t, "password", ResolveAuth(config.GatewayAuth{Password: "p"}).Mode)
	})
	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("CONCIERGE_GATEWAY_TOKEN", "env-token")
		t.Setenv("CONCIERGE_GATEWAY_PASSWORD", "env-pass")
		auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
		assert.Equal(t, "env-token", auth.Token)
		assert.Equal(t, "env-pass", auth.Password)
	})
	t.Run("config overrides env", func(t *testing.T) {
		t.Setenv("CONCIERGE_GATEWAY_TOKEN", "env-token")
		auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
		assert.Equal(t, "config-token", auth.Token)
	})
}

func TestAuthorize(t *testing.T) {
	tokenAuth := ResolvedAuth{Mode: "token", Token: "tok"}
	passAuth := ResolvedAuth{Mode: "password", Password: "pw"}

	tests := []struct {
		name       string
		server     ResolvedAuth
		client     *ConnectAuth
		ok         bool
		method     string
		wantReason string
	}{
		{"none mode accepts anything", ResolvedAuth{Mode: "none"}, nil, true, "none", ""},
		{"token success", tokenAuth, &ConnectAuth{Token: "tok"}, true, "token", ""},
		{"token mismatch", tokenAuth, &ConnectAuth{Token: "nope"}, false, "", "token_mismatch"},
		{"token missing", tokenAuth, &ConnectAuth{}, false, "", "token required"},
		{"server token unset", ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "x"}, false, "", "server token not configured"},
		{"password success", passAuth, &ConnectAuth{Password: "pw"}, true, "password", ""},
		{"password mismatch", passAuth, &ConnectAuth{Password: "no"}, false, "", "password_mismatch"},
		{"password missing", passAuth, &ConnectAuth{}, false, "", "password required"},
		{"server password unset", ResolvedAuth{Mode: "password"}, &ConnectAuth{Password: "x"}, false, "", "server password not configured"},
		{"nil credentials", tokenAuth, nil, false, "", "no credentials provided"},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{Token: "x"}, false, "", "unknown auth mode: oauth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestCredentialsFromRequest(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/reservations", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got := credentialsFromRequest(req)
		if tt.want == "" {
			assert.Nil(t, got, tt.header)
			continue
		}
		require.NotNil(t, got, tt.header)
		assert.Equal(t, tt.want, got.Token)
		assert.Equal(t, tt.want, got.Password)
	}
}

func TestBearerAuthorizesPasswordMode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer pw")
	res := Authorize(ResolvedAuth{Mode: "password", Password: "pw"}, credentialsFromRequest(req))
	assert.True(t, res.OK)
	assert.Equal(t, "password", res.Method)
}

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest("GET", "/v1/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"nothing configured", nil, "http://evil.com", false},
		{"wildcard", []string{"*"}, "http://anything.com", true},
		{"exact match", []string{"http://allowed.com"}, "http://allowed.com", true},
		{"no match", []string{"http://allowed.com"}, "http://evil.com", false},
		{"second of several", []string{"http://one.com", "http://two.com"}, "http://two.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkWebSocketOrigin(tt.allowed)(originRequest(tt.origin)))
		})
	}
}
