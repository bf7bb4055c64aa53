package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/log"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(log.Discard())
	tests := []struct {
		name       string
		target     string
		method     string
		userAgent  string
		suspicious bool
	}{
		{"plain page", "/projects", http.MethodGet, "Mozilla/5.0", false},
		{"api with query", "/api/totals?date=2024-01-08", http.MethodGet, "curl/8.0", false},
		{"path traversal", "/static/../.env", http.MethodGet, "", true},
		{"wordpress probe", "/wp-admin/", http.MethodGet, "", true},
		{"scanner", "/", http.MethodGet, "sqlmap/1.7", true},
		{"trace method", "/", "TRACE", "", true},
		{"injection in query", "/entries?q=union+select", http.MethodGet, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.userAgent)
			assert.Equal(t, tt.suspicious, d.DetectSuspiciousRequest(req))
		})
	}
	assert.Equal(t, int64(5), d.SuspiciousRequests())
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector(log.Discard())
	h := d.Middleware(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "suspicious paths are logged, not blocked")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, int64(2), d.SuspiciousRequests())
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(log.Discard())

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarded", "203.0.113.7:5555", "1.2.3.4", "", "203.0.113.7"},
		{"loopback proxy uses forwarded", "127.0.0.1:80", "198.51.100.1", "", "198.51.100.1"},
		{"spoofed left hops are ignored", "127.0.0.1:80", "6.6.6.6, 198.51.100.1", "", "198.51.100.1"},
		{"trusted hops are skipped", "127.0.0.1:80", "198.51.100.1, 127.0.0.2", "", "198.51.100.1"},
		{"trusted proxy uses real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"lan peer is not a proxy", "192.168.1.5:80", "1.2.3.4", "", "192.168.1.5"},
		{"garbage forwarded falls back", "127.0.0.1:80", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(req))
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(log.Discard())
	require.Error(t, d.AddTrustedProxy("nope"))
	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
	require.NoError(t, d.AddTrustedProxy("172.17.0.1"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 172.17.0.1")
	assert.Equal(t, "1.2.3.4", d.ExtractClientIP(req))
}

func TestExtractClientIP_SpoofedForwardedSharesBudget(t *testing.T) {
	d := NewDetector(log.Discard())
	require.NoError(t, d.AddTrustedProxy("10.0.0.0/8"))

	seen := map[string]bool{}
	for _, spoof := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.2:443"
		// the proxy appends the address it saw after whatever the client sent
		req.Header.Set("X-Forwarded-For", spoof+", 198.51.100.7")
		seen[d.ExtractClientIP(req)] = true
	}
	assert.Equal(t, map[string]bool{"198.51.100.7": true}, seen)
}

func TestParseProxy(t *testing.T) {
	n, err := ParseProxy("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3/32", n.String())

	n, err = ParseProxy(" fd00::/8 ")
	require.NoError(t, err)
	assert.Equal(t, "fd00::/8", n.String())

	_, err = ParseProxy("10.0.0.0/99")
	assert.Error(t, err)
}
