package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		headers    map[string]string
		want       string
	}{
		{"remote addr", false, nil, "192.0.2.1"},
		{"forwarded ignored", false, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.1"},
		{"forwarded first hop", true, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", true, map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
		{"cloudflare", true, map[string]string{"CF-Connecting-IP": "203.0.113.9"}, "203.0.113.9"},
		{"no headers behind proxy", true, nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIdentifier(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetClientIP(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetClientIP_Unknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unknown", GetClientIP(req.Context()))
}

type checkerFunc func(ip, operator string) error

func (f checkerFunc) CheckSummary(ip, operator string) error { return f(ip, operator) }

func TestRateLimit(t *testing.T) {
	var gotIP, gotOperator string
	deny := false
	l := checkerFunc(func(ip, operator string) error {
		gotIP, gotOperator = ip, operator
		if deny {
			return errors.New("slow down")
		}
		return nil
	})

	h := ClientIdentifier(false)(RateLimit(l, func(*http.Request) string { return "analyst" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "analyst", gotOperator)

	deny = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"slow down"}`, rec.Body.String())
}
