package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessGuard(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		headers    map[string]string
		wantStatus int
	}{
		{
			name:       "disabled guard passes everything",
			key:        "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			key:        "secret",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			key:        "secret",
			headers:    map[string]string{AccessKeyHeader: "guess"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "header key",
			key:        "secret",
			headers:    map[string]string{AccessKeyHeader: "secret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer key",
			key:        "secret",
			headers:    map[string]string{"Authorization": "Bearer secret"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewAccessGuard(tt.key)

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			g.Middleware(next).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if nextCalled != (tt.wantStatus == http.StatusOK) {
				t.Fatalf("next called = %v, want %v", nextCalled, tt.wantStatus == http.StatusOK)
			}
		})
	}
}
