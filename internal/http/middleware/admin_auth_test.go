package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testAdminSecret = "seed-calendar-secret"

func adminToken(t *testing.T, method jwt.SigningMethod, key any, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "studio-owner"}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serveAdmin(secret, authorization string, next http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin/seed", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	AdminJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func TestAdminJWTRejects(t *testing.T) {
	key := []byte(testAdminSecret)
	soon := time.Now().Add(5 * time.Minute)

	tests := []struct {
		name          string
		secret        string
		authorization string
	}{
		{"auth disabled", "", "Bearer " + adminToken(t, jwt.SigningMethodHS256, key, soon)},
		{"no header", testAdminSecret, ""},
		{"basic scheme", testAdminSecret, "Basic " + adminToken(t, jwt.SigningMethodHS256, key, soon)},
		{"empty bearer", testAdminSecret, "Bearer   "},
		{"wrong secret", testAdminSecret, "Bearer " + adminToken(t, jwt.SigningMethodHS256, []byte("other"), soon)},
		{"no expiry", testAdminSecret, "Bearer " + adminToken(t, jwt.SigningMethodHS256, key, time.Time{})},
		{"expired", testAdminSecret, "Bearer " + adminToken(t, jwt.SigningMethodHS256, key, time.Now().Add(-time.Minute))},
		{"hs512", testAdminSecret, "Bearer " + adminToken(t, jwt.SigningMethodHS512, key, soon)},
		{"unsigned", testAdminSecret, "Bearer " + adminToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, soon)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveAdmin(tt.secret, tt.authorization, func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler must not run")
			})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAdminJWTPassesClaimsToHandler(t *testing.T) {
	token := adminToken(t, jwt.SigningMethodHS256, []byte(testAdminSecret), time.Now().Add(time.Hour))

	var subject string
	rec := serveAdmin(testAdminSecret, "Bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("expected admin claims in context")
		}
		subject = claims.Subject
		w.WriteHeader(http.StatusCreated)
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if subject != "studio-owner" {
		t.Fatalf("expected subject studio-owner, got %q", subject)
	}
}
