package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"librarian/internal/auth"
	"librarian/internal/domain/models"
	"librarian/internal/httputil"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-signing-secret")

func newVerifier() auth.JWTVerifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewKeyfuncVerifier(func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	}, []string{"HS256"}, logger)
}

func signToken(t *testing.T, claims models.SupabaseClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func userClaims(sub, email string, appMetadata map[string]interface{}) models.SupabaseClaims {
	return models.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:       email,
		Role:        "authenticated",
		AppMetadata: appMetadata,
	}
}

func TestAuthMiddleware(t *testing.T) {
	expired := userClaims("u1", "a@example.org", nil)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	anonRole := userClaims("u1", "a@example.org", nil)
	anonRole.Role = "anon"

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
		wantAdmin  bool
		wantRole   string
	}{
		{name: "no header is anonymous", wantStatus: http.StatusOK},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, expired), wantStatus: http.StatusUnauthorized},
		{name: "anon role", header: "Bearer " + signToken(t, anonRole), wantStatus: http.StatusUnauthorized},
		{
			name:       "regular user with roles",
			header:     "Bearer " + signToken(t, userClaims("u2", "b@example.org", map[string]interface{}{"roles": []interface{}{"team-a"}})),
			wantStatus: http.StatusOK,
			wantUser:   "u2",
			wantRole:   "team-a",
		},
		{
			name:       "admin by email",
			header:     "Bearer " + signToken(t, userClaims("u3", "Root@Example.org", nil)),
			wantStatus: http.StatusOK,
			wantUser:   "u3",
			wantAdmin:  true,
		},
		{
			name:       "admin by app role",
			header:     "Bearer " + signToken(t, userClaims("u4", "c@example.org", map[string]interface{}{"role": "admin"})),
			wantStatus: http.StatusOK,
			wantUser:   "u4",
			wantAdmin:  true,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := AuthMiddleware(newVerifier(), AdminByEmail(func(email string) bool { return strings.EqualFold(email, "root@example.org") }), logger)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.Identity
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = httputil.GetIdentity(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/libraries", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			if got.UserID != tt.wantUser || got.Admin != tt.wantAdmin {
				t.Errorf("identity = %+v", got)
			}
			if tt.wantRole != "" && !got.HasAnyRole([]string{tt.wantRole}) {
				t.Errorf("missing role %s in %v", tt.wantRole, got.Roles)
			}
			if got.UserID != "" && !got.HasAnyRole([]string{models.PrivateRoleID(got.UserID)}) {
				t.Errorf("missing private role in %v", got.Roles)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
