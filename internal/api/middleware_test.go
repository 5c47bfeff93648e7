package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
)

const testIssuer = "http://keycloak.test/auth/realms/camunda-platform"

func newJWKSServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestKeycloakAuthMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwks := newJWKSServer(t, key, "k1")

	var seen domain.Caller
	handler := KeycloakAuthMiddleware(AuthConfig{JWKSURL: jwks.URL, ExpectedIssuer: testIssuer}, logging.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = CallerFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	valid := jwt.MapClaims{
		"iss":                testIssuer,
		"sub":                "9f1c",
		"preferred_username": "erika",
		"exp":                time.Now().Add(time.Hour).Unix(),
		"realm_access":       map[string]interface{}{"roles": []string{"basic", "offline_access"}},
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + signToken(t, key, "k1", valid), status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{
			name: "wrong issuer",
			header: "Bearer " + signToken(t, key, "k1", jwt.MapClaims{
				"iss": "http://elsewhere", "preferred_username": "erika", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, key, "k1", jwt.MapClaims{
				"iss": testIssuer, "preferred_username": "erika", "exp": time.Now().Add(-time.Hour).Unix(),
			}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "unknown kid",
			header: "Bearer " + signToken(t, key, "k2", valid),
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/customers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	if seen.Username != "erika" || seen.Subject != "9f1c" {
		t.Fatalf("unexpected caller %+v", seen)
	}
	if !seen.HasRole(domain.RoleBasic) || seen.Roles[0] != "BASIC" {
		t.Fatalf("expected upper-cased realm roles, got %v", seen.Roles)
	}
	if seen.Token == "" {
		t.Fatal("expected raw token on caller")
	}
}

func TestRequireRoles(t *testing.T) {
	handler := RequireRoles(domain.RoleAdmin, domain.RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		caller *domain.Caller
		status int
	}{
		{name: "anonymous", caller: nil, status: http.StatusUnauthorized},
		{name: "customer", caller: &domain.Caller{Username: "erika", Roles: []string{domain.RoleBasic}}, status: http.StatusForbidden},
		{name: "clerk", caller: &domain.Caller{Username: "clerk", Roles: []string{"user"}}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/customers", nil)
			if tt.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), *tt.caller))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

type limiterStub struct {
	count    int
	err      error
	subjects []string
}

func (l *limiterStub) ConsumeRateLimit(_ context.Context, _, subject string, _ int, _ time.Duration) (int, int, error) {
	l.subjects = append(l.subjects, subject)
	if l.err != nil {
		return 0, 0, l.err
	}
	l.count++
	return l.count, 42, nil
}

func TestMutationRateLimit(t *testing.T) {
	limiter := &limiterStub{}
	handler := MutationRateLimit(limiter, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/customers", nil)
		req = req.WithContext(WithCaller(req.Context(), domain.Caller{Username: "erika"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(http.MethodGet); rec.Code != http.StatusNoContent {
		t.Fatalf("reads are not limited, got %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		if rec := send(http.MethodPost); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}
	rec := send(http.MethodPut)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "42" {
		t.Fatalf("expected Retry-After 42, got %q", rec.Header().Get("Retry-After"))
	}
	if len(limiter.subjects) != 3 || limiter.subjects[0] != "user:erika" {
		t.Fatalf("unexpected limiter subjects %v", limiter.subjects)
	}

	limiter.err = errors.New("redis down")
	if rec := send(http.MethodDelete); rec.Code != http.StatusNoContent {
		t.Fatalf("limiter failure should let the request through, got %d", rec.Code)
	}
}

func TestParseETag(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: `"0"`, want: 0},
		{raw: `"17"`, want: 17},
		{raw: `W/"3"`, want: 3},
		{raw: `""`, wantErr: true},
		{raw: `3`, wantErr: true},
		{raw: `"x"`, wantErr: true},
		{raw: `"-1"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseETag(tt.raw)
			if tt.wantErr {
				if domain.KindOf(err) != domain.KindInvalidArgument {
					t.Fatalf("parseETag(%q) expected invalid argument, got %v", tt.raw, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("parseETag(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[domain.ErrorKind]int{
		domain.KindNotFound:             http.StatusNotFound,
		domain.KindEmailExists:          http.StatusConflict,
		domain.KindVersionOutdated:      http.StatusPreconditionFailed,
		domain.KindAccessForbidden:      http.StatusForbidden,
		domain.KindConstraintViolations: http.StatusUnprocessableEntity,
		domain.KindSignUpFailed:         http.StatusBadGateway,
		domain.KindRateLimited:          http.StatusTooManyRequests,
		domain.ErrorKind("mystery"):     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusFor(kind); got != want {
			t.Fatalf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, logging.Nop(), errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Internal server error" || body.Type != string(domain.KindInternal) {
		t.Fatalf("unexpected body %+v", body)
	}
}
