package keycloakclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoginPostsPasswordGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/realms/camunda-platform/protocol/openid-connect/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "person-client" || pass != "s3cret" {
			t.Fatalf("expected basic client auth, got %q/%q", user, pass)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("grant_type") != "password" || form.Get("username") != "erika" || form.Get("password") != "Abcdef1!" {
			t.Fatalf("unexpected form %v", form)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 300, "token_type": "Bearer"})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "camunda-platform", "person-client", "s3cret", quietLogger())
	token, err := client.Login(context.Background(), "erika", "Abcdef1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token.AccessToken != "tok" {
		t.Fatalf("expected token tok, got %q", token.AccessToken)
	}
}

func TestAdminCallsUseBearerAndPaths(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer admin" {
			t.Fatalf("expected bearer admin, got %q", got)
		}
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/admin/realms/r1/users":
			_ = json.NewEncoder(w).Encode([]User{{ID: "u-1", Username: r.URL.Query().Get("username")}})
		case r.Method == http.MethodGet && r.URL.Path == "/auth/admin/realms/r1/roles":
			_ = json.NewEncoder(w).Encode([]Role{{ID: "role-1", Name: "Basic"}})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewClient(server.URL, "r1", "c", "s", quietLogger())

	users, err := client.FindUsersByUsername(ctx, "admin", "erika")
	if err != nil || len(users) != 1 || users[0].ID != "u-1" {
		t.Fatalf("find users: %v %v", users, err)
	}
	roles, err := client.RealmRoles(ctx, "admin")
	if err != nil || len(roles) != 1 {
		t.Fatalf("roles: %v %v", roles, err)
	}
	if err := client.AssignRealmRoles(ctx, "admin", "u-1", roles); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := client.ResetPassword(ctx, "admin", "u-1", Credential{Type: "password", Value: "x"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := client.DeleteUser(ctx, "admin", "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{
		"GET /auth/admin/realms/r1/users?exact=true&username=erika",
		"GET /auth/admin/realms/r1/roles",
		"POST /auth/admin/realms/r1/users/u-1/role-mappings/realm",
		"PUT /auth/admin/realms/r1/users/u-1/reset-password",
		"DELETE /auth/admin/realms/r1/users/u-1",
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q", i, want[i], seen[i])
		}
	}
}

func TestNonSuccessStatusIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"errorMessage":"User exists with same username"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "r1", "c", "s", quietLogger())
	err := client.CreateUser(context.Background(), "admin", User{Username: "erika", Enabled: true})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Path != "/auth/admin/realms/r1/users" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
