/**
 * @description
 * This package provides a client for the Keycloak token, userinfo and admin
 * REST endpoints of a single realm.
 *
 * Key features:
 * - Password-grant login with HTTP basic client authentication.
 * - User, realm-role and credential management through the admin API.
 * - Non-2xx responses surface as *APIError carrying status and body.
 *
 * @dependencies
 * - net/http, encoding/json: transport and encoding.
 * - github.com/sirupsen/logrus: request logging.
 */
package keycloakclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is a client for one Keycloak realm.
type Client struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          logrus.FieldLogger
}

// NewClient creates a Keycloak client. baseURL is the server root, e.g.
// http://localhost:18080; the /auth prefix is added per request.
func NewClient(baseURL, realm, clientID, clientSecret string, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: logger.WithField("component", "keycloak-client"),
	}
}

// Token is the token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserInfo is the userinfo endpoint response.
type UserInfo struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
}

// Credential is a user credential in the admin API.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// User is the admin API user representation.
type User struct {
	ID          string       `json:"id,omitempty"`
	Username    string       `json:"username,omitempty"`
	Enabled     bool         `json:"enabled"`
	FirstName   string       `json:"firstName,omitempty"`
	LastName    string       `json:"lastName,omitempty"`
	Email       string       `json:"email,omitempty"`
	Credentials []Credential `json:"credentials,omitempty"`
}

// Role is a realm role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("keycloak API error: %s %s: status %d, body: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Login exchanges username and password for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", "openid")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.realmURL("protocol/openid-connect/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	var token Token
	if err := c.send(req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// UserInfo resolves the subject of accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, http.MethodPost, c.realmURL("protocol/openid-connect/userinfo"), accessToken, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateUser registers a user.
func (c *Client) CreateUser(ctx context.Context, adminToken string, user User) error {
	return c.do(ctx, http.MethodPost, c.adminURL("users"), adminToken, user, nil)
}

// UpdateUser replaces the given attributes of user userID.
func (c *Client) UpdateUser(ctx context.Context, adminToken, userID string, user User) error {
	return c.do(ctx, http.MethodPut, c.adminURL("users/"+url.PathEscape(userID)), adminToken, user, nil)
}

// ResetPassword sets a new credential for userID.
func (c *Client) ResetPassword(ctx context.Context, adminToken, userID string, credential Credential) error {
	return c.do(ctx, http.MethodPut, c.adminURL("users/"+url.PathEscape(userID)+"/reset-password"), adminToken, credential, nil)
}

// DeleteUser removes userID.
func (c *Client) DeleteUser(ctx context.Context, adminToken, userID string) error {
	return c.do(ctx, http.MethodDelete, c.adminURL("users/"+url.PathEscape(userID)), adminToken, nil, nil)
}

// FindUsersByUsername lists users whose username matches exactly.
func (c *Client) FindUsersByUsername(ctx context.Context, adminToken, username string) ([]User, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("exact", "true")

	var users []User
	if err := c.do(ctx, http.MethodGet, c.adminURL("users")+"?"+query.Encode(), adminToken, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// RealmRoles lists the realm roles.
func (c *Client) RealmRoles(ctx context.Context, adminToken string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, c.adminURL("roles"), adminToken, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRealmRoles adds realm role mappings to userID.
func (c *Client) AssignRealmRoles(ctx context.Context, adminToken, userID string, roles []Role) error {
	return c.do(ctx, http.MethodPost, c.adminURL("users/"+url.PathEscape(userID)+"/role-mappings/realm"), adminToken, roles, nil)
}

func (c *Client) realmURL(path string) string {
	return fmt.Sprintf("%s/auth/realms/%s/%s", c.baseURL, url.PathEscape(c.realm), path)
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/auth/admin/realms/%s/%s", c.baseURL, url.PathEscape(c.realm), path)
}

// do sends a JSON request authorised with bearer.
func (c *Client) do(ctx context.Context, method, endpoint, bearer string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	return c.send(req, target)
}

func (c *Client) send(req *http.Request, target interface{}) error {
	c.log.WithFields(logrus.Fields{"method": req.Method, "path": req.URL.Path}).Debug("keycloak request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{"method": req.Method, "path": req.URL.Path, "status": resp.StatusCode}).
			Warn("keycloak returned non-success status")
		return &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}
	return nil
}
