package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// realmKeys caches the realm's RSA signing keys by kid and refetches the
// certificate endpoint when the cache is stale or a kid is unknown.
type realmKeys struct {
	certsURL string
	client   *http.Client
	ttl      time.Duration

	mu        sync.RWMutex
	fetchedAt time.Time
	byKID     map[string]*rsa.PublicKey
}

type jsonWebKey struct {
	KID string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newRealmKeys(certsURL string) *realmKeys {
	return &realmKeys{
		certsURL: strings.TrimSpace(certsURL),
		client:   &http.Client{Timeout: 5 * time.Second},
		ttl:      10 * time.Minute,
		byKID:    make(map[string]*rsa.PublicKey),
	}
}

// keyfunc resolves the verification key named by the token's kid header.
func (k *realmKeys) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("token header has no kid")
		}
		if key, fresh := k.lookup(kid); key != nil && fresh {
			return key, nil
		}
		if err := k.fetch(ctx); err != nil {
			return nil, err
		}
		if key, _ := k.lookup(kid); key != nil {
			return key, nil
		}
		return nil, errors.Errorf("no signing key with kid %q", kid)
	}
}

func (k *realmKeys) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.byKID[kid], time.Since(k.fetchedAt) < k.ttl
}

func (k *realmKeys) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.certsURL, nil)
	if err != nil {
		return errors.Wrap(err, "build certs request")
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch realm certs")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("realm certs endpoint answered %d", resp.StatusCode)
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return errors.Wrap(err, "decode realm certs")
	}

	fetched := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		// Keycloak also publishes encryption keys under "enc".
		if jwk.KID == "" || jwk.Kty != "RSA" || jwk.Use == "enc" {
			continue
		}
		if pub, err := jwk.rsaKey(); err == nil {
			fetched[jwk.KID] = pub
		}
	}
	if len(fetched) == 0 {
		return errors.New("realm publishes no RSA signing keys")
	}

	k.mu.Lock()
	k.byKID = fetched
	k.fetchedAt = time.Now()
	k.mu.Unlock()
	return nil
}

func (jwk jsonWebKey) rsaKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil || len(modulus) == 0 {
		return nil, errors.New("bad modulus")
	}
	exponent, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil || len(exponent) == 0 {
		return nil, errors.New("bad exponent")
	}
	e := new(big.Int).SetBytes(exponent)
	if !e.IsInt64() || e.Int64() <= 1 {
		return nil, errors.New("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(e.Int64())}, nil
}
