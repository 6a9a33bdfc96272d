package api

import (
	"crypto/subtle"
	"errors"
	"strings"

	"leihlokal/internal/config"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	clientKeyUnknown    = "unknown"

	PermReadGrid      = "read:grid"
	PermWriteBookings = "write:bookings"
	PermWriteItems    = "write:items"
	PermRecords       = "records"
)

var (
	errUnauthenticated  = errors.New("invalid api key")
	errMissingKey       = errors.New("missing api key")
	errPermissionDenied = errors.New("permission denied")
)

// Authenticator checks API keys and per-client permissions for both transports.
type Authenticator struct {
	cfg             config.APIAuthConfig
	clientsByAPIKey map[string]config.APIClientKey
}

func NewAuthenticator(cfg config.APIAuthConfig) *Authenticator {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &Authenticator{cfg: cfg, clientsByAPIKey: m}
}

func (a *Authenticator) Enabled() bool {
	return a.cfg.Enabled
}

// HeaderName is the lower-case API key header.
func (a *Authenticator) HeaderName() string {
	h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

// Check resolves apiKey to a client holding the required permission.
func (a *Authenticator) Check(apiKey, required string) (config.APIClientKey, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return config.APIClientKey{}, errMissingKey
	}

	var client config.APIClientKey
	found := false
	for key, c := range a.clientsByAPIKey {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			client, found = c, true
			break
		}
	}
	if !found {
		return config.APIClientKey{}, errUnauthenticated
	}

	if !hasPermission(client, required) {
		return client, errPermissionDenied
	}
	return client, nil
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if p = strings.TrimSpace(p); p == required || p == "*" {
			return true
		}
	}
	return false
}

// bearerToken extracts the token of an "Authorization: Bearer ..." header.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
