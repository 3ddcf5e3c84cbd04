// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session keeps the short-lived OAuth state in a signed cookie.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// State is the payload of the OAuth state cookie.
type State struct {
	Nonce     string    `json:"n"`
	ExpiresAt time.Time `json:"e"`
}

// Manager signs and verifies state cookies.
type Manager struct {
	codec      *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a state cookie manager. An empty hash key generates a
// random one, which invalidates pending logins on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(keyLength)
		slog.Warn("session_hash_key_generated", "hint", "set session.hash_key to keep OAuth state valid across restarts")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)

	return &Manager{
		codec:      codec,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

func decodeKey(value, name string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", name, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// Create returns a fresh random state and the cookie that carries it.
func (m *Manager) Create() (string, *http.Cookie, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating state: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(raw)

	data := State{
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}
	encoded, err := m.codec.Encode(m.cookieName, data)
	if err != nil {
		return "", nil, fmt.Errorf("encoding state cookie: %w", err)
	}

	return nonce, m.cookie(encoded, m.maxAge), nil
}

// Parse returns the state stored in the request cookie, or nil when the
// cookie is missing, tampered with or expired.
func (m *Manager) Parse(r *http.Request) (*State, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no state
	}

	var data State
	if err := m.codec.Decode(m.cookieName, c.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // invalid cookie means no state
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Verify reports whether the request carries a valid state cookie matching
// state.
func (m *Manager) Verify(r *http.Request, state string) bool {
	data, _ := m.Parse(r)
	if data == nil || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(data.Nonce), []byte(state)) == 1
}

// Clear returns a cookie that removes the state cookie.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
