// Package auth supplies the current user identity and password verification
// for the HTTP surface. Full authentication flows are out of scope; the
// bundled provider models a single-user deployment.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for password hashing.
const (
	saltSize = 16
	scryptN  = 32768 // 2^15
	scryptR  = 8
	scryptP  = 1
	keySize  = 32
)

// User is the authenticated owner of the project documents.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider supplies the current user identity. The state container treats a
// missing user as: do not fetch, do not save, empty project list.
type Provider interface {
	CurrentUser() (User, bool)
}

// StaticProvider holds a fixed user set at startup, with optional sign-out.
type StaticProvider struct {
	mu       sync.RWMutex
	user     User
	signedIn bool
}

// NewStaticProvider creates a provider with the given signed-in user.
func NewStaticProvider(user User) *StaticProvider {
	return &StaticProvider{user: user, signedIn: true}
}

// NewSignedOutProvider creates a provider with no current user.
func NewSignedOutProvider() *StaticProvider {
	return &StaticProvider{}
}

// CurrentUser returns the configured user when signed in.
func (p *StaticProvider) CurrentUser() (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.signedIn {
		return User{}, false
	}
	return p.user, true
}

// SignIn sets the current user.
func (p *StaticProvider) SignIn(user User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
	p.signedIn = true
}

// SignOut clears the current user.
func (p *StaticProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = User{}
	p.signedIn = false
}

// HashPassword derives a scrypt hash for storage, encoded as salt$key in
// base64.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword checks a password against a stored salt$key hash.
func VerifyPassword(password, stored string) bool {
	parts := strings.SplitN(stored, "$", 2)
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(key, expected) == 1
}
