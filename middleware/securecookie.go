// Package middleware holds endpoint processors for ajax views: the CSRF
// token source and the sealed cookie it keeps its token in.
package middleware

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCookieFormat  = errors.New("invalid secure cookie format")
	ErrCookieInvalid = errors.New("invalid secure cookie")
	ErrCookieConfig  = errors.New("invalid secure cookie configuration")
)

// maxCookieLen bounds the attacker-controlled data decoded from a cookie.
const maxCookieLen = 4096

// DefaultAEADKeysize is the key size for the default XChaCha20-Poly1305 AEAD.
const DefaultAEADKeysize = chacha20poly1305.KeySize

// SecureCookie seals values into cookies with authenticated encryption.
//
// Value format: keyID "." base64url(nonce || seal(payload))
//
// The payload is CBOR by default. The cookie's name, domain, path and
// secure flag are bound to the value as additional data, so a value cannot
// be replayed under different cookie attributes. keys holds every accepted
// key; keyID selects the one used for sealing, which allows rotation.
type SecureCookie struct {
	name     string
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite

	keyID string
	aeads map[string]cipher.AEAD

	newAEAD   func(key []byte) (cipher.AEAD, error)
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// SecureCookieOption configures a SecureCookie.
type SecureCookieOption func(*SecureCookie)

// WithPath sets the cookie path. Default "/".
func WithPath(path string) SecureCookieOption {
	return func(sc *SecureCookie) { sc.path = path }
}

// WithDomain sets the cookie domain. Default host-only.
func WithDomain(domain string) SecureCookieOption {
	return func(sc *SecureCookie) { sc.domain = domain }
}

// WithSecure sets the Secure attribute. Default true.
func WithSecure(secure bool) SecureCookieOption {
	return func(sc *SecureCookie) { sc.secure = secure }
}

// WithSameSite sets the SameSite attribute. Default Lax.
func WithSameSite(sameSite http.SameSite) SecureCookieOption {
	return func(sc *SecureCookie) { sc.sameSite = sameSite }
}

// WithAEAD replaces the AEAD constructor, e.g. with an AES-GCM one.
func WithAEAD(f func(key []byte) (cipher.AEAD, error)) SecureCookieOption {
	return func(sc *SecureCookie) { sc.newAEAD = f }
}

// WithMarshalUnmarshal replaces the CBOR payload codec.
func WithMarshalUnmarshal(marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) SecureCookieOption {
	return func(sc *SecureCookie) {
		sc.marshal = marshal
		sc.unmarshal = unmarshal
	}
}

// NewSecureCookie creates a SecureCookie named name that seals with
// keys[keyID]. Every key in keys must be valid for the AEAD.
func NewSecureCookie(name, keyID string, keys map[string][]byte, opts ...SecureCookieOption) (*SecureCookie, error) {
	sc := &SecureCookie{
		name:      name,
		path:      "/",
		secure:    true,
		sameSite:  http.SameSiteLaxMode,
		keyID:     keyID,
		newAEAD:   chacha20poly1305.NewX,
		marshal:   cbor.Marshal,
		unmarshal: cbor.Unmarshal,
	}
	for _, opt := range opts {
		opt(sc)
	}

	if name == "" {
		return nil, fmt.Errorf("%w: empty cookie name", ErrCookieConfig)
	}
	if _, ok := keys[keyID]; !ok {
		return nil, fmt.Errorf("%w: keyID %q not found in keys", ErrCookieConfig, keyID)
	}
	if sc.newAEAD == nil || sc.marshal == nil || sc.unmarshal == nil {
		return nil, ErrCookieConfig
	}
	if sc.path == "" {
		sc.path = "/"
	}

	sc.aeads = make(map[string]cipher.AEAD, len(keys))
	for id, k := range keys {
		if strings.Contains(id, ".") {
			return nil, fmt.Errorf("%w: key id %q contains '.'", ErrCookieConfig, id)
		}
		aead, err := sc.newAEAD(k)
		if err != nil {
			return nil, fmt.Errorf("invalid key %s: %w", id, err)
		}
		sc.aeads[id] = aead
	}
	return sc, nil
}

// Name returns the cookie name.
func (sc *SecureCookie) Name() string {
	return sc.name
}

func (sc *SecureCookie) aad() []byte {
	secure := "f"
	if sc.secure {
		secure = "t"
	}
	return []byte(sc.name + ":" + sc.domain + ":" + sc.path + ":" + secure)
}

// Seal marshals v and returns a cookie carrying the sealed value, valid for
// maxAge seconds.
func (sc *SecureCookie) Seal(v any, maxAge int) (*http.Cookie, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("%w: maxAge must be positive", ErrCookieConfig)
	}
	plain, err := sc.marshal(v)
	if err != nil {
		return nil, err
	}

	aead := sc.aeads[sc.keyID]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nonce, nonce, plain, sc.aad())

	return &http.Cookie{
		Name:     sc.name,
		Value:    sc.keyID + "." + base64.RawURLEncoding.EncodeToString(sealed),
		Path:     sc.path,
		Domain:   sc.domain,
		MaxAge:   maxAge,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		Secure:   sc.secure,
		HttpOnly: true,
		SameSite: sc.sameSite,
	}, nil
}

// Open verifies and decrypts the cookie's value and unmarshals it into v.
func (sc *SecureCookie) Open(c *http.Cookie, v any) error {
	if c == nil || len(c.Value) == 0 || len(c.Value) > maxCookieLen {
		return ErrCookieFormat
	}
	keyID, enc, ok := strings.Cut(c.Value, ".")
	if !ok || keyID == "" || enc == "" {
		return ErrCookieFormat
	}
	aead, ok := sc.aeads[keyID]
	if !ok {
		return ErrCookieInvalid
	}
	sealed, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return ErrCookieFormat
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return ErrCookieFormat
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, sc.aad())
	if err != nil {
		return ErrCookieInvalid
	}
	return sc.unmarshal(plain, v)
}

// Clear returns a cookie that removes this cookie from the client.
func (sc *SecureCookie) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     sc.name,
		Path:     sc.path,
		Domain:   sc.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   sc.secure,
		HttpOnly: true,
		SameSite: sc.sameSite,
	}
}
