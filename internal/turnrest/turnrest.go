// Package turnrest mints coturn-compatible TURN REST (ephemeral) credentials.
//
// Algorithm, per draft-uberti-behave-turn-rest and the coturn wiki:
//
//	username   = <unix_expiry>:<prefix>:<connection_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Expiry is computed from the server clock in UTC plus the configured TTL.
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Generator struct {
	sharedSecret []byte
	ttlSeconds   int64
	prefix       string
	now          func() time.Time
	newID        func() string
}

type GeneratorConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string

	// Now and NewID are test seams; nil means real clock / random id.
	Now   func() time.Time
	NewID func() string
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("TTLSeconds must be > 0")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("UsernamePrefix is required")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("UsernamePrefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Generator{
		sharedSecret: []byte(cfg.SharedSecret),
		ttlSeconds:   cfg.TTLSeconds,
		prefix:       cfg.UsernamePrefix,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}, nil
}

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

// Generate mints credentials bound to the given connection id. The id must
// not contain ':' because coturn splits the username on colons.
func (g *Generator) Generate(connectionID string) (Credentials, error) {
	if connectionID == "" {
		return Credentials{}, errors.New("connectionID is required")
	}
	if strings.Contains(connectionID, ":") {
		return Credentials{}, errors.New("connectionID must not contain ':'")
	}
	expiry := g.now().UTC().Unix() + g.ttlSeconds
	username := fmt.Sprintf("%d:%s:%s", expiry, g.prefix, connectionID)

	mac := hmac.New(sha1.New, g.sharedSecret)
	_, _ = mac.Write([]byte(username))

	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiryUnix: expiry,
	}, nil
}

// GenerateRandom mints credentials for an anonymous caller.
func (g *Generator) GenerateRandom() (Credentials, error) {
	return g.Generate(g.newID())
}
