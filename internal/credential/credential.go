// Package credential holds the service-account identities used to call the
// inference platform and exchanges them for short-lived bearer tokens.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Static errors for credential parsing and pool construction.
var (
	// ErrMalformedCredential is returned when a secret is not a usable service-account JSON blob.
	ErrMalformedCredential = errors.New("credential: malformed service account key")
	// ErrNoCredentials is returned when no credential could be loaded.
	ErrNoCredentials = errors.New("credential: no service account keys available")
)

// Credential is one immutable service-account identity.
type Credential struct {
	ProjectID    string
	ClientEmail  string
	PrivateKeyID string

	index int
	raw   []byte
}

// serviceAccountKey lists the fields Parse inspects; everything else in the
// blob is passed through untouched.
type serviceAccountKey struct {
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
}

// Parse decodes a service-account JSON blob. Literal "\n" sequences inside the
// private key, which appear when the key is pasted into a single-line
// environment variable, are turned back into newlines.
func Parse(secret string) (Credential, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(secret)), &fields); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal([]byte(strings.TrimSpace(secret)), &key); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if key.ProjectID == "" {
		return Credential{}, fmt.Errorf("%w: project_id is missing", ErrMalformedCredential)
	}
	if key.PrivateKey == "" {
		return Credential{}, fmt.Errorf("%w: private_key is missing", ErrMalformedCredential)
	}

	normalized, err := json.Marshal(strings.ReplaceAll(key.PrivateKey, `\n`, "\n"))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	fields["private_key"] = normalized

	raw, err := json.Marshal(fields)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	return Credential{
		ProjectID:    key.ProjectID,
		ClientEmail:  key.ClientEmail,
		PrivateKeyID: key.PrivateKeyID,
		raw:          raw,
	}, nil
}

// ID returns an opaque identifier that is safe to log. It never contains key material.
func (c Credential) ID() string {
	keyID := c.PrivateKeyID
	if len(keyID) > 8 {
		keyID = keyID[:8]
	}
	if keyID == "" {
		keyID = fmt.Sprintf("key-%d", c.index)
	}
	return c.ProjectID + "/" + keyID
}

// Index is the position of the credential in the configured order.
func (c Credential) Index() int {
	return c.index
}

// JSON returns a copy of the normalized service-account blob.
func (c Credential) JSON() []byte {
	out := make([]byte, len(c.raw))
	copy(out, c.raw)
	return out
}
