// Package secret models an encrypted environment-variable entry owned by the
// SecretsVault.
package secret

import "time"

// Secret is a named, symmetric-encrypted key/value entry. The plaintext
// value never lives on this struct outside of a transient decrypt call.
type Secret struct {
	Name        string    `json:"name"`
	Ciphertext  []byte    `json:"-"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Metadata is the name/description/timestamp projection returned by the
// metadata-only listing endpoints; it never carries ciphertext.
type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToMetadata projects a Secret down to its metadata view.
func (s Secret) ToMetadata() Metadata {
	return Metadata{
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
