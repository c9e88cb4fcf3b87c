// Package secretsvault implements the SecretsVault component: a
// symmetric-encrypted key/value store whose key is generated on first use
// and persisted in a file outside the repository store.
package secretsvault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/pkg/logger"
)

const keySize = 32 // AES-256

// Store is the subset of storage.Store the vault persists against.
type Store interface {
	SetSecret(ctx context.Context, s secret.Secret) (secret.Secret, error)
	GetSecret(ctx context.Context, name string) (secret.Secret, error)
	ListSecretNames(ctx context.Context) ([]string, error)
	ListSecretMetadata(ctx context.Context) ([]secret.Metadata, error)
	ListSecrets(ctx context.Context) ([]secret.Secret, error)
	DeleteSecret(ctx context.Context, name string) (bool, error)
}

// Vault is the SecretsVault component.
type Vault struct {
	store Store
	gcm   cipher.AEAD
	log   *logger.Logger
}

// Open loads (or generates and persists) the encryption key at keyFile and
// constructs a Vault backed by store.
func Open(store Store, keyFile string, log *logger.Logger) (*Vault, error) {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("load secrets key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Vault{store: store, gcm: gcm, log: log}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) == keySize {
			return data, nil
		}
		return nil, fmt.Errorf("key file %s has unexpected length %d", path, len(data))
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return v.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *Vault) decrypt(ciphertext []byte) ([]byte, error) {
	ns := v.gcm.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, data := ciphertext[:ns], ciphertext[ns:]
	return v.gcm.Open(nil, nonce, data, nil)
}

// Set encrypts value and persists it under name.
func (v *Vault) Set(ctx context.Context, name, value, description string) (secret.Metadata, error) {
	ciphertext, err := v.encrypt([]byte(value))
	if err != nil {
		return secret.Metadata{}, err
	}
	stored, err := v.store.SetSecret(ctx, secret.Secret{Name: name, Ciphertext: ciphertext, Description: description})
	if err != nil {
		return secret.Metadata{}, err
	}
	return stored.ToMetadata(), nil
}

// Get decrypts and returns name's plaintext value, or ok=false if absent or
// undecryptable.
func (v *Vault) Get(ctx context.Context, name string) (value string, ok bool) {
	stored, err := v.store.GetSecret(ctx, name)
	if err != nil {
		return "", false
	}
	plaintext, err := v.decrypt(stored.Ciphertext)
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}

// Delete removes name, reporting whether it existed.
func (v *Vault) Delete(ctx context.Context, name string) (bool, error) {
	return v.store.DeleteSecret(ctx, name)
}

// ListNames returns every secret name.
func (v *Vault) ListNames(ctx context.Context) ([]string, error) {
	return v.store.ListSecretNames(ctx)
}

// ListMetadata returns every secret's metadata, never its ciphertext or
// plaintext.
func (v *Vault) ListMetadata(ctx context.Context) ([]secret.Metadata, error) {
	return v.store.ListSecretMetadata(ctx)
}

// AllDecrypted returns every secret decrypted into a plain map. Entries that
// fail to decrypt (e.g. after key rotation) are silently skipped: key
// rotation must not break execution of unrelated jobs. The values never
// reach a log line.
func (v *Vault) AllDecrypted(ctx context.Context) map[string]string {
	stored, err := v.store.ListSecrets(ctx)
	if err != nil {
		v.log.WithField("error", err.Error()).Warn("list secrets for decryption failed")
		return map[string]string{}
	}
	out := make(map[string]string, len(stored))
	for _, s := range stored {
		plaintext, err := v.decrypt(s.Ciphertext)
		if err != nil {
			continue
		}
		out[s.Name] = string(plaintext)
	}
	return out
}
