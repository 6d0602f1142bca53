package account

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"golang.org/x/crypto/bcrypt"
)

// hashPassword derives the stored credential hash.
func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// verifyPassword checks password against the stored hash.
func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// credentialVault encrypts recoverable credential material with the
// server's age identity so the hashing scheme can be migrated later.
type credentialVault struct {
	identity *age.X25519Identity
}

// loadOrCreateVault reads the identity file, generating a fresh X25519
// identity on first start.
func loadOrCreateVault(identityFile string) (*credentialVault, error) {
	data, err := os.ReadFile(identityFile)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", identityFile, err)
		}
		return &credentialVault{identity: identity}, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(identityFile), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(identityFile, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing identity file: %w", err)
	}
	return &credentialVault{identity: identity}, nil
}

// encryptString returns the base64 age ciphertext of plaintext.
func (v *credentialVault) encryptString(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("encrypting credential: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decryptString reverses encryptString.
func (v *credentialVault) decryptString(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding credential: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), v.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting credential: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	return string(plaintext), nil
}
