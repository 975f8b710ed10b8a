package artifact

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// EncryptionKeyEnvVar holds the artifact encryption passphrase.
	EncryptionKeyEnvVar = "DROIDTUNE_ARTIFACT_ENCRYPTION_KEY"

	// minPassphraseLength rejects trivially guessable passphrases.
	minPassphraseLength = 16

	encryptedHeader = "# DROIDTUNE_ENCRYPTED_ARTIFACT\n"
)

// sealer returns the AES-256-GCM cipher for the configured passphrase,
// or nil when encryption is not configured. The AES key is the SHA-256
// digest of the passphrase, so any passphrase at or above the minimum
// length is usable as-is.
func sealer() (cipher.AEAD, error) {
	passphrase := os.Getenv(EncryptionKeyEnvVar)
	if passphrase == "" {
		return nil, nil
	}
	if len(passphrase) < minPassphraseLength {
		return nil, fmt.Errorf("%s must be at least %d characters", EncryptionKeyEnvVar, minPassphraseLength)
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals artifact content under the environment passphrase.
// Content passes through untouched when no passphrase is set.
func Encrypt(content []byte) ([]byte, error) {
	gcm, err := sealer()
	if err != nil {
		return nil, err
	}
	if gcm == nil {
		return content, nil
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, content, nil)
	return []byte(encryptedHeader + base64.StdEncoding.EncodeToString(sealed) + "\n"), nil
}

// Decrypt opens previously sealed artifact content. Content without the
// encryption header passes through untouched.
func Decrypt(content []byte) ([]byte, error) {
	if !IsEncrypted(content) {
		return content, nil
	}

	gcm, err := sealer()
	if err != nil {
		return nil, err
	}
	if gcm == nil {
		return nil, fmt.Errorf("artifact is encrypted but %s is not set", EncryptionKeyEnvVar)
	}

	encoded := strings.TrimSpace(strings.TrimPrefix(string(content), encryptedHeader))
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted artifact: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted artifact is truncated")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt artifact (wrong passphrase?): %w", err)
	}
	return plaintext, nil
}

// IsEncrypted checks for the encrypted-artifact header.
func IsEncrypted(content []byte) bool {
	return strings.HasPrefix(string(content), encryptedHeader)
}
