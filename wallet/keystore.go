package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for seed encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Keystore layout sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4

	keystoreVersion = 1
)

var keystoreMagic = []byte("DSKS")

// keystoreHeaderLen is magic(4) + version(1).
const keystoreHeaderLen = 5

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptSeed seals seed under password.
//
//	magic(4) || version(1) || salt(16) || nonce(12) || AES-GCM(seed || checksum)
//
// The checksum is SHA256(seed)[:4]. The header is bound as additional data.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}
	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("wallet: cipher setup failed: %w", err)
	}
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	plaintext := make([]byte, 0, len(seed)+ChecksumLen)
	plaintext = append(plaintext, seed...)
	plaintext = append(plaintext, bsvhash.Sha256(seed)[:ChecksumLen]...)

	header := append(append([]byte{}, keystoreMagic...), keystoreVersion)
	out := make([]byte, 0, keystoreHeaderLen+SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// DecryptSeed opens a keystore produced by EncryptSeed.
func DecryptSeed(data []byte, password string) ([]byte, error) {
	if len(data) < keystoreHeaderLen || !bytes.Equal(data[:len(keystoreMagic)], keystoreMagic) {
		return nil, ErrBadKeystore
	}
	if data[len(keystoreMagic)] != keystoreVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadKeystore, data[len(keystoreMagic)])
	}
	if len(data) < keystoreHeaderLen+SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	header := data[:keystoreHeaderLen]
	salt := data[keystoreHeaderLen : keystoreHeaderLen+SaltLen]
	nonce := data[keystoreHeaderLen+SaltLen : keystoreHeaderLen+SaltLen+NonceLen]
	ciphertext := data[keystoreHeaderLen+SaltLen+NonceLen:]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, header)
	if err != nil || len(plaintext) <= ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	seed := plaintext[:len(plaintext)-ChecksumLen]
	sum := plaintext[len(plaintext)-ChecksumLen:]
	if subtle.ConstantTimeCompare(sum, bsvhash.Sha256(seed)[:ChecksumLen]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

// SaveKeystore encrypts seed and writes it to path with owner-only
// permissions. An existing file is never overwritten.
func SaveKeystore(path string, seed []byte, password string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrKeystoreExists, path)
	}
	data, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create keystore dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("wallet: write keystore: %w", err)
	}
	return nil
}

// LoadKeystore reads and decrypts the keystore at path.
func LoadKeystore(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keystore: %w", err)
	}
	return DecryptSeed(data, password)
}
