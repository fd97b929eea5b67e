// Package cryptox implements the crypto gate: hybrid asymmetric encryption of
// JSON payloads and a passphrase-sealed keystore for the private key.
//
// Ciphertext layout:
//
//	[2-byte big-endian wrapped key length][RSA-OAEP wrapped AES key]
//	[12-byte nonce][AES-256-GCM ciphertext]
//
// The AES key is random per message; only the RSA keypair is long-lived.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedvault/internal/common"
)

const (
	keyBits      = 2048
	sessionKeyLn = 32
	nonceLn      = 12
)

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Gate wraps an RSA keypair. Encrypt uses the public half, Decrypt the
// private half. The key material is immutable after construction, so a Gate
// is safe to share across concurrent push/pull tasks.
type Gate struct {
	key *rsa.PrivateKey
}

// NewGate returns a Gate owning the given private key.
func NewGate(key *rsa.PrivateKey) *Gate {
	return &Gate{key: key}
}

// GenerateKey creates a fresh RSA keypair.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, keyBits)
}

// Fingerprint returns a stable hex identifier of the public key, used to
// scope the local store to the key's identity.
func (g *Gate) Fingerprint() string {
	der, err := x509.MarshalPKIXPublicKey(&g.key.PublicKey)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a valid RSA key
		panic(err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16])
}

// Encrypt seals plaintext with a random AES-256-GCM session key and wraps
// that key with RSA-OAEP(SHA-256) for the public half of the keypair.
func (g *Gate) Encrypt(plaintext []byte) ([]byte, error) {
	sessionKey := common.GenerateRandByteArray(sessionKeyLn)
	defer common.WipeByteArray(sessionKey)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &g.key.PublicKey, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap session key: %w", err)
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceLn)
	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 2+len(wrapped)+nonceLn+len(sealed))
	out = binary.BigEndian.AppendUint16(out, uint16(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt using the private half of the keypair.
func (g *Gate) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2 {
		return nil, ErrMalformedCiphertext
	}
	wrappedLn := int(binary.BigEndian.Uint16(ciphertext))
	rest := ciphertext[2:]
	if len(rest) < wrappedLn+nonceLn {
		return nil, ErrMalformedCiphertext
	}
	wrapped := rest[:wrappedLn]
	nonce := rest[wrappedLn : wrappedLn+nonceLn]
	sealed := rest[wrappedLn+nonceLn:]

	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, g.key, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap session key: %w", err)
	}
	defer common.WipeByteArray(sessionKey)

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, nonce, sealed, nil)
}

// EncryptJSON serializes v to JSON, encrypts it, and returns the ciphertext
// as std base64, ready to be stored in a remote document.
func (g *Gate) EncryptJSON(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialization error: %w", err)
	}
	ciphertext, err := g.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptJSON decodes the base64 ciphertext, decrypts it, and unmarshals the
// plaintext JSON into v.
func (g *Gate) DecryptJSON(encoded string, v any) error {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("base64 decode error: %w", err)
	}
	plaintext, err := g.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
