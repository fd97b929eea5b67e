package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const saltLn = 16

// deriveKeystoreKey stretches the passphrase with argon2id into an AES key.
func deriveKeystoreKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// SaveKeystore seals the private key with a passphrase-derived AES-GCM key
// and writes it to path. File layout: [16-byte salt][12-byte nonce][sealed
// PKCS#1 private key].
func SaveKeystore(path string, priv *rsa.PrivateKey, passphrase []byte) error {
	salt := common.GenerateRandByteArray(saltLn)
	derived := deriveKeystoreKey(passphrase, salt)
	defer common.WipeByteArray(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	sealed := aesgcm.Seal(nil, nonce, x509.MarshalPKCS1PrivateKey(priv), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return os.WriteFile(path, out, 0o600)
}

// LoadGate reads the keystore at path, unseals it with the passphrase, and
// returns a Gate for the recovered keypair.
func LoadGate(path string, passphrase []byte) (*Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	if len(data) < saltLn+nonceLn {
		return nil, fmt.Errorf("keystore %s is truncated", path)
	}

	salt := data[:saltLn]
	nonce := data[saltLn : saltLn+nonceLn]
	sealed := data[saltLn+nonceLn:]

	derived := deriveKeystoreKey(passphrase, salt)
	defer common.WipeByteArray(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	der, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupt keystore", common.ErrorUnauthorized)
	}

	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewGate(priv), nil
}
