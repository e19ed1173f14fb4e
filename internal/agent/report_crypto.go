package agent

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
)

var ErrWeakKey = errors.New("rsa key is too short")

// LoadPublicKey читает ключ хелпера из PEM файла
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParsePublicKey(data)
}

// ParsePublicKey принимает "PUBLIC KEY" (PKIX) и "RSA PUBLIC KEY" (PKCS#1)
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}

	var pub *rsa.PublicKey
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#1 public key: %w", err)
		}
		pub = key
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX public key: %w", err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, want RSA", key)
		}
		pub = rsaKey
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}

	if bits := pub.N.BitLen(); bits < model.MinSealKeyBits {
		return nil, fmt.Errorf("%w: %d bits", ErrWeakKey, bits)
	}
	return pub, nil
}

// SealMeasurement шифрует вектор измерения для хелпера. Одноразовый ключ AES-256
// уходит под RSA-OAEP, вектор под AES-GCM, task_id входит в additional data:
// запечатанный вектор не открывается в отчёте другой задачи.
func SealMeasurement(pub *rsa.PublicKey, taskID string, plaintext []byte) (string, error) {
	dataKey := make([]byte, 32)
	if _, err := rand.Read(dataKey); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	box := gcm.Seal(nonce, nonce, plaintext, []byte(taskID))

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dataKey, []byte(model.SealLabel))
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(wrapped) + "." + enc.EncodeToString(box), nil
}
