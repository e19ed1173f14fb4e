package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
)

// LoadPrivateKey загружает приватный ключ RSA, PKCS#1 или PKCS#8
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid private key format")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		privKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return privKey, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		privKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return privKey, nil
	}
	return nil, fmt.Errorf("invalid private key format")
}

// OpenMeasurement открывает вектор, запечатанный агентом для задачи taskID
func OpenMeasurement(priv *rsa.PrivateKey, taskID, sealed string) ([]byte, error) {
	wrappedPart, boxPart, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, errors.New("sealed measurement: missing separator")
	}

	enc := base64.RawURLEncoding
	wrapped, err := enc.DecodeString(wrappedPart)
	if err != nil {
		return nil, fmt.Errorf("sealed measurement key: %w", err)
	}
	box, err := enc.DecodeString(boxPart)
	if err != nil {
		return nil, fmt.Errorf("sealed measurement body: %w", err)
	}

	dataKey, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, []byte(model.SealLabel))
	if err != nil {
		return nil, fmt.Errorf("unwrap data key: %w", err)
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(box) < gcm.NonceSize()+gcm.Overhead() {
		return nil, errors.New("sealed measurement is truncated")
	}

	nonce, ciphertext := box[:gcm.NonceSize()], box[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(taskID))
	if err != nil {
		return nil, fmt.Errorf("open measurement for task %q: %w", taskID, err)
	}
	return plaintext, nil
}
