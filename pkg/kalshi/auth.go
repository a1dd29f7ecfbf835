package kalshi

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrInvalidPEMBlock is returned when the PEM block cannot be decoded.
	ErrInvalidPEMBlock = errors.New("kalshi: failed to decode PEM block")

	// ErrNotRSAKey is returned when the key is not an RSA private key.
	ErrNotRSAKey = errors.New("kalshi: not an RSA private key")
)

// ParsePrivateKey parses a PEM-encoded RSA private key in PKCS1 or PKCS8
// format, the two shapes Kalshi hands out.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrInvalidPEMBlock
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("kalshi: parse PKCS1 key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("kalshi: parse PKCS8 key: %w", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSAKey
		}
		return rsaKey, nil
	}
	return nil, fmt.Errorf("kalshi: unsupported key type %q", block.Type)
}

// LoadPrivateKey reads and parses a PEM key file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kalshi: read key file: %w", err)
	}
	return ParsePrivateKey(data)
}
