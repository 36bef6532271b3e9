package secrets

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrInvalidPEM is returned when a document does not hold the expected block.
var ErrInvalidPEM = errors.New("invalid PEM data")

// Kind is the class of PEM block a document must contain.
type Kind uint8

const (
	KindCertificate Kind = iota
	KindPrivateKey
)

func (k Kind) String() string {
	switch k {
	case KindCertificate:
		return "certificate"
	case KindPrivateKey:
		return "private key"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ValidatePEM checks that data starts with a parseable PEM block of kind.
func ValidatePEM(data []byte, kind Kind) error {
	block, _ := pem.Decode(data)
	if block == nil {
		return fmt.Errorf("%w: no PEM block", ErrInvalidPEM)
	}

	switch kind {
	case KindCertificate:
		if block.Type != "CERTIFICATE" {
			return fmt.Errorf("%w: expected CERTIFICATE, got %s", ErrInvalidPEM, block.Type)
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
	case KindPrivateKey:
		var err error
		switch block.Type {
		case "RSA PRIVATE KEY":
			_, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			_, err = x509.ParseECPrivateKey(block.Bytes)
		case "PRIVATE KEY":
			_, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		default:
			return fmt.Errorf("%w: expected a private key, got %s", ErrInvalidPEM, block.Type)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidPEM, kind)
	}
	return nil
}
