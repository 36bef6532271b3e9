// Package secrets fetches the PEM documents installed on a device during
// provisioning: the cloud root CA, the device certificate and the device
// private key.
//
// A Source resolves a document name to its PEM bytes. Sources can be
// combined with MultiSource, which routes names to specific sources and
// falls back to the rest.
package secrets

import (
	"context"
	"errors"
)

// Document names requested by the provisioning flow.
const (
	NameRootCA    = "AmazonRootCA1.pem"
	NameThingCert = "auth_aws_ota_thing_cert.pem"
	NameThingKey  = "auth_aws_ota_thing_key.pem"
)

// DefaultRootCAURL is where the root CA is published.
const DefaultRootCAURL = "https://www.amazontrust.com/repository/AmazonRootCA1.pem"

// Source errors.
var (
	ErrNotFound    = errors.New("secret not found")
	ErrUnavailable = errors.New("secret source unavailable")
)

// Source resolves PEM documents by name.
type Source interface {
	FetchPEM(ctx context.Context, name string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, name string) ([]byte, error)

// FetchPEM implements Source.
func (f SourceFunc) FetchPEM(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// KindOf returns the PEM kind expected for a well-known document name.
func KindOf(name string) Kind {
	switch name {
	case NameThingKey:
		return KindPrivateKey
	default:
		return KindCertificate
	}
}
