package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link/linktest"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

// simulatedNetworks are reported by the simulated device.
var simulatedNetworks = []notify.WifiNetwork{
	{SSID: "thingprov-lab", RSSI: -44},
	{SSID: "thingprov-guest", RSSI: -67},
	{SSID: "neighbour", RSSI: -83},
}

// simulation is a complete offline environment: a device, its registry
// record and freshly minted documents.
type simulation struct {
	device   *linktest.Device
	registry *registry.MemoryRegistry
	secrets  *secrets.MemorySource
}

func newSimulation(id identity.ID, docs provision.Documents, password string) (*simulation, error) {
	key := make(envelope.Key, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	popRaw := make([]byte, registry.PoPLength/2)
	if _, err := rand.Read(popRaw); err != nil {
		return nil, err
	}
	pop := hex.EncodeToString(popRaw)

	rootCA, _, err := mintCertificate("thingprov simulated root")
	if err != nil {
		return nil, err
	}
	thingCert, thingKey, err := mintCertificate(string(id))
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(thingKey)
	if err != nil {
		return nil, err
	}

	dev := linktest.New(linktest.Config{
		Name:         string(id),
		Key:          key,
		PoP:          pop,
		Networks:     simulatedNetworks,
		WifiPassword: password,
		AckDelay:     20 * time.Millisecond,
	})

	return &simulation{
		device: dev,
		registry: registry.NewMemoryRegistry(registry.Device{
			ID:   id,
			PSK:  key,
			PoP:  pop,
			Type: "simulated",
		}),
		secrets: secrets.NewMemorySource(map[string][]byte{
			docs.RootCA:    rootCA,
			docs.ThingCert: thingCert,
			docs.ThingKey:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		}),
	}, nil
}

// mintCertificate creates a self-signed certificate for cn.
func mintCertificate(cn string) ([]byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key, nil
}
