package provision_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/link/linktest"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

const (
	testID  = "id24A160E1B2C3"
	testPoP = "0123456789abcdef0123456789abcdef"
)

var testKey = envelope.Key{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
}

var testNetworks = []notify.WifiNetwork{
	{SSID: "home", RSSI: -48},
	{SSID: "guest", RSSI: -71},
}

// documents are the PEM secrets served to sessions.
type documents struct {
	rootCA, cert, key []byte
}

func selfSigned(t *testing.T, cn string) (certPEM []byte, key *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key
}

func newDocuments(t *testing.T) documents {
	t.Helper()
	ca, _ := selfSigned(t, "Test Root CA")
	cert, key := selfSigned(t, testID)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return documents{
		rootCA: ca,
		cert:   cert,
		key:    pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}
}

func (d documents) source() *secrets.MemorySource {
	return secrets.NewMemorySource(map[string][]byte{
		secrets.NameRootCA:    d.rootCA,
		secrets.NameThingCert: d.cert,
		secrets.NameThingKey:  d.key,
	})
}

// events records observer events.
type events struct {
	mu  sync.Mutex
	all []provision.Event
}

func (e *events) observe(ev provision.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) ofType(typ provision.EventType) []provision.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []provision.Event
	for _, ev := range e.all {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (e *events) phases() []provision.Phase {
	var out []provision.Phase
	for _, ev := range e.ofType(provision.EventPhaseChanged) {
		out = append(out, ev.Phase)
	}
	return out
}

type fixture struct {
	dev    *linktest.Device
	mgr    *link.Manager
	reg    *registry.MemoryRegistry
	docs   documents
	orch   *provision.Orchestrator
	events *events
}

func testConfig() provision.Config {
	cfg := provision.DefaultConfig()
	cfg.ScanTimeout = 2 * time.Second
	cfg.ConnectTimeout = 2 * time.Second
	cfg.AckTimeout = 2 * time.Second
	cfg.NetworkTimeout = 2 * time.Second
	cfg.DoneTimeout = 2 * time.Second
	return cfg
}

// newFixture wires an orchestrator to a simulated device. The mutators
// adjust the device and the orchestrator config before wiring.
func newFixture(t *testing.T, devMut func(*linktest.Config), cfgMut func(*provision.Config)) *fixture {
	t.Helper()

	devCfg := linktest.Config{
		Name:     testID,
		Key:      testKey,
		PoP:      testPoP,
		Networks: testNetworks,
	}
	if devMut != nil {
		devMut(&devCfg)
	}
	cfg := testConfig()
	if cfgMut != nil {
		cfgMut(&cfg)
	}

	f := &fixture{
		dev:    linktest.New(devCfg),
		docs:   newDocuments(t),
		events: &events{},
		reg: registry.NewMemoryRegistry(registry.Device{
			ID:  identity.ID(devCfg.Name),
			PSK: testKey,
			PoP: testPoP,
		}),
	}
	f.mgr = link.NewManager(f.dev)
	f.orch = provision.New(cfg, f.mgr, f.reg, f.docs.source(), provision.WithObserver(f.events.observe))
	return f
}

func chooseHome(password string) provision.Chooser {
	return func(context.Context, []notify.WifiNetwork) (string, string, error) {
		return "home", password, nil
	}
}
