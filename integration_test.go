package thingprov_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thingprov/thingprov-go/pkg/chunk"
	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/link/linktest"
	"github.com/thingprov/thingprov-go/pkg/log"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

const (
	e2eID       = "id24A160E1B2C3"
	e2eAES      = "00112233445566778899aabbccddeeff"
	e2ePoP      = "0123456789abcdef0123456789abcdef"
	e2ePassword = "correct horse battery"
)

var e2eNetworks = []notify.WifiNetwork{
	{SSID: "workshop", RSSI: -51},
	{SSID: "office", RSSI: -77},
}

// TestE2E_ManifestProvisioning provisions a device imported from a factory
// deploy file, with documents from a directory, and checks the manifest and
// the protocol trace afterwards.
func TestE2E_ManifestProvisioning(t *testing.T) {
	dir := t.TempDir()
	docs := writeDocuments(t, filepath.Join(dir, "pem"))

	// Factory import.
	manifest := filepath.Join(dir, "devices.yaml")
	if err := os.WriteFile(manifest, []byte("devices: []\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	reg, err := registry.OpenFileRegistry(manifest)
	if err != nil {
		t.Fatalf("OpenFileRegistry: %v", err)
	}
	entry, err := registry.ParseDeployFile([]byte("DEPLOY_ID=" + e2eID + "\nDEPLOY_TYPE=plug\nDEPLOY_POP=" + e2ePoP + "\nDEPLOY_AES=" + e2eAES + "\n"))
	if err != nil {
		t.Fatalf("ParseDeployFile: %v", err)
	}
	if err := reg.Add(entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dev := newDevice(t, e2ePassword)
	tracePath := filepath.Join(dir, "session.plog")
	trace, err := log.NewFileLogger(tracePath)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	orch := provision.New(e2eConfig(), link.NewManager(dev), reg, secrets.NewFileSource(filepath.Join(dir, "pem")),
		provision.WithProtocolLogger(trace))

	res, err := orch.Provision(context.Background(), e2eID, chooseNetwork("workshop", e2ePassword))
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if n := trace.Rejected(); n != 0 {
		t.Errorf("%d trace events failed validation", n)
	}
	if err := trace.Close(); err != nil {
		t.Fatalf("close trace: %v", err)
	}

	if res.Phase != provision.PhaseDone {
		t.Errorf("phase = %s, want DONE", res.Phase)
	}
	assertDeviceReceived(t, dev, "workshop", docs)

	// The manifest records the provisioning on disk.
	reopened, err := registry.OpenFileRegistry(manifest)
	if err != nil {
		t.Fatalf("reopen manifest: %v", err)
	}
	d, err := reopened.LookupDevice(context.Background(), identity.ID(e2eID))
	if err != nil {
		t.Fatalf("LookupDevice: %v", err)
	}
	if !d.Provisioned {
		t.Error("expected device to be marked provisioned in the manifest")
	}

	// The trace covers the session without leaking secrets.
	events, err := log.ReadSession(tracePath, res.SessionID)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected trace events")
	}
	var sawDone bool
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		for _, secret := range [][]byte{[]byte(e2ePassword), []byte(e2ePoP), []byte("PRIVATE KEY")} {
			if bytes.Contains(raw, secret) {
				t.Errorf("trace event leaks %q: %s", secret, raw)
			}
		}
		if e.StateChange != nil && e.StateChange.NewState == provision.PhaseDone.String() {
			sawDone = true
		}
	}
	if !sawDone {
		t.Error("expected DONE phase in trace")
	}
}

// TestE2E_CloudProvisioning looks the device up over GraphQL, fetches the
// root CA over HTTP and the device documents from a directory.
func TestE2E_CloudProvisioning(t *testing.T) {
	dir := t.TempDir()
	docs := writeDocuments(t, filepath.Join(dir, "pem"))
	if err := os.Remove(filepath.Join(dir, "pem", secrets.NameRootCA)); err != nil {
		t.Fatalf("remove root CA: %v", err)
	}

	var (
		mu          sync.Mutex
		provisioned []string
	)
	r := chi.NewRouter()
	r.Get("/repository/root.pem", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(docs[chunk.TypeRootCA])
	})
	r.Post("/graphql", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer installer" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Variables map[string]string `json:"variables"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		thing := map[string]any{"id": body.Variables["thingId"], "type": "plug", "aes": e2eAES, "pop": e2ePoP, "provisioned": false}
		mu.Lock()
		provisioned = append(provisioned, body.Variables["thingId"])
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"thingGetById":   thing,
			"thingProvision": thing,
		}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	reg := registry.NewHTTPRegistry(srv.URL+"/graphql", registry.WithToken("installer"), registry.WithHTTPClient(srv.Client()))
	src := secrets.NewMultiSource(nil,
		secrets.NewFileSource(filepath.Join(dir, "pem")),
		secrets.NewHTTPSource(secrets.WithURL(secrets.NameRootCA, srv.URL+"/repository/root.pem"), secrets.WithHTTPClient(srv.Client())),
	)

	dev := newDevice(t, "")
	orch := provision.New(e2eConfig(), link.NewManager(dev), reg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	res, err := orch.Provision(ctx, e2eID, chooseNetwork("office", "guest-pass"))
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if res.Network != "office" {
		t.Errorf("network = %q, want office", res.Network)
	}
	assertDeviceReceived(t, dev, "office", docs)

	mu.Lock()
	defer mu.Unlock()
	// One lookup and one provision mutation.
	if len(provisioned) != 2 {
		t.Errorf("expected 2 registry calls, got %d", len(provisioned))
	}
}

// TestE2E_RetryAfterFailure checks that a failed session frees the
// orchestrator for the next attempt.
func TestE2E_RetryAfterFailure(t *testing.T) {
	dir := t.TempDir()
	docs := writeDocuments(t, dir)
	key, err := envelope.ParseKey(e2eAES)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	reg := registry.NewMemoryRegistry(registry.Device{ID: e2eID, PSK: key, PoP: e2ePoP})

	// The first attempt uses the wrong password and is rejected.
	failing := newDevice(t, e2ePassword)
	orch := provision.New(e2eConfig(), link.NewManager(failing), reg, secrets.NewFileSource(dir))
	res, err := orch.Provision(context.Background(), e2eID, chooseNetwork("workshop", "wrong"))
	if err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if res.Cause != provision.CauseDeviceRejected {
		t.Errorf("cause = %s, want %s", res.Cause, provision.CauseDeviceRejected)
	}
	if reg.Provisioned(e2eID) {
		t.Error("device must not be marked provisioned after a failure")
	}
	if failing.Connected() {
		t.Error("link must be closed after a failure")
	}

	// The firmware restarts provisioning after a reset.
	retry := newDevice(t, e2ePassword)
	orch = provision.New(e2eConfig(), link.NewManager(retry), reg, secrets.NewFileSource(dir))
	if _, err := orch.Provision(context.Background(), e2eID, chooseNetwork("workshop", e2ePassword)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertDeviceReceived(t, retry, "workshop", docs)
	if !reg.Provisioned(e2eID) {
		t.Error("expected device to be marked provisioned after the retry")
	}
}

func e2eConfig() provision.Config {
	cfg := provision.DefaultConfig()
	cfg.ScanTimeout = 3 * time.Second
	cfg.ConnectTimeout = 3 * time.Second
	cfg.AckTimeout = 3 * time.Second
	cfg.NetworkTimeout = 3 * time.Second
	cfg.DoneTimeout = 3 * time.Second
	return cfg
}

func newDevice(t *testing.T, password string) *linktest.Device {
	t.Helper()
	key, err := envelope.ParseKey(e2eAES)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	return linktest.New(linktest.Config{
		Name:         e2eID,
		Key:          key,
		PoP:          e2ePoP,
		Networks:     e2eNetworks,
		WifiPassword: password,
	})
}

func chooseNetwork(ssid, password string) provision.Chooser {
	return func(_ context.Context, networks []notify.WifiNetwork) (string, string, error) {
		return ssid, password, nil
	}
}

func assertDeviceReceived(t *testing.T, dev *linktest.Device, ssid string, docs map[chunk.Type][]byte) {
	t.Helper()
	if dev.Stage() != linktest.StageDone {
		t.Errorf("device stage = %s, want DONE", dev.Stage())
	}
	if got := dev.Credentials().SSID; got != ssid {
		t.Errorf("device SSID = %q, want %q", got, ssid)
	}
	for tag, want := range docs {
		got, err := dev.Document(tag)
		if err != nil {
			t.Fatalf("Document(%s): %v", tag, err)
		}
		if string(got) != string(want) {
			t.Errorf("document %s differs after reassembly", tag)
		}
	}
	if v := dev.LockstepViolations(); v != 0 {
		t.Errorf("lockstep violations = %d", v)
	}
}

// writeDocuments writes a root CA, a device certificate and its key under
// the default names into dir.
func writeDocuments(t *testing.T, dir string) map[chunk.Type][]byte {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rootCA, _ := generateCertificate(t, "E2E Root CA")
	cert, key := generateCertificate(t, e2eID)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	docs := map[chunk.Type][]byte{
		chunk.TypeRootCA:    rootCA,
		chunk.TypeThingCert: cert,
		chunk.TypeThingKey:  keyPEM,
	}
	for name, data := range map[string][]byte{
		secrets.NameRootCA:    rootCA,
		secrets.NameThingCert: cert,
		secrets.NameThingKey:  keyPEM,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return docs
}

func generateCertificate(t *testing.T, commonName string) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	serial := make([]byte, 8)
	if _, err := rand.Read(serial); err != nil {
		t.Fatalf("serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(serial),
		Subject:      pkix.Name{CommonName: commonName, SerialNumber: hex.EncodeToString(serial)},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key
}
