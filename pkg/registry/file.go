package registry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/thingprov/thingprov-go/pkg/identity"
)

// ManifestEntry is one device in a manufacturing manifest.
type ManifestEntry struct {
	ID              string `yaml:"id"`
	AES             string `yaml:"aes"`
	PoP             string `yaml:"pop"`
	Type            string `yaml:"type,omitempty"`
	HardwareVersion string `yaml:"hw_version,omitempty"`
	Provisioned     bool   `yaml:"provisioned,omitempty"`
}

// Manifest is the YAML document read by FileRegistry.
type Manifest struct {
	Devices []ManifestEntry `yaml:"devices"`
}

// FileRegistry serves devices from a YAML manifest and writes provisioning
// state back to it.
type FileRegistry struct {
	path string

	mu       sync.Mutex
	manifest Manifest
}

// OpenFileRegistry loads the manifest at path.
func OpenFileRegistry(path string) (*FileRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDevice, path, err)
	}
	return &FileRegistry{path: path, manifest: m}, nil
}

func (r *FileRegistry) find(id identity.ID) (int, bool) {
	for i, e := range r.manifest.Devices {
		if e.ID == string(id) {
			return i, true
		}
	}
	return 0, false
}

// LookupDevice implements Registry.
func (r *FileRegistry) LookupDevice(_ context.Context, id identity.ID) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.find(id)
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := r.manifest.Devices[i]
	d, err := recordFromHex(id, e.AES, e.PoP)
	if err != nil {
		return Device{}, err
	}
	d.Type = e.Type
	d.HardwareVersion = e.HardwareVersion
	d.Provisioned = e.Provisioned
	return d, nil
}

// MarkProvisioned implements Registry. The manifest is rewritten atomically.
func (r *FileRegistry) MarkProvisioned(_ context.Context, id identity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.manifest.Devices[i].Provisioned = true
	return r.saveLocked()
}

// Add appends an entry and saves the manifest.
func (r *FileRegistry) Add(e ManifestEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.find(identity.ID(e.ID)); ok {
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidDevice, e.ID)
	}
	r.manifest.Devices = append(r.manifest.Devices, e)
	return r.saveLocked()
}

func (r *FileRegistry) saveLocked() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r.manifest); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

// ParseDeployFile reads the KEY=VALUE file written by the factory flashing
// script (DEPLOY_ID, DEPLOY_TYPE, DEPLOY_POP, DEPLOY_AES).
func ParseDeployFile(data []byte) (ManifestEntry, error) {
	var e ManifestEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return ManifestEntry{}, fmt.Errorf("%w: malformed line %q", ErrInvalidDevice, line)
		}
		switch strings.TrimSpace(key) {
		case "DEPLOY_ID":
			e.ID = strings.TrimSpace(value)
		case "DEPLOY_TYPE":
			e.Type = strings.TrimSpace(value)
		case "DEPLOY_POP":
			e.PoP = strings.TrimSpace(value)
		case "DEPLOY_AES":
			e.AES = strings.TrimSpace(value)
		}
	}
	if err := sc.Err(); err != nil {
		return ManifestEntry{}, err
	}
	if e.ID == "" || e.AES == "" || e.PoP == "" {
		return ManifestEntry{}, fmt.Errorf("%w: deploy file needs DEPLOY_ID, DEPLOY_AES and DEPLOY_POP", ErrInvalidDevice)
	}
	return e, nil
}

// Compile-time interface satisfaction check.
var _ Registry = (*FileRegistry)(nil)
