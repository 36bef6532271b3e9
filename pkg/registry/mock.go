package registry

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/thingprov/thingprov-go/pkg/identity"
)

// MockRegistry implements Registry for tests. Its behavior is determined by
// how the mock is configured.
type MockRegistry struct {
	mock.Mock
}

// LookupDevice implements Registry.
func (m *MockRegistry) LookupDevice(ctx context.Context, id identity.ID) (Device, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Device), args.Error(1)
}

// MarkProvisioned implements Registry.
func (m *MockRegistry) MarkProvisioned(ctx context.Context, id identity.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Compile-time interface satisfaction check.
var _ Registry = (*MockRegistry)(nil)
