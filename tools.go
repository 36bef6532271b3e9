//go:build tools

package tools

// No tool dependencies are tracked with blank imports. mockery is used as an
// installed binary: run `mockery` from the repository root to regenerate
// pkg/link/mocks from .mockery.yaml.
