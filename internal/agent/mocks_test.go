package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
)

// mockCapabilities is a testify mock of Capabilities.
type mockCapabilities struct {
	mock.Mock
}

func (m *mockCapabilities) Listings(kind capability.Kind) []capability.Listing {
	args := m.Called(kind)
	l, _ := args.Get(0).([]capability.Listing)
	return l
}

func (m *mockCapabilities) Invoke(ctx context.Context, kind capability.Kind, name string, raw map[string]any) (*capability.Result, error) {
	args := m.Called(ctx, kind, name, raw)
	r, _ := args.Get(0).(*capability.Result)
	return r, args.Error(1)
}

func (m *mockCapabilities) Snapshot() capability.Snapshot {
	args := m.Called()
	return args.Get(0).(capability.Snapshot)
}
