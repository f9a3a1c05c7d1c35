package meltest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/melport/melport/host"
	"github.com/melport/melport/mel"
)

// MockHost is a mock implementation of host.Host for behavior verification.
// Prefer Host for scripted interactions; use MockHost when a test needs to
// assert exact call sequences or argument values.
type MockHost struct {
	mock.Mock
}

// Run is a mock implementation of the Run method.
func (m *MockHost) Run(ctx context.Context, cmd string) (*mel.Result, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*mel.Result)
	return res, args.Error(1)
}

// AddMessageCallback is a mock implementation of the AddMessageCallback method.
func (m *MockHost) AddMessageCallback(fn func(host.Message)) (host.CallbackID, error) {
	args := m.Called(fn)
	id, _ := args.Get(0).(host.CallbackID)
	return id, args.Error(1)
}

// RemoveMessageCallback is a mock implementation of the RemoveMessageCallback method.
func (m *MockHost) RemoveMessageCallback(id host.CallbackID) error {
	args := m.Called(id)
	return args.Error(0)
}

// Close is a mock implementation of the Close method.
func (m *MockHost) Close() error {
	args := m.Called()
	return args.Error(0)
}
