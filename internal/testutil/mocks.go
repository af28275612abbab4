// Package testutil provides fixtures and mock implementations for interfaces
// defined in the seg-batch core library (pkg/segbatch). These mocks isolate
// components for unit testing.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

// MockInvoker provides a mock implementation of the segbatch.Invoker
// interface. Configure expectations using testify/mock methods
// (e.g., .On("Invoke", ...).Return(...)).
type MockInvoker struct {
	mock.Mock
}

// Invoke mocks the Invoke method.
func (m *MockInvoker) Invoke(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
	args := m.Called(ctx, task)
	result, _ := args.Get(0).(segbatch.InvocationResult)
	return result, args.Error(1)
}

// MockHooks provides a mock implementation of the segbatch.Hooks interface.
// Tests that only need to observe hook traffic should prefer a plain
// recording implementation; this mock exists for expectation-style tests.
type MockHooks struct {
	mock.Mock
}

// OnSceneDiscovered mocks the OnSceneDiscovered method.
func (m *MockHooks) OnSceneDiscovered(sceneID string) error {
	args := m.Called(sceneID)
	return args.Error(0)
}

// OnSceneStatusUpdate mocks the OnSceneStatusUpdate method.
func (m *MockHooks) OnSceneStatusUpdate(sceneID string, status segbatch.Status, message string, completed, total int) error {
	args := m.Called(sceneID, status, message, completed, total)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report segbatch.Report) error {
	args := m.Called(report)
	return args.Error(0)
}
