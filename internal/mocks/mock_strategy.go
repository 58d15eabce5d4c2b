// Written by hand in the shape of MockGen output.
// Source: github.com/sarchlab/vmemsim/mem/vm/alloc (interfaces: Strategy)

// Package mocks contains hand-maintained stand-ins for the generated mocks
// mockgen would otherwise produce for this module's interfaces.
package mocks

import (
	"math/rand"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/vmemsim/mem/vm/alloc"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

// MockStrategy is a mock of the alloc.Strategy interface.
type MockStrategy struct {
	ctrl     *gomock.Controller
	recorder *MockStrategyMockRecorder
}

// MockStrategyMockRecorder is the mock recorder for MockStrategy.
type MockStrategyMockRecorder struct {
	mock *MockStrategy
}

// NewMockStrategy creates a new mock instance.
func NewMockStrategy(ctrl *gomock.Controller) *MockStrategy {
	mock := &MockStrategy{ctrl: ctrl}
	mock.recorder = &MockStrategyMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStrategy) EXPECT() *MockStrategyMockRecorder {
	return m.recorder
}

// Allocate mocks base method.
func (m *MockStrategy) Allocate(ctx *alloc.Context, numPages int, data, swap *frame.Pool, rng *rand.Rand) (alloc.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Allocate", ctx, numPages, data, swap, rng)
	ret0, _ := ret[0].(alloc.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Allocate indicates an expected call of Allocate.
func (mr *MockStrategyMockRecorder) Allocate(ctx, numPages, data, swap, rng any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Allocate", reflect.TypeOf((*MockStrategy)(nil).Allocate), ctx, numPages, data, swap, rng)
}
