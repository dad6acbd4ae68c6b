package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockClientForTest creates a chain client mock bound to t.
func NewMockClientForTest(t *testing.T) *MockClient {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockClient(ctrl)
}

// NewMockRepositoryForTest creates a draft repository mock bound to t.
func NewMockRepositoryForTest(t *testing.T) *MockRepository {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockRepository(ctrl)
}
