package main

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, fingerprint, outputDir string) (*model.Run, error) {
	args := m.Called(ctx, fingerprint, outputDir)
	if r := args.Get(0); r != nil {
		return r.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, summary []byte) error {
	return m.Called(ctx, runID, summary).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, runErr error) error {
	return m.Called(ctx, runID, runErr).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if r := args.Get(0); r != nil {
		return r.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.([]model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) SaveEdges(ctx context.Context, runID string, edges []store.EdgeRecord) error {
	return m.Called(ctx, runID, edges).Error(0)
}

func (m *mockStore) ListEdges(ctx context.Context, runID string, coreOnly bool) ([]store.EdgeRecord, error) {
	args := m.Called(ctx, runID, coreOnly)
	if r := args.Get(0); r != nil {
		return r.([]store.EdgeRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
