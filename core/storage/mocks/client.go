package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of storage.Client
type Client struct {
	mock.Mock
}

func (m *Client) EnsureBucket(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *Client) Put(ctx context.Context, key string, doc []byte) error {
	args := m.Called(ctx, key, doc)
	return args.Error(0)
}

func (m *Client) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	doc, _ := args.Get(0).([]byte)
	return doc, args.Error(1)
}

func (m *Client) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Client) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}
