package store

import (
	"context"
	"time"
)

// MockMetadataCache
type MockMetadataCache struct {
	Values map[string][]byte
	// Allow forcing errors for testing
	Err error
}

func NewMockMetadataCache() *MockMetadataCache {
	return &MockMetadataCache{Values: make(map[string][]byte)}
}

func (m *MockMetadataCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Values[key], nil
}

func (m *MockMetadataCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.Values[key] = value
	return nil
}

// MockUsageStore
type MockUsageStore struct {
	Records []*UsageRecord
}

func (m *MockUsageStore) LogUsage(ctx context.Context, record *UsageRecord) error {
	m.Records = append(m.Records, record)
	return nil
}
