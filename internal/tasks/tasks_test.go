package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	items map[string][]string
	err   error
}

func (f *fakeLister) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[key], nil
}

func TestListDecodesTasks(t *testing.T) {
	s := NewService(&fakeLister{items: map[string][]string{
		"jessica:tasks:u1": {
			`{"id":"t1","title":"file VA paperwork","completed":false,"priority":"high"}`,
			`{"id":"t2","title":"walk the dog","completed":true}`,
		},
	}})

	got, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "file VA paperwork", got[0].Title)
	assert.Equal(t, "high", got[0].Priority)
	assert.True(t, got[1].Completed)
}

func TestListSkipsMalformedRecords(t *testing.T) {
	s := NewService(&fakeLister{items: map[string][]string{
		"jessica:tasks:u1": {`not json`, `{"id":"t1","title":"ok"}`},
	}})

	got, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}

func TestListEmptyUser(t *testing.T) {
	s := NewService(&fakeLister{items: map[string][]string{}})
	got, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListStoreError(t *testing.T) {
	s := NewService(&fakeLister{err: errors.New("redis down")})
	_, err := s.List(context.Background(), "u1")
	assert.Error(t, err)
}
