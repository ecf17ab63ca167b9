package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateQueue(ctx context.Context, name string, options Options) (*Queue, error) {
	args := m.Called(ctx, name, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Queue), args.Error(1)
}

func (m *mockProvider) DeleteQueue(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockProvider) ListQueues(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProvider) QueueExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockProvider) QueueOptions(ctx context.Context, name string) (Options, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(Options), args.Error(1)
}

func (m *mockProvider) UpdateQueue(ctx context.Context, name string, options Options) error {
	return m.Called(ctx, name, options).Error(0)
}

func (m *mockProvider) Count(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

func (m *mockProvider) Put(ctx context.Context, name string, value any) error {
	return m.Called(ctx, name, value).Error(0)
}

func (m *mockProvider) MultiPut(ctx context.Context, name string, values []any) ([]EntryResult, error) {
	args := m.Called(ctx, name, values)
	return args.Get(0).([]EntryResult), args.Error(1)
}

func (m *mockProvider) Get(ctx context.Context, name string, wait time.Duration, out any) (bool, error) {
	args := m.Called(ctx, name, wait, out)
	return args.Bool(0), args.Error(1)
}

func TestOptions_Clone(t *testing.T) {
	original := Options{"VisibilityTimeout": "30"}
	clone := original.Clone()
	clone["VisibilityTimeout"] = "60"
	clone["DelaySeconds"] = "5"

	assert.Equal(t, Options{"VisibilityTimeout": "30"}, original)

	var none Options
	empty := none.Clone()
	require.NotNil(t, empty)
	empty["a"] = "b" // must not panic
}

func TestQueue_DelegatesToProvider(t *testing.T) {
	ctx := context.Background()
	p := &mockProvider{}
	q := NewQueue("jobs", "https://example/jobs", p)

	var out string
	p.On("Put", ctx, "jobs", "v").Return(nil)
	p.On("MultiPut", ctx, "jobs", []any{"a"}).Return([]EntryResult{{Index: 0, OK: true}}, nil)
	p.On("Get", ctx, "jobs", 3*time.Second, &out).Return(true, nil)
	p.On("Count", ctx, "jobs").Return(7, nil)
	p.On("QueueOptions", ctx, "jobs").Return(Options{"DelaySeconds": "0"}, nil)
	p.On("UpdateQueue", ctx, "jobs", Options{"DelaySeconds": "1"}).Return(nil)
	p.On("DeleteQueue", ctx, "jobs").Return(nil)

	require.NoError(t, q.Put(ctx, "v"))

	results, err := q.MultiPut(ctx, []any{"a"})
	require.NoError(t, err)
	assert.Equal(t, []EntryResult{{Index: 0, OK: true}}, results)

	ok, err := q.Get(ctx, 3*time.Second, &out)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	opts, err := q.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, Options{"DelaySeconds": "0"}, opts)

	require.NoError(t, q.Update(ctx, Options{"DelaySeconds": "1"}))
	require.NoError(t, q.Delete(ctx))

	p.AssertExpectations(t)
}

func TestErrQueueNotFound_Wrapped(t *testing.T) {
	err := fmt.Errorf("%w: %s", ErrQueueNotFound, "jobs")
	assert.True(t, errors.Is(err, ErrQueueNotFound))
	assert.Equal(t, "queue does not exist: jobs", err.Error())
}

func TestCorruptedMessageError(t *testing.T) {
	var err error = &CorruptedMessageError{Queue: "jobs", MessageID: "m-1", Expected: "aa", Actual: "bb"}

	var corrupted *CorruptedMessageError
	require.ErrorAs(t, fmt.Errorf("get: %w", err), &corrupted)
	assert.Equal(t, "m-1", corrupted.MessageID)
	assert.Contains(t, err.Error(), `"jobs"`)
	assert.Contains(t, err.Error(), "aa")
	assert.Contains(t, err.Error(), "bb")
}
