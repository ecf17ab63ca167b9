package queue

import (
	"context"
	"time"
)

// Options holds provider-defined queue attributes, such as visibility timeout or
// long-polling wait time.
type Options map[string]string

// Clone returns a copy of o. A nil Options clones into an empty, non-nil map.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// CodeMissingResult is the EntryResult code of an entry the provider reported neither as
// sent nor as failed.
const CodeMissingResult = "MissingResult"

// EntryResult reports the outcome of one entry of a MultiPut, in submission order.
type EntryResult struct {
	Index     int
	OK        bool
	MessageID string
	Code      string // provider error code when !OK, CodeMissingResult when the provider reported none
	Message   string // provider error message when !OK
}

type Provider interface {
	// CreateQueue creates the named queue and returns a handle to it.
	// Creating an existing queue with the same options succeeds.
	CreateQueue(ctx context.Context, name string, options Options) (*Queue, error)

	// DeleteQueue deletes the named queue.
	DeleteQueue(ctx context.Context, name string) error

	// ListQueues returns the names of all queues starting with prefix.
	// An empty prefix lists every queue. Order is backend-defined.
	ListQueues(ctx context.Context, prefix string) ([]string, error)

	// QueueExists reports whether the named queue exists.
	QueueExists(ctx context.Context, name string) (bool, error)

	// QueueOptions returns all attributes of the named queue.
	QueueOptions(ctx context.Context, name string) (Options, error)

	// UpdateQueue changes the supplied attributes and leaves the rest untouched.
	UpdateQueue(ctx context.Context, name string, options Options) error

	// Count returns the approximate number of visible messages.
	Count(ctx context.Context, name string) (int, error)

	// Put sends one value to the named queue.
	Put(ctx context.Context, name string, value any) error

	// MultiPut sends values in a single batch request.
	MultiPut(ctx context.Context, name string, values []any) ([]EntryResult, error)

	// Get receives at most one value into out, waiting up to wait for one to arrive.
	// It returns false when the queue is empty. A received message is acknowledged
	// before Get returns. out must be a non-nil pointer.
	Get(ctx context.Context, name string, wait time.Duration, out any) (bool, error)
}

// Queue is a handle on a named queue, bound to the provider that created it.
type Queue struct {
	Name     string
	URL      string
	provider Provider
}

// NewQueue returns a handle on the named queue.
func NewQueue(name, url string, p Provider) *Queue {
	return &Queue{Name: name, URL: url, provider: p}
}

func (q *Queue) Put(ctx context.Context, value any) error {
	return q.provider.Put(ctx, q.Name, value)
}

func (q *Queue) MultiPut(ctx context.Context, values []any) ([]EntryResult, error) {
	return q.provider.MultiPut(ctx, q.Name, values)
}

func (q *Queue) Get(ctx context.Context, wait time.Duration, out any) (bool, error) {
	return q.provider.Get(ctx, q.Name, wait, out)
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.provider.Count(ctx, q.Name)
}

func (q *Queue) Options(ctx context.Context) (Options, error) {
	return q.provider.QueueOptions(ctx, q.Name)
}

func (q *Queue) Update(ctx context.Context, options Options) error {
	return q.provider.UpdateQueue(ctx, q.Name, options)
}

func (q *Queue) Delete(ctx context.Context) error {
	return q.provider.DeleteQueue(ctx, q.Name)
}
