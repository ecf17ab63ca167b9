package sqs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/martijngastkemper/worker-bundle/pkg/metrics"
)

type urlGetter interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// Resolver maps queue names to queue URLs and caches the result for its own lifetime.
// Negative lookups are never cached. It is safe for concurrent use; concurrent misses
// for the same name may each call the service, last write wins.
type Resolver struct {
	client  urlGetter
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	urls map[string]string
}

// NewResolver creates a Resolver. log and m may be nil.
func NewResolver(client urlGetter, log *zap.SugaredLogger, m *metrics.Metrics) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		client:  client,
		log:     log,
		metrics: m,
		urls:    make(map[string]string),
	}
}

// Resolve returns the URL of the named queue.
//
// Returns:
//   - url, true, nil: the queue exists
//   - "", false, nil: the service reports no such queue
//   - "", false, err: any other failure
func (r *Resolver) Resolve(ctx context.Context, name string) (string, bool, error) {
	r.mu.RLock()
	url, ok := r.urls[name]
	r.mu.RUnlock()
	r.metrics.RecordCacheLookup(ok)
	if ok {
		return url, true, nil
	}

	out, err := r.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if IsQueueNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get url of queue %q: %w", name, err)
	}

	url = aws.ToString(out.QueueUrl)
	r.mu.Lock()
	r.urls[name] = url
	r.mu.Unlock()

	r.log.Debugw("resolved queue url", "queue", name, "url", url)
	return url, true, nil
}

// Invalidate drops the cached URL of the named queue.
func (r *Resolver) Invalidate(name string) {
	r.mu.Lock()
	delete(r.urls, name)
	r.mu.Unlock()
}

// QueueName returns the queue name encoded in a queue URL: the last path segment.
func QueueName(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
