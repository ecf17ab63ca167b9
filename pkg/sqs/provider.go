package sqs

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/martijngastkemper/worker-bundle/pkg/codec"
	"github.com/martijngastkemper/worker-bundle/pkg/metrics"
	"github.com/martijngastkemper/worker-bundle/pkg/queue"
)

// Queue attribute names the provider reads or writes.
const (
	AttrReceiveMessageWaitTimeSeconds = string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds)
	AttrApproximateNumberOfMessages   = string(types.QueueAttributeNameApproximateNumberOfMessages)
)

// DefaultWaitTime is the long-polling wait applied to new queues that do not set one.
const DefaultWaitTime = 20 * time.Second

// Operation names used as metric labels.
const (
	opCreateQueue  = "create_queue"
	opDeleteQueue  = "delete_queue"
	opListQueues   = "list_queues"
	opQueueExists  = "queue_exists"
	opQueueOptions = "queue_options"
	opUpdateQueue  = "update_queue"
	opCount        = "count"
	opPut          = "put"
	opMultiPut     = "multi_put"
	opGet          = "get"
)

// Provider is the SQS implementation of queue.Provider.
//
// Every method performs synchronous calls to SQS; nothing runs in the background and no
// call is retried beyond what the SDK client does.
type Provider struct {
	client   API
	resolver *Resolver
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	waitTime time.Duration
}

var _ queue.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The provider only logs at debug level.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Provider) {
		p.log = log
	}
}

// WithMetrics records provider activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithDefaultWaitTime overrides DefaultWaitTime for queues created by the provider.
func WithDefaultWaitTime(d time.Duration) Option {
	return func(p *Provider) {
		p.waitTime = d
	}
}

// New creates a Provider using client.
func New(client API, opts ...Option) *Provider {
	p := &Provider{
		client:   client,
		log:      zap.NewNop().Sugar(),
		waitTime: DefaultWaitTime,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = NewResolver(client, p.log, p.metrics)
	return p
}

// Resolver returns the provider's queue URL resolver.
func (p *Provider) Resolver() *Resolver {
	return p.resolver
}

// observe starts timing op; the returned func records the outcome held in *err.
func (p *Provider) observe(op string, err *error) func() {
	start := time.Now()
	return func() {
		p.metrics.RecordCall(op, *err, time.Since(start).Seconds())
	}
}

// queueURL resolves name and turns an absent queue into queue.ErrQueueNotFound.
func (p *Provider) queueURL(ctx context.Context, name string) (string, error) {
	url, found, err := p.resolver.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", queue.ErrQueueNotFound, name)
	}
	return url, nil
}

// CreateQueue creates the named queue. When options carry no long-polling wait time the
// provider's default is applied; options itself is not modified.
func (p *Provider) CreateQueue(ctx context.Context, name string, options queue.Options) (_ *queue.Queue, err error) {
	defer p.observe(opCreateQueue, &err)()

	attrs := options.Clone()
	if _, ok := attrs[AttrReceiveMessageWaitTimeSeconds]; !ok {
		attrs[AttrReceiveMessageWaitTimeSeconds] = strconv.Itoa(int(p.waitTime / time.Second))
	}

	out, err := p.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue %q: %w", name, err)
	}

	url := aws.ToString(out.QueueUrl)
	p.log.Debugw("created queue", "queue", name, "url", url)
	return queue.NewQueue(name, url, p), nil
}

// DeleteQueue deletes the named queue and forgets its cached URL.
func (p *Provider) DeleteQueue(ctx context.Context, name string) (err error) {
	defer p.observe(opDeleteQueue, &err)()

	url, err := p.queueURL(ctx, name)
	if err != nil {
		return err
	}

	if _, err = p.client.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)}); err != nil {
		return fmt.Errorf("failed to delete queue %q: %w", name, err)
	}

	p.resolver.Invalidate(name)
	p.log.Debugw("deleted queue", "queue", name, "url", url)
	return nil
}

// ListQueues returns the names of all queues whose name starts with prefix, following
// every result page.
func (p *Provider) ListQueues(ctx context.Context, prefix string) (_ []string, err error) {
	defer p.observe(opListQueues, &err)()

	input := &sqs.ListQueuesInput{}
	if prefix != "" {
		input.QueueNamePrefix = aws.String(prefix)
	}

	names := []string{}
	pager := sqs.NewListQueuesPaginator(p.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list queues: %w", err)
		}
		for _, url := range page.QueueUrls {
			names = append(names, QueueName(url))
		}
	}
	return names, nil
}

// QueueExists reports whether the named queue exists. Failures other than a missing
// queue are returned as errors.
func (p *Provider) QueueExists(ctx context.Context, name string) (_ bool, err error) {
	defer p.observe(opQueueExists, &err)()

	_, found, err := p.resolver.Resolve(ctx, name)
	if err != nil {
		return false, err
	}
	return found, nil
}

// QueueOptions returns every attribute SQS reports for the named queue.
func (p *Provider) QueueOptions(ctx context.Context, name string) (_ queue.Options, err error) {
	defer p.observe(opQueueOptions, &err)()
	return p.queueOptions(ctx, name)
}

func (p *Provider) queueOptions(ctx context.Context, name string) (queue.Options, error) {
	url, err := p.queueURL(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes of queue %q: %w", name, err)
	}
	return queue.Options(out.Attributes).Clone(), nil
}

// UpdateQueue sets the supplied attributes. Attributes not in options keep their value.
func (p *Provider) UpdateQueue(ctx context.Context, name string, options queue.Options) (err error) {
	defer p.observe(opUpdateQueue, &err)()

	url, err := p.queueURL(ctx, name)
	if err != nil {
		return err
	}

	_, err = p.client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(url),
		Attributes: options.Clone(),
	})
	if err != nil {
		return fmt.Errorf("failed to set attributes of queue %q: %w", name, err)
	}
	return nil
}

// Count returns the approximate number of visible messages in the named queue.
func (p *Provider) Count(ctx context.Context, name string) (_ int, err error) {
	defer p.observe(opCount, &err)()

	opts, err := p.queueOptions(ctx, name)
	if err != nil {
		return 0, err
	}

	raw, ok := opts[AttrApproximateNumberOfMessages]
	if !ok {
		return 0, fmt.Errorf("queue %q did not report %s", name, AttrApproximateNumberOfMessages)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q for queue %q: %w", AttrApproximateNumberOfMessages, raw, name, err)
	}
	return n, nil
}

// Put encodes value and sends it to the named queue.
func (p *Provider) Put(ctx context.Context, name string, value any) (err error) {
	defer p.observe(opPut, &err)()

	url, err := p.queueURL(ctx, name)
	if err != nil {
		return err
	}

	body, err := codec.Encode(value)
	if err != nil {
		return err
	}

	if _, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("failed to send message to queue %q: %w", name, err)
	}

	p.metrics.AddMessagesSent(1, 0)
	return nil
}

// MultiPut encodes each value and sends them in one batch request. Batch limits are
// enforced by SQS and surface as errors.
//
// Entries SQS rejects individually do not make MultiPut fail; they are reported in the
// returned results, indexed in submission order.
func (p *Provider) MultiPut(ctx context.Context, name string, values []any) (_ []queue.EntryResult, err error) {
	defer p.observe(opMultiPut, &err)()

	url, err := p.queueURL(ctx, name)
	if err != nil {
		return nil, err
	}

	entries := make([]types.SendMessageBatchRequestEntry, 0, len(values))
	for i, v := range values {
		body, err := codec.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:          aws.String(strconv.Itoa(i)),
			MessageBody: aws.String(body),
		})
	}

	out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(url),
		Entries:  entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message batch to queue %q: %w", name, err)
	}

	results := batchResults(len(values), out)
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	p.metrics.AddMessagesSent(len(values)-failed, failed)
	if failed > 0 {
		p.log.Debugw("batch entries rejected", "queue", name, "failed", failed, "total", len(values))
	}
	return results, nil
}

func batchResults(n int, out *sqs.SendMessageBatchOutput) []queue.EntryResult {
	results := make([]queue.EntryResult, n)
	reported := make([]bool, n)
	for i := range results {
		results[i].Index = i
	}

	entryIndex := func(id *string) (int, bool) {
		i, err := strconv.Atoi(aws.ToString(id))
		return i, err == nil && i >= 0 && i < n
	}

	for _, s := range out.Successful {
		if i, ok := entryIndex(s.Id); ok {
			results[i].OK = true
			results[i].MessageID = aws.ToString(s.MessageId)
			reported[i] = true
		}
	}
	for _, f := range out.Failed {
		if i, ok := entryIndex(f.Id); ok {
			results[i].Code = aws.ToString(f.Code)
			results[i].Message = aws.ToString(f.Message)
			reported[i] = true
		}
	}
	for i, ok := range reported {
		if !ok {
			results[i].Code = queue.CodeMissingResult
			results[i].Message = "no result reported for entry"
		}
	}
	return results
}

// Get receives at most one message from the named queue into out.
//
// A positive wait long-polls for up to wait, rounded up to whole seconds; zero uses the
// queue's own setting. When no message arrives Get returns false and nil.
//
// out must be a non-nil pointer; otherwise Get returns queue.ErrInvalidOutput without
// receiving anything.
//
// A received message is deleted from the queue before its body is checked or decoded, so
// delivery past this call is at most once. A checksum mismatch returns a
// *queue.CorruptedMessageError and a body that cannot be decoded a *codec.DecodeError;
// in both cases the message is gone.
func (p *Provider) Get(ctx context.Context, name string, wait time.Duration, out any) (_ bool, err error) {
	defer p.observe(opGet, &err)()

	if rv := reflect.ValueOf(out); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, fmt.Errorf("%w, got %T", queue.ErrInvalidOutput, out)
	}

	url, err := p.queueURL(ctx, name)
	if err != nil {
		return false, err
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: 1,
	}
	if wait > 0 {
		input.WaitTimeSeconds = waitSeconds(wait)
	}

	resp, err := p.client.ReceiveMessage(ctx, input)
	if err != nil {
		return false, fmt.Errorf("failed to receive message from queue %q: %w", name, err)
	}
	if len(resp.Messages) == 0 {
		p.metrics.RecordReceive(false)
		return false, nil
	}
	p.metrics.RecordReceive(true)

	msg := resp.Messages[0]
	id := aws.ToString(msg.MessageId)
	body := aws.ToString(msg.Body)

	if _, err = p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		return false, fmt.Errorf("failed to acknowledge message %q on queue %q: %w", id, name, err)
	}
	p.metrics.IncAcknowledged()
	p.log.Debugw("acknowledged message", "queue", name, "messageID", id)

	if expected := aws.ToString(msg.MD5OfBody); !codec.Verify(body, expected) {
		p.metrics.IncError(metrics.ErrTypeCorruptedMessage)
		return false, &queue.CorruptedMessageError{
			Queue:     name,
			MessageID: id,
			Expected:  expected,
			Actual:    codec.Checksum(body),
		}
	}

	if err = codec.Decode(body, out); err != nil {
		p.metrics.IncError(metrics.ErrTypeDecode)
		return false, fmt.Errorf("message %q on queue %q: %w", id, name, err)
	}
	return true, nil
}

// waitSeconds converts a positive long-poll wait into whole seconds, rounding up and
// saturating at math.MaxInt32. SQS rejects values above its own limit.
func waitSeconds(wait time.Duration) int32 {
	secs := wait / time.Second
	if wait%time.Second != 0 {
		secs++
	}
	return int32(min(max(secs, 1), math.MaxInt32))
}
