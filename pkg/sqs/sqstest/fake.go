// Package sqstest provides an in-memory SQS for tests.
package sqstest

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/martijngastkemper/worker-bundle/pkg/codec"
)

// Operation names accepted by Calls and Fail.
const (
	OpCreateQueue        = "CreateQueue"
	OpDeleteQueue        = "DeleteQueue"
	OpGetQueueUrl        = "GetQueueUrl"
	OpListQueues         = "ListQueues"
	OpGetQueueAttributes = "GetQueueAttributes"
	OpSetQueueAttributes = "SetQueueAttributes"
	OpSendMessage        = "SendMessage"
	OpSendMessageBatch   = "SendMessageBatch"
	OpReceiveMessage     = "ReceiveMessage"
	OpDeleteMessage      = "DeleteMessage"
)

const (
	baseURL         = "https://sqs.eu-west-1.amazonaws.com/000000000000/"
	maxBatchEntries = 10
)

type message struct {
	id      string
	body    string
	receipt string
}

type fakeQueue struct {
	url         string
	createAttrs map[string]string
	attrs       map[string]string
	messages    []message
	inFlight    map[string]message
}

// Fake is an in-memory stand-in for the SQS client. It stores exactly what is sent and
// counts every call. The zero value is not usable; use New.
type Fake struct {
	// TamperBody, when set, rewrites bodies returned by ReceiveMessage. The reported
	// MD5OfBody is still computed over the stored body.
	TamperBody func(body string) string
	// RejectEntry, when set, makes SendMessageBatch report entries as failed.
	RejectEntry func(body string) bool
	// PageSize, when positive, splits ListQueues results into pages of this size.
	PageSize int

	mu      sync.Mutex
	queues  map[string]*fakeQueue
	order   []string
	calls   map[string]int
	errs    map[string]error
	nextID  int
	creates []*sqs.CreateQueueInput
	recvs   []*sqs.ReceiveMessageInput
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		queues: make(map[string]*fakeQueue),
		calls:  make(map[string]int),
		errs:   make(map[string]error),
	}
}

// Calls returns how many times op was called.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Fail makes every following call to op return err. A nil err clears it.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// CreateInputs returns every CreateQueue request received.
func (f *Fake) CreateInputs() []*sqs.CreateQueueInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sqs.CreateQueueInput(nil), f.creates...)
}

// ReceiveInputs returns every ReceiveMessage request received.
func (f *Fake) ReceiveInputs() []*sqs.ReceiveMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sqs.ReceiveMessageInput(nil), f.recvs...)
}

// Bodies returns the stored bodies of the named queue, visible messages first.
func (f *Fake) Bodies(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil
	}
	bodies := make([]string, 0, len(q.messages)+len(q.inFlight))
	for _, m := range q.messages {
		bodies = append(bodies, m.body)
	}
	for _, m := range q.inFlight {
		bodies = append(bodies, m.body)
	}
	return bodies
}

// Enqueue stores a raw body on the named queue, bypassing SendMessage.
func (f *Fake) Enqueue(name, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return notFound()
	}
	q.messages = append(q.messages, message{id: f.newID("msg"), body: body})
	return nil
}

// call records op and returns the injected error, if any. f.mu must be held.
func (f *Fake) call(op string) error {
	f.calls[op]++
	return f.errs[op]
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

func notFound() error {
	return &types.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
}

func (f *Fake) byURL(url *string) (*fakeQueue, error) {
	name := strings.TrimPrefix(aws.ToString(url), baseURL)
	q, ok := f.queues[name]
	if !ok || q.url != aws.ToString(url) {
		return nil, notFound()
	}
	return q, nil
}

func (f *Fake) CreateQueue(_ context.Context, in *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpCreateQueue); err != nil {
		return nil, err
	}
	f.creates = append(f.creates, in)

	name := aws.ToString(in.QueueName)
	if q, ok := f.queues[name]; ok {
		if !maps.Equal(q.createAttrs, in.Attributes) {
			return nil, &types.QueueNameExists{Message: aws.String("A queue already exists with the same name and a different value for attribute(s)")}
		}
		return &sqs.CreateQueueOutput{QueueUrl: aws.String(q.url)}, nil
	}

	q := &fakeQueue{
		url:         baseURL + name,
		createAttrs: maps.Clone(in.Attributes),
		attrs: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout):             "30",
			string(types.QueueAttributeNameMessageRetentionPeriod):        "345600",
			string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds): "0",
			string(types.QueueAttributeNameQueueArn):                      "arn:aws:sqs:eu-west-1:000000000000:" + name,
		},
		inFlight: make(map[string]message),
	}
	maps.Copy(q.attrs, in.Attributes)
	f.queues[name] = q
	f.order = append(f.order, name)
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(q.url)}, nil
}

func (f *Fake) DeleteQueue(_ context.Context, in *sqs.DeleteQueueInput, _ ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpDeleteQueue); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(q.url, baseURL)
	delete(f.queues, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *Fake) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) { //nolint:revive // matches the SDK method name
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpGetQueueUrl); err != nil {
		return nil, err
	}

	q, ok := f.queues[aws.ToString(in.QueueName)]
	if !ok {
		return nil, notFound()
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(q.url)}, nil
}

func (f *Fake) ListQueues(_ context.Context, in *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpListQueues); err != nil {
		return nil, err
	}

	var urls []string
	for _, name := range f.order {
		if strings.HasPrefix(name, aws.ToString(in.QueueNamePrefix)) {
			urls = append(urls, f.queues[name].url)
		}
	}

	if f.PageSize <= 0 {
		return &sqs.ListQueuesOutput{QueueUrls: urls}, nil
	}

	offset := 0
	if in.NextToken != nil {
		n, err := strconv.Atoi(*in.NextToken)
		if err != nil {
			return nil, fmt.Errorf("invalid next token %q", *in.NextToken)
		}
		offset = n
	}
	end := min(offset+f.PageSize, len(urls))
	out := &sqs.ListQueuesOutput{QueueUrls: urls[offset:end]}
	if end < len(urls) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *Fake) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpGetQueueAttributes); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}

	all := maps.Clone(q.attrs)
	all[string(types.QueueAttributeNameApproximateNumberOfMessages)] = strconv.Itoa(len(q.messages))
	all[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)] = strconv.Itoa(len(q.inFlight))

	attrs := make(map[string]string)
	for _, n := range in.AttributeNames {
		if n == types.QueueAttributeNameAll {
			return &sqs.GetQueueAttributesOutput{Attributes: all}, nil
		}
		if v, ok := all[string(n)]; ok {
			attrs[string(n)] = v
		}
	}
	return &sqs.GetQueueAttributesOutput{Attributes: attrs}, nil
}

func (f *Fake) SetQueueAttributes(_ context.Context, in *sqs.SetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpSetQueueAttributes); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}
	maps.Copy(q.attrs, in.Attributes)
	return &sqs.SetQueueAttributesOutput{}, nil
}

func (f *Fake) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpSendMessage); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}
	body := aws.ToString(in.MessageBody)
	m := message{id: f.newID("msg"), body: body}
	q.messages = append(q.messages, m)
	return &sqs.SendMessageOutput{
		MessageId:        aws.String(m.id),
		MD5OfMessageBody: aws.String(codec.Checksum(body)),
	}, nil
}

func (f *Fake) SendMessageBatch(_ context.Context, in *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpSendMessageBatch); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}
	if len(in.Entries) == 0 {
		return nil, &types.EmptyBatchRequest{Message: aws.String("There should be at least one SendMessageBatchRequestEntry in the request.")}
	}
	if len(in.Entries) > maxBatchEntries {
		return nil, &types.TooManyEntriesInBatchRequest{Message: aws.String(fmt.Sprintf("Maximum number of entries per request are %d.", maxBatchEntries))}
	}

	out := &sqs.SendMessageBatchOutput{}
	for _, e := range in.Entries {
		body := aws.ToString(e.MessageBody)
		if f.RejectEntry != nil && f.RejectEntry(body) {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{
				Id:      e.Id,
				Code:    aws.String("InvalidMessageContents"),
				Message: aws.String("rejected by test"),
			})
			continue
		}
		m := message{id: f.newID("msg"), body: body}
		q.messages = append(q.messages, m)
		out.Successful = append(out.Successful, types.SendMessageBatchResultEntry{
			Id:               e.Id,
			MessageId:        aws.String(m.id),
			MD5OfMessageBody: aws.String(codec.Checksum(body)),
		})
	}
	return out, nil
}

func (f *Fake) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpReceiveMessage); err != nil {
		return nil, err
	}
	f.recvs = append(f.recvs, in)

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}

	n := int(in.MaxNumberOfMessages)
	if n <= 0 {
		n = 1
	}
	n = min(n, len(q.messages))

	out := &sqs.ReceiveMessageOutput{}
	for _, m := range q.messages[:n] {
		m.receipt = f.newID("receipt")
		q.inFlight[m.receipt] = m

		body := m.body
		if f.TamperBody != nil {
			body = f.TamperBody(body)
		}
		out.Messages = append(out.Messages, types.Message{
			MessageId:     aws.String(m.id),
			ReceiptHandle: aws.String(m.receipt),
			Body:          aws.String(body),
			MD5OfBody:     aws.String(codec.Checksum(m.body)),
		})
	}
	q.messages = q.messages[n:]
	return out, nil
}

func (f *Fake) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call(OpDeleteMessage); err != nil {
		return nil, err
	}

	q, err := f.byURL(in.QueueUrl)
	if err != nil {
		return nil, err
	}
	receipt := aws.ToString(in.ReceiptHandle)
	if _, ok := q.inFlight[receipt]; !ok {
		return nil, &types.ReceiptHandleIsInvalid{Message: aws.String("The input receipt handle is invalid.")}
	}
	delete(q.inFlight, receipt)
	return &sqs.DeleteMessageOutput{}, nil
}
