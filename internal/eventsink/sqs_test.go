package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/entregas-ecom/internal/realtime"
)

func init() {
	log.SetOutput(io.Discard)
}

type fakeSQS struct {
	mu    sync.Mutex
	sent  []*sqs.SendMessageInput
	fails int
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("throttled")
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m")}, nil
}

func (f *fakeSQS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func run(t *testing.T, p *Publisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestPublishesEvents(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.us-east-1.amazonaws.com/1/orders", 8)
	run(t, p)

	p.Broadcast(realtime.NewEvent(realtime.EventStatusUpdated, 42, realtime.StatusUpdatedPayload{OrderID: 42, NewStatus: "ready"}),
		realtime.Audience{CustomerID: "c1", SellerIDs: []string{"s1"}})

	require.Eventually(t, func() bool { return fake.count() == 1 }, time.Second, 5*time.Millisecond)
	in := fake.sent[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/orders", *in.QueueUrl)
	assert.Equal(t, "order:status-updated", *in.MessageAttributes["event"].StringValue)
	assert.Equal(t, "42", *in.MessageAttributes["orderId"].StringValue)
	assert.Nil(t, in.MessageGroupId)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &body))
	assert.Equal(t, "order:status-updated", body["event"])
	assert.Equal(t, "c1", body["customerId"])
}

func TestFIFOGroupsByOrder(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.us-east-1.amazonaws.com/1/orders.fifo", 8)
	run(t, p)

	p.Broadcast(realtime.NewEvent(realtime.EventNewOrder, 7, nil), realtime.Audience{})

	require.Eventually(t, func() bool { return fake.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "order-7", *fake.sent[0].MessageGroupId)
	assert.NotEmpty(t, *fake.sent[0].MessageDeduplicationId)
}

func TestSendFailureDoesNotStopRun(t *testing.T) {
	fake := &fakeSQS{fails: 1}
	p := NewPublisher(fake, "q", 8)
	run(t, p)

	p.Broadcast(realtime.NewEvent(realtime.EventNewOrder, 1, nil), realtime.Audience{})
	p.Broadcast(realtime.NewEvent(realtime.EventNewOrder, 2, nil), realtime.Audience{})

	require.Eventually(t, func() bool { return fake.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2", *fake.sent[0].MessageAttributes["orderId"].StringValue)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	p := NewPublisher(&fakeSQS{}, "q", 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Broadcast(realtime.NewEvent(realtime.EventNewOrder, int64(i), nil), realtime.Audience{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with no consumer")
	}
	assert.Len(t, p.queue, 1)
}
