// Package eventsink mirrors lifecycle events to an SQS queue for consumers
// outside this service (notifications, analytics). It is a Broadcaster like
// the websocket hub and, like it, never blocks the mutation that produced
// the event.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/MikeMC777/entregas-ecom/internal/realtime"
)

type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// NewSQSClient loads the default AWS credential chain for region.
func NewSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

type Message struct {
	realtime.Event
	CustomerID    string   `json:"customerId,omitempty"`
	SellerIDs     []string `json:"sellerIds,omitempty"`
	DeliveryBoyID string   `json:"deliveryBoyId,omitempty"`
}

type Publisher struct {
	sqs      SQSAPI
	queueURL string
	fifo     bool
	queue    chan Message
}

func NewPublisher(client SQSAPI, queueURL string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		sqs:      client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		queue:    make(chan Message, buffer),
	}
}

// Broadcast queues ev for Run. When the queue is full the event is dropped
// and logged; the websocket path is unaffected.
func (p *Publisher) Broadcast(ev realtime.Event, to realtime.Audience) {
	msg := Message{Event: ev, CustomerID: to.CustomerID, SellerIDs: to.SellerIDs, DeliveryBoyID: to.AgentID}
	select {
	case p.queue <- msg:
	default:
		log.Printf("[eventsink] queue full, dropping event=%s order=%d", ev.Name, ev.OrderID)
	}
}

// Run sends queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	log.Printf("[eventsink] publishing to %s fifo=%t", p.queueURL, p.fifo)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.queue:
			if err := p.send(ctx, msg); err != nil {
				log.Printf("[eventsink] event=%s order=%d err=%v", msg.Name, msg.OrderID, err)
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	orderID := strconv.FormatInt(msg.OrderID, 10)
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event":   {DataType: aws.String("String"), StringValue: aws.String(msg.Name)},
			"orderId": {DataType: aws.String("Number"), StringValue: aws.String(orderID)},
		},
	}
	if p.fifo {
		// One group per order keeps each order's events in commit order.
		input.MessageGroupId = aws.String("order-" + orderID)
		input.MessageDeduplicationId = aws.String(fmt.Sprintf("%s-%s-%d", orderID, msg.Name, msg.At.UnixNano()))
	}
	if _, err := p.sqs.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
