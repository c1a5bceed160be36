package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	_ = ctx
	_ = optFns
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSend(t *testing.T) {
	fake := &fakeSQS{}
	client, err := NewSQSClient(fake, " https://sqs.us-east-1.amazonaws.com/123/janitor-runs ")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	msg := Message{RunID: "run-1", Deleted: 2, Version: MessageVersion}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.QueueUrl) != "https://sqs.us-east-1.amazonaws.com/123/janitor-runs" {
		t.Fatalf("queue url = %q", aws.ToString(fake.input.QueueUrl))
	}
	got, err := DecodeMessage([]byte(aws.ToString(fake.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.RunID != "run-1" || got.Deleted != 2 {
		t.Fatalf("unexpected body: %+v", got)
	}
	if aws.ToString(fake.input.MessageAttributes["runId"].StringValue) != "run-1" {
		t.Fatalf("missing runId attribute")
	}
	if fake.input.MessageGroupId != nil {
		t.Fatalf("standard queue should not set a group id")
	}
}

func TestSQSClientFIFO(t *testing.T) {
	fake := &fakeSQS{}
	client, err := NewSQSClient(fake, "https://sqs.us-east-1.amazonaws.com/123/janitor-runs.fifo")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Send(context.Background(), Message{RunID: "run-2"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.MessageDeduplicationId) != "run-2" || aws.ToString(fake.input.MessageGroupId) == "" {
		t.Fatalf("fifo attributes missing: %+v", fake.input)
	}
}

func TestSQSClientErrors(t *testing.T) {
	if _, err := NewSQSClient(&fakeSQS{}, ""); err == nil {
		t.Fatalf("expected missing url error")
	}
	client, _ := NewSQSClient(&fakeSQS{err: errors.New("throttled")}, "https://example.com/q")
	if err := client.Send(context.Background(), Message{RunID: "run-3"}); err == nil {
		t.Fatalf("expected send error")
	}
}
