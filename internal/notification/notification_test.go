package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nanolink/nanolink/internal/logging"
)

type recordingChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
}

func (c *recordingChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	if !durable {
		return errors.New("expected durable exchange")
	}
	return nil
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func TestAMQPNotifierPublishesByKind(t *testing.T) {
	ch := &recordingChannel{}
	n, err := NewAMQPNotifier(ch, "nanolink.events")
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "nanolink.events:topic" {
		t.Fatalf("unexpected declarations %v", ch.declared)
	}

	err = n.Send(context.Background(), Event{Kind: KindTransactionCompleted, UserID: "u1", Subject: "tx-1"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ch.keys) != 1 || ch.keys[0] != KindTransactionCompleted {
		t.Fatalf("unexpected routing keys %v", ch.keys)
	}
	var decoded Event
	if err := json.Unmarshal(ch.published[0].Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Subject != "tx-1" || decoded.OccurredAt.IsZero() {
		t.Fatalf("unexpected body %+v", decoded)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	failing := &AMQPNotifier{channel: &recordingChannel{publishErr: errors.New("broker down")}, exchange: "x"}
	f := Fanout{NewLoggerNotifier(logging.Discard()), failing}
	if err := f.Send(context.Background(), Event{Kind: KindKYCUpdated}); err == nil {
		t.Fatal("expected publish error to surface")
	}
}
