package submission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"route-invoice-service/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	got []published
	err error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func testSubmission() domain.InvoiceSubmission {
	rate := decimal.RequireFromString("1.00")
	empty := decimal.RequireFromString("10")
	amount := decimal.RequireFromString("50.005")

	return domain.InvoiceSubmission{
		SubmissionID: "sub-1",
		DraftID:      "draft-1",
		Assignments: []domain.Assignment{{
			ID:          "a1",
			ChargeType:  domain.ChargePerMile,
			ChargeValue: &rate,
			EmptyMiles:  &empty,
		}},
		LineItems: []domain.LineItem{{Description: "detention", Amount: &amount}},
		Summary: domain.InvoiceSummary{
			Charges: []domain.AssignmentCharge{{AssignmentID: "a1", Amount: decimal.NewFromInt(110)}},
			Total:   decimal.RequireFromString("185.005"),
		},
		SubmittedAt: time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC),
	}
}

func TestRabbitMQSubmitterPublishesPersistentJSON(t *testing.T) {
	pub := &fakePublisher{}
	s, err := NewRabbitMQSubmitter(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Submit(context.Background(), testSubmission()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.got))
	}
	p := pub.got[0]
	if p.exchange != InvoiceExchange || p.key != InvoiceSubmittedRouteKey {
		t.Fatalf("published to %s/%s", p.exchange, p.key)
	}
	if p.msg.DeliveryMode != amqp.Persistent || p.msg.MessageId != "sub-1" {
		t.Fatalf("unexpected publishing %+v", p.msg)
	}

	var body map[string]any
	if err := json.Unmarshal(p.msg.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["total"] != "185.005" || body["total_display"] != "185.01" {
		t.Fatalf("unexpected totals in %s", p.msg.Body)
	}
	assignments := body["assignments"].([]any)
	a := assignments[0].(map[string]any)
	if a["empty_miles"] != "10" || a["amount"] != "110" {
		t.Fatalf("assignment record = %v", a)
	}
}

func TestRabbitMQSubmitterWrapsPublishError(t *testing.T) {
	broker := errors.New("channel closed")
	s, _ := NewRabbitMQSubmitter(&fakePublisher{err: broker})

	err := s.Submit(context.Background(), testSubmission())
	if !errors.Is(err, broker) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestNewRabbitMQSubmitterRequiresPublisher(t *testing.T) {
	if _, err := NewRabbitMQSubmitter(nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
