package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcknowledger struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func testRoutes(delayed bool) routes {
	r := routes{
		immediate: route{DefaultExchangeName, jobsRoutingKey},
		retry:     route{DefaultExchangeName, retryRoutingKey},
	}
	if delayed {
		r.delayed = &route{DefaultDelayedExchangeName, jobsRoutingKey}
	}
	return r
}

func TestBuildPublishing(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		job            func() *Job
		delayed        bool
		wantRoute      route
		wantExpiration string
		wantDelay      bool
	}{
		{
			name:      "immediate",
			job:       func() *Job { return NewVerificationEmailJob(1, "a@b.c", "t") },
			wantRoute: route{DefaultExchangeName, jobsRoutingKey},
		},
		{
			name: "deferred through delayed exchange",
			job: func() *Job {
				j := NewVerificationEmailJob(1, "a@b.c", "t")
				j.NotBefore = timePtr(now.Add(10 * time.Second))
				return j
			},
			delayed:   true,
			wantRoute: route{DefaultDelayedExchangeName, jobsRoutingKey},
			wantDelay: true,
		},
		{
			name: "deferred through retry queue",
			job: func() *Job {
				j := NewVerificationEmailJob(1, "a@b.c", "t")
				j.NotBefore = timePtr(now.Add(10 * time.Second))
				return j
			},
			wantRoute:      route{DefaultExchangeName, retryRoutingKey},
			wantExpiration: "10000",
		},
		{
			name: "not before already passed",
			job: func() *Job {
				j := NewVerificationEmailJob(1, "a@b.c", "t")
				j.NotBefore = timePtr(now.Add(-time.Second))
				return j
			},
			delayed:   true,
			wantRoute: route{DefaultExchangeName, jobsRoutingKey},
		},
		{
			name: "expiring job carries ttl",
			job: func() *Job {
				j := NewVerificationEmailJob(1, "a@b.c", "t")
				j.NotAfter = timePtr(now.Add(time.Minute))
				return j
			},
			wantRoute:      route{DefaultExchangeName, jobsRoutingKey},
			wantExpiration: "60000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := tt.job()
			publishing, rt, err := buildPublishing(job, now, testRoutes(tt.delayed))
			if err != nil {
				t.Fatalf("buildPublishing() error = %v", err)
			}
			if rt != tt.wantRoute {
				t.Errorf("route = %+v, want %+v", rt, tt.wantRoute)
			}
			if publishing.Expiration != tt.wantExpiration {
				t.Errorf("Expiration = %q, want %q", publishing.Expiration, tt.wantExpiration)
			}
			_, hasDelay := publishing.Headers["x-delay"]
			if hasDelay != tt.wantDelay {
				t.Errorf("x-delay header present = %v, want %v", hasDelay, tt.wantDelay)
			}
			if publishing.DeliveryMode != amqp.Persistent {
				t.Error("Expected persistent delivery")
			}
			if publishing.MessageId != job.ID.String() {
				t.Errorf("MessageId = %q, want %q", publishing.MessageId, job.ID)
			}

			var decoded Job
			if err := json.Unmarshal(publishing.Body, &decoded); err != nil {
				t.Fatalf("body is not a job: %v", err)
			}
			if decoded.Email != job.Email || decoded.Token != job.Token {
				t.Errorf("decoded payload mismatch: %+v", decoded)
			}
		})
	}
}

func TestDecodeDelivery(t *testing.T) {
	t.Parallel()

	encode := func(j *Job) []byte {
		b, err := json.Marshal(j)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	future := NewVerificationEmailJob(1, "a@b.c", "t")
	future.NotBefore = timePtr(time.Now().Add(time.Hour))
	expired := NewVerificationEmailJob(1, "a@b.c", "t")
	expired.NotAfter = timePtr(time.Now().Add(-time.Hour))

	tests := []struct {
		name      string
		body      []byte
		wantErr   bool
		wantEarly bool
	}{
		{name: "valid", body: encode(NewVerificationEmailJob(1, "a@b.c", "t"))},
		{name: "garbage", body: []byte("{not json"), wantErr: true},
		{name: "missing token", body: encode(NewVerificationEmailJob(1, "a@b.c", "")), wantErr: true},
		{name: "expired", body: encode(expired), wantErr: true},
		{name: "not ready", body: encode(future), wantEarly: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ack := &fakeAcknowledger{}
			msg, early, err := decodeDelivery(amqp.Delivery{Acknowledger: ack, DeliveryTag: 42, Body: tt.body})
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeDelivery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (early != nil) != tt.wantEarly {
				t.Fatalf("early = %v, wantEarly %v", early, tt.wantEarly)
			}
			if tt.wantEarly {
				if msg != nil {
					t.Error("Expected no message for an early job")
				}
				if early.ID != future.ID {
					t.Errorf("early job ID = %s, want %s", early.ID, future.ID)
				}
				return
			}
			if err != nil {
				return
			}

			if err := msg.Ack(); err != nil {
				t.Fatalf("Ack() error = %v", err)
			}
			if len(ack.acked) != 1 || ack.acked[0] != 42 {
				t.Errorf("Expected delivery tag 42 to be acked, got %v", ack.acked)
			}
			if msg.GetJob().Email != "a@b.c" {
				t.Errorf("Unexpected job %+v", msg.GetJob())
			}
		})
	}
}

type fakePublisher struct {
	err        error
	exchange   string
	key        string
	publishing amqp.Publishing
	calls      int
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls++
	f.exchange, f.key, f.publishing = exchange, key, msg
	return f.err
}

func TestDeferDelivery(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	early := func() *Job {
		j := NewVerificationEmailJob(1, "a@b.c", "t")
		j.NotBefore = timePtr(now.Add(30 * time.Second))
		return j
	}

	t.Run("republished on the retry queue with the remaining wait", func(t *testing.T) {
		t.Parallel()

		pub := &fakePublisher{}
		ack := &fakeAcknowledger{}
		err := deferDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, DeliveryTag: 7}, early(), now, testRoutes(false))
		if err != nil {
			t.Fatalf("deferDelivery() error = %v", err)
		}
		if pub.exchange != DefaultExchangeName || pub.key != retryRoutingKey {
			t.Errorf("published to %s/%s, want %s/%s", pub.exchange, pub.key, DefaultExchangeName, retryRoutingKey)
		}
		if pub.publishing.Expiration != "30000" {
			t.Errorf("Expiration = %q, want %q", pub.publishing.Expiration, "30000")
		}
		if len(ack.acked) != 1 || ack.acked[0] != 7 {
			t.Errorf("Expected original delivery to be acked, got %v", ack.acked)
		}
		if len(ack.nacked) != 0 {
			t.Errorf("Expected no nack, got %v", ack.nacked)
		}
	})

	t.Run("republished through the delayed exchange", func(t *testing.T) {
		t.Parallel()

		pub := &fakePublisher{}
		ack := &fakeAcknowledger{}
		if err := deferDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, DeliveryTag: 8}, early(), now, testRoutes(true)); err != nil {
			t.Fatalf("deferDelivery() error = %v", err)
		}
		if pub.exchange != DefaultDelayedExchangeName {
			t.Errorf("published to %s, want %s", pub.exchange, DefaultDelayedExchangeName)
		}
		if pub.publishing.Headers["x-delay"] != int64(30000) {
			t.Errorf("x-delay = %v, want 30000", pub.publishing.Headers["x-delay"])
		}
		if len(ack.acked) != 1 {
			t.Errorf("Expected original delivery to be acked, got %v", ack.acked)
		}
	})

	t.Run("publish failure requeues the original", func(t *testing.T) {
		t.Parallel()

		pub := &fakePublisher{err: errors.New("channel closed")}
		ack := &fakeAcknowledger{}
		if err := deferDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, DeliveryTag: 9}, early(), now, testRoutes(false)); err == nil {
			t.Fatal("Expected error when the republish fails")
		}
		if len(ack.acked) != 0 {
			t.Errorf("Expected no ack, got %v", ack.acked)
		}
		if len(ack.nacked) != 1 || !ack.requeue[0] {
			t.Errorf("Expected a requeueing nack, got tags=%v requeue=%v", ack.nacked, ack.requeue)
		}
	})
}

func TestMessage_Nack(t *testing.T) {
	t.Parallel()

	ack := &fakeAcknowledger{}
	msg := &Message{Job: &Job{}, DeliveryTag: 9, Acknowledger: ack}
	if err := msg.Nack(false); err != nil {
		t.Fatalf("Nack() error = %v", err)
	}
	if len(ack.nacked) != 1 || ack.nacked[0] != 9 || ack.requeue[0] {
		t.Errorf("Unexpected nack record: tags=%v requeue=%v", ack.nacked, ack.requeue)
	}
}
