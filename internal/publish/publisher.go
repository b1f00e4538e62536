// Package publish delivers entity lifecycle events and refresh notices
// to NATS JetStream for downstream consumers. Subjects follow the
// pattern hyper.account.events.{kind}.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"hyperwatch/internal/account"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/reconcile"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	streamName    = "HYPER_ACCOUNT_EVENTS"
	subjectPrefix = "hyper.account.events"
)

// Event is the outbound wire envelope. Kind drives the subject suffix;
// the payload is the entity record (created events), the identity key
// (removed events), or the snapshot summary (refresh notices).
type Event struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Wallet    string      `json:"wallet,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type removedKey struct {
	Coin         string `json:"coin,omitempty"`
	VaultAddress string `json:"vault_address,omitempty"`
	OrderID      int64  `json:"order_id,omitempty"`
}

type refreshSummary struct {
	RefreshedAt  time.Time `json:"refreshed_at"`
	AccountValue float64   `json:"account_value"`
	Positions    int       `json:"positions"`
	Vaults       int       `json:"vaults"`
	OpenOrders   int       `json:"open_orders"`
}

// FromReconcile converts a reconciler event into the wire envelope.
func FromReconcile(ev reconcile.Event) Event {
	e := Event{
		ID:        uuid.NewString(),
		Kind:      subjectSuffix(ev.Type),
		Timestamp: ev.At,
	}
	switch {
	case ev.Position != nil:
		e.Payload = ev.Position
	case ev.Vault != nil:
		e.Payload = ev.Vault
	case ev.Order != nil:
		e.Payload = ev.Order
	default:
		e.Payload = removedKey{Coin: ev.Coin, VaultAddress: ev.VaultAddress, OrderID: ev.OrderID}
	}
	return e
}

// RefreshNotice builds the event emitted after every successful refresh.
func RefreshNotice(s *account.State) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      "refresh",
		Timestamp: s.RefreshedAt,
		Payload: refreshSummary{
			RefreshedAt:  s.RefreshedAt,
			AccountValue: s.AccountValue,
			Positions:    len(s.Positions),
			Vaults:       len(s.Vaults),
			OpenOrders:   len(s.OpenOrders),
		},
	}
}

func subjectSuffix(t reconcile.EventType) string {
	switch t {
	case reconcile.PositionOpened:
		return "position.opened"
	case reconcile.PositionClosed:
		return "position.closed"
	case reconcile.VaultDeposited:
		return "vault.deposited"
	case reconcile.VaultWithdrawn:
		return "vault.withdrawn"
	case reconcile.OrderPlaced:
		return "order.placed"
	case reconcile.OrderRemoved:
		return "order.removed"
	default:
		return "unknown"
	}
}

// Publisher drains the input channel and publishes each event to
// JetStream. Publish failures are logged and counted, never fatal.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan Event
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan Event, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
		metrics:   metrics,
	}
}

// Run starts the publish loop. Returns when ctx is cancelled or the
// input channel is closed.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, evt); err != nil {
				p.log.Warn().Err(err).Str("kind", evt.Kind).Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, evt.Kind)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates the outbound events stream if missing.
func EnsureStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", streamName).Msg("ensured outbound stream")
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
