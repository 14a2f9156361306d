package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "RELAY_CHANGES",
		SubjectPrefix:   "relay.changes",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 10 * time.Minute,
	}
}

// Subject is where changes of one table of one room are published.
func (c JetStreamConfig) Subject(roomID uuid.UUID, table Table) string {
	return fmt.Sprintf("%s.%s.%s", c.SubjectPrefix, roomID, table)
}

// filterSubjects maps a Filter onto stream subjects.
func (c JetStreamConfig) filterSubjects(f Filter) []string {
	room := "*"
	if f.RoomID != uuid.Nil {
		room = f.RoomID.String()
	}
	if len(f.Tables) == 0 {
		return []string{fmt.Sprintf("%s.%s.*", c.SubjectPrefix, room)}
	}
	subjects := make([]string, 0, len(f.Tables))
	for _, t := range f.Tables {
		subjects = append(subjects, fmt.Sprintf("%s.%s.%s", c.SubjectPrefix, room, t))
	}
	return subjects
}

func connectJetStream(cfg JetStreamConfig) (*nats.Conn, jetstream.JetStream, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, js, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Room change stream",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", cfg.StreamName).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", cfg.StreamName).Msg("updated JetStream stream")
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

// NATSRelay publishes changes to JetStream so every server instance can
// fan them out. The change id is the message id, so a change republished
// inside the duplicate window is stored once.
type NATSRelay struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg JetStreamConfig
}

func NewNATSRelay(cfg JetStreamConfig) (*NATSRelay, error) {
	nc, js, err := connectJetStream(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(context.Background(), js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return &NATSRelay{nc: nc, js: js, cfg: cfg}, nil
}

func (r *NATSRelay) Publish(ctx context.Context, c Change) error {
	subject := r.cfg.Subject(c.RoomID, c.Table)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	ack, err := r.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Change-Table": []string{string(c.Table)},
			"Room-ID":      []string{c.RoomID.String()},
			"Change-ID":    []string{c.ID.String()},
		},
	},
		jetstream.WithMsgID(c.ID.String()),
		jetstream.WithExpectStream(r.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("change_id", c.ID.String()).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published change to JetStream")
	return nil
}

func (r *NATSRelay) Close() error {
	if r.nc != nil {
		r.nc.Close()
	}
	return nil
}

// NATSFeed subscribes to the change stream with one ordered consumer per
// subscription. Ordered consumers redeliver from the last stream sequence
// after a reconnect, which keeps per-subject order.
type NATSFeed struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg JetStreamConfig
}

func NewNATSFeed(cfg JetStreamConfig) (*NATSFeed, error) {
	nc, js, err := connectJetStream(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(context.Background(), js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return &NATSFeed{nc: nc, js: js, cfg: cfg}, nil
}

func (f *NATSFeed) Subscribe(ctx context.Context, filter Filter) (<-chan Change, error) {
	consumer, err := f.js.OrderedConsumer(ctx, f.cfg.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: f.cfg.filterSubjects(filter),
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	// Buffered so the consume callback rarely waits on the reader.
	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer consumeCtx.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-messageCh:
				var c Change
				if err := json.Unmarshal(msg.Data(), &c); err != nil {
					log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode change")
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Info().
		Str("stream", f.cfg.StreamName).
		Strs("subjects", f.cfg.filterSubjects(filter)).
		Msg("subscribed to change stream")
	return out, nil
}

func (f *NATSFeed) Close() error {
	if f.nc != nil {
		f.nc.Close()
	}
	return nil
}
