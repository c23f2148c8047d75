package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/observability"
)

const (
	eventSendBufferSize = 32
	eventPingInterval   = 30 * time.Second
	recentEventIDs      = 512
)

// EventPublisher broadcasts assessment events.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.AssessmentEvent)
}

// EventService fans assessment events out to live feed clients and to other nodes
// through redis pub/sub and NATS.
type EventService interface {
	EventPublisher
	Subscribe() (<-chan dto.AssessmentEvent, func())
	ServeConnection(ctx context.Context, conn *websocket.Conn)
	Start(ctx context.Context)
}

type eventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	hub          *eventHub
	nodeID       string
	seen         *recentIDs
}

// eventHub keeps track of live subscribers.
type eventHub struct {
	mu          sync.RWMutex
	subscribers map[chan dto.AssessmentEvent]struct{}
	log         zerolog.Logger
}

// recentIDs remembers the last envelope ids delivered to this node. Redis and NATS
// may both carry the same envelope.
type recentIDs struct {
	mu    sync.Mutex
	ring  []string
	next  int
	index map[string]struct{}
}

type eventEnvelope struct {
	ID     string              `json:"id"`
	Source string              `json:"source"`
	Event  dto.AssessmentEvent `json:"event"`
}

// NewEventService creates the event fan-out. Either transport may be nil.
func NewEventService(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventService {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":assessment"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".assessment"
	}

	return &eventService{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		logger:       logger.With().Str("component", "event_service").Logger(),
		tracer:       otel.Tracer("github.com/erikwilensky/codecheck/internal/service/events"),
		hub: &eventHub{
			subscribers: make(map[chan dto.AssessmentEvent]struct{}),
			log:         logger.With().Str("component", "event_hub").Logger(),
		},
		nodeID: uuid.NewString(),
		seen:   newRecentIDs(recentEventIDs),
	}
}

func (s *eventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *eventService) Publish(ctx context.Context, event dto.AssessmentEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = observability.CorrelationID(ctx)
	}

	ctx, span := s.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.Int("event.submission_id", int(event.SubmissionID)),
	))
	defer span.End()

	s.hub.broadcast(event)
	observability.EventsPublished().WithLabelValues(event.Type).Inc()

	if err := s.fanOut(ctx, event); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to fan out assessment event")
	}
}

func (s *eventService) Subscribe() (<-chan dto.AssessmentEvent, func()) {
	ch := make(chan dto.AssessmentEvent, eventSendBufferSize)
	s.hub.register(ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() { s.hub.unregister(ch) })
	}
}

// ServeConnection streams every event to conn as JSON until the client goes away
// or ctx ends.
func (s *eventService) ServeConnection(ctx context.Context, conn *websocket.Conn) {
	if ctx == nil {
		ctx = context.Background()
	}

	events, cancel := s.Subscribe()
	defer cancel()

	observability.EventSubscribers().Inc()
	defer observability.EventSubscribers().Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug().Err(err).Msg("event feed client write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *eventService) fanOut(ctx context.Context, event dto.AssessmentEvent) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(eventEnvelope{ID: uuid.NewString(), Source: s.nodeID, Event: event})
	if err != nil {
		return err
	}

	var errs []error
	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *eventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("event redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *eventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain event nats subscription")
		}
	}()
}

func (s *eventService) handleEnvelope(data []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid assessment event")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	if envelope.ID != "" && !s.seen.add(envelope.ID) {
		return
	}
	s.hub.broadcast(envelope.Event)
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{ring: make([]string, size), index: make(map[string]struct{}, size)}
}

// add reports whether id was not seen before.
func (r *recentIDs) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.index, old)
	}
	r.ring[r.next] = id
	r.index[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}

func (h *eventHub) register(ch chan dto.AssessmentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[ch] = struct{}{}
}

func (h *eventHub) unregister(ch chan dto.AssessmentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (h *eventHub) broadcast(event dto.AssessmentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.log.Debug().Str("type", event.Type).Msg("dropping event for slow subscriber")
		}
	}
}

// publishEvent tolerates a nil publisher so pipelines run without a feed.
func publishEvent(ctx context.Context, publisher EventPublisher, event dto.AssessmentEvent) {
	if publisher == nil {
		return
	}
	publisher.Publish(ctx, event)
}
