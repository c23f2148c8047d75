package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/observability"
)

func receiveEvent(t *testing.T, ch <-chan dto.AssessmentEvent) dto.AssessmentEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return dto.AssessmentEvent{}
}

func TestEventServiceLocalBroadcast(t *testing.T) {
	events := NewEventService(nil, nil, "", testLogger())

	first, cancelFirst := events.Subscribe()
	second, cancelSecond := events.Subscribe()
	defer cancelSecond()

	events.Publish(context.Background(), dto.AssessmentEvent{Type: dto.EventSubmissionCreated, SubmissionID: 7})

	got := receiveEvent(t, first)
	require.Equal(t, dto.EventSubmissionCreated, got.Type)
	require.Equal(t, uint(7), got.SubmissionID)
	require.False(t, got.OccurredAt.IsZero())
	require.Equal(t, uint(7), receiveEvent(t, second).SubmissionID)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	require.False(t, open)

	events.Publish(context.Background(), dto.AssessmentEvent{Type: dto.EventQuizGenerated})
	require.Equal(t, dto.EventQuizGenerated, receiveEvent(t, second).Type)
}

func TestEventServiceRedisFanOutSkipsOwnEcho(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	nodeA := NewEventService(clientA, nil, "codecheck", testLogger())
	nodeB := NewEventService(clientB, nil, "codecheck", testLogger())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	require.Eventually(t, func() bool {
		return server.PubSubNumSub("codecheck:assessment")["codecheck:assessment"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	feedA, cancelA := nodeA.Subscribe()
	defer cancelA()
	feedB, cancelB := nodeB.Subscribe()
	defer cancelB()

	nodeA.Publish(ctx, dto.AssessmentEvent{Type: dto.EventAnalysisCompleted, SubmissionID: 3})

	require.Equal(t, uint(3), receiveEvent(t, feedB).SubmissionID)
	require.Equal(t, uint(3), receiveEvent(t, feedA).SubmissionID)

	select {
	case event := <-feedA:
		t.Fatalf("unexpected echo %+v", event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestEventServiceDropsForSlowSubscriber(t *testing.T) {
	events := NewEventService(nil, nil, "", testLogger())
	feed, cancel := events.Subscribe()
	defer cancel()

	for i := 0; i < eventSendBufferSize+5; i++ {
		events.Publish(context.Background(), dto.AssessmentEvent{Type: dto.EventSubmissionCreated, SubmissionID: uint(i)})
	}
	require.Len(t, feed, eventSendBufferSize)
}

func TestEventServiceDeliversEnvelopeOnceAcrossTransports(t *testing.T) {
	node := NewEventService(nil, nil, "", testLogger()).(*eventService)
	feed, cancel := node.Subscribe()
	defer cancel()

	remote, err := json.Marshal(eventEnvelope{ID: "env-1", Source: "other-node", Event: dto.AssessmentEvent{Type: dto.EventQuizGenerated, SubmissionID: 9}})
	require.NoError(t, err)
	own, err := json.Marshal(eventEnvelope{ID: "env-2", Source: node.nodeID, Event: dto.AssessmentEvent{Type: dto.EventQuizGenerated}})
	require.NoError(t, err)

	// Same envelope arriving from redis and from nats.
	node.handleEnvelope(remote)
	node.handleEnvelope(remote)
	node.handleEnvelope(own)

	require.Equal(t, uint(9), receiveEvent(t, feed).SubmissionID)
	require.Len(t, feed, 0)
}

func TestRecentIDsForgetsOldest(t *testing.T) {
	seen := newRecentIDs(2)

	require.True(t, seen.add("a"))
	require.False(t, seen.add("a"))
	require.True(t, seen.add("b"))
	require.True(t, seen.add("c"))
	require.True(t, seen.add("a"))
	require.False(t, seen.add("c"))
}

func TestEventServiceStampsCorrelationID(t *testing.T) {
	events := NewEventService(nil, nil, "", testLogger())
	feed, cancel := events.Subscribe()
	defer cancel()

	events.Publish(observability.WithCorrelationID(context.Background(), "req-5"), dto.AssessmentEvent{Type: dto.EventAnalysisCompleted})
	require.Equal(t, "req-5", receiveEvent(t, feed).CorrelationID)

	events.Publish(context.Background(), dto.AssessmentEvent{Type: dto.EventAnalysisCompleted, CorrelationID: "cli"})
	require.Equal(t, "cli", receiveEvent(t, feed).CorrelationID)
}
