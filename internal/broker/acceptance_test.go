package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/messages"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type brokerFactory func(t *testing.T) Broker

type acceptanceTest struct {
	name string
	test func(t *testing.T, createBroker brokerFactory)
}

func runAcceptanceTests(t *testing.T, name string, factory brokerFactory) {
	tests := []acceptanceTest{
		{"creates unique topics", testUniqueTopics},
		{"reuses existing topics", testReuseTopics},
		{"publishes events to all subscribers", testPublishToAllSubscribers},
		{"handles subscription lifecycle", testSubscriptionLifecycle},
		{"handles context cancellation", testContextCancellation},
		{"handles concurrent operations", testConcurrentOperations},
		{"validates hook requirement", testHookValidation},
		{"handles slow subscribers", testSlowSubscribers},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", name, tt.name), func(t *testing.T) {
			tt.test(t, factory)
		})
	}
}

func TestBrokerImplementations(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		runAcceptanceTests(t, "Local", func(t *testing.T) Broker {
			return Local()
		})
	})

	t.Run("NATS", func(t *testing.T) {
		probe, err := nats.Connect(nats.DefaultURL)
		if err != nil {
			t.Skipf("nats server not reachable at %s: %v", nats.DefaultURL, err)
		}
		probe.Close()

		runAcceptanceTests(t, "NATS", func(t *testing.T) Broker {
			nc, err := nats.Connect(nats.DefaultURL)
			require.NoError(t, err)
			t.Cleanup(func() { nc.Close() })
			return NATS(nc, "")
		})
	})
}

func uniqueTopic(_ *testing.T) string {
	return "bookstart.test." + uuid.NewString()
}

func testUniqueTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic1 := broker.Topic(context.Background(), "test1")
	topic2 := broker.Topic(context.Background(), "test2")
	assert.NotEqual(t, topic1, topic2)
}

func testReuseTopics(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic1 := broker.Topic(context.Background(), "test")
	topic2 := broker.Topic(context.Background(), "test")
	assert.Equal(t, topic1, topic2)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for events to be processed")
	}
}

func testPublishToAllSubscribers(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))

	var wg sync.WaitGroup
	recorder1 := newRecordingHook()
	recorder2 := newRecordingHook()
	wg.Add(4) // 2 recorders * 2 events
	recorder1.wg = &wg
	recorder2.wg = &wg

	ctx := context.Background()
	sub1, err := topic.Subscribe(ctx, recorder1)
	require.NoError(t, err)
	sub2, err := topic.Subscribe(ctx, recorder2)
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	runID := uuid.New()
	turnID := uuid.New()
	timestamp := strfmt.DateTime(time.Now())

	msg := messages.New().AssistantMessage("Chapter one opens on a quiet harbour.")
	require.NoError(t, topic.Publish(ctx, events.Response{
		RunID:     runID,
		TurnID:    turnID,
		Response:  msg.Payload,
		Sender:    "writer",
		Timestamp: timestamp,
		Meta:      gjson.Parse("{}"),
	}))
	require.NoError(t, topic.Publish(ctx, events.Progress{
		Book:      "harbour-lights",
		Stage:     events.StageDraft,
		Chapter:   1,
		Timestamp: timestamp,
	}))

	waitOrFail(t, &wg, 2*time.Second)

	for _, rec := range []*recordingHook{recorder1, recorder2} {
		rec.mu.Lock()
		require.Len(t, rec.assistantMessages, 1)
		assert.Equal(t, "Chapter one opens on a quiet harbour.", rec.assistantMessages[0].Payload.Content)
		require.Len(t, rec.progress, 1)
		assert.Equal(t, events.StageDraft, rec.progress[0].Stage)
		assert.Equal(t, 1, rec.progress[0].Chapter)
		rec.mu.Unlock()
	}
}

func testSubscriptionLifecycle(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))

	ctx := context.Background()
	recorder := newRecordingHook()
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())

	sub.Unsubscribe()
	time.Sleep(100 * time.Millisecond)

	msg := messages.New().AssistantMessage("too late")
	require.NoError(t, topic.Publish(ctx, events.Response{
		RunID:    uuid.New(),
		TurnID:   uuid.New(),
		Response: msg.Payload,
	}))
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	assert.Empty(t, recorder.assistantMessages)
	recorder.mu.Unlock()
}

func testContextCancellation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))

	ctx, cancel := context.WithCancel(context.Background())
	recorder := newRecordingHook()
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	cancel()
	time.Sleep(100 * time.Millisecond)

	msg := messages.New().AssistantMessage("too late")
	require.NoError(t, topic.Publish(context.Background(), events.Response{
		RunID:    uuid.New(),
		TurnID:   uuid.New(),
		Response: msg.Payload,
	}))
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	assert.Empty(t, recorder.assistantMessages)
	recorder.mu.Unlock()
}

func testConcurrentOperations(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))
	ctx := context.Background()

	const (
		numSubscribers = 10
		numEvents      = 100
	)
	recorders := make([]*recordingHook, numSubscribers)
	subs := make([]Subscription, numSubscribers)
	var processWg sync.WaitGroup
	processWg.Add(numSubscribers * numEvents)

	for i := 0; i < numSubscribers; i++ {
		recorders[i] = newRecordingHook()
		recorders[i].wg = &processWg
		sub, err := topic.Subscribe(ctx, recorders[i])
		require.NoError(t, err)
		subs[i] = sub
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	var publishWg sync.WaitGroup
	publishWg.Add(numEvents)
	for i := 0; i < numEvents; i++ {
		go func(i int) {
			defer publishWg.Done()
			msg := messages.New().AssistantMessage(fmt.Sprintf("paragraph-%d", i))
			assert.NoError(t, topic.Publish(ctx, events.Response{
				RunID:    uuid.New(),
				TurnID:   uuid.New(),
				Response: msg.Payload,
			}))
		}(i)
	}

	publishWg.Wait()
	waitOrFail(t, &processWg, 5*time.Second)

	for _, recorder := range recorders {
		recorder.mu.Lock()
		assert.Len(t, recorder.assistantMessages, numEvents)
		recorder.mu.Unlock()
	}
}

func testHookValidation(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))

	_, err := topic.Subscribe(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook is required")
}

type slowHook struct {
	*recordingHook
	delay time.Duration
}

func (h *slowHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	time.Sleep(h.delay)
	h.recordingHook.OnAssistantMessage(ctx, msg)
}

func testSlowSubscribers(t *testing.T, createBroker brokerFactory) {
	broker := createBroker(t)
	topic := broker.Topic(context.Background(), uniqueTopic(t))
	ctx := context.Background()

	recorder := &slowHook{
		recordingHook: newRecordingHook(),
		delay:         200 * time.Millisecond,
	}
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	const numEvents = 10
	for i := 0; i < numEvents; i++ {
		msg := messages.New().AssistantMessage(fmt.Sprintf("paragraph-%d", i))
		require.NoError(t, topic.Publish(ctx, events.Response{
			RunID:    uuid.New(),
			TurnID:   uuid.New(),
			Response: msg.Payload,
		}))
	}

	time.Sleep(500 * time.Millisecond)

	recorder.mu.Lock()
	assert.Less(t, len(recorder.assistantMessages), numEvents)
	recorder.mu.Unlock()
}

func TestLocalDropsStalledSubscriber(t *testing.T) {
	top := Local().WithSlowSubscriberTimeout(10*time.Millisecond).Topic(context.Background(), "stalled")
	blocked := make(chan struct{})
	defer close(blocked)

	hook := &blockingHook{recordingHook: newRecordingHook(), release: blocked}
	sub, err := top.Subscribe(context.Background(), hook)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// first event parks the forwarder; 50 more fill the buffer; the next one times out
	for i := 0; i < 52; i++ {
		require.NoError(t, top.Publish(context.Background(), events.Progress{Stage: events.StageDraft, Chapter: i}))
	}

	lt := top.(*topic)
	assert.Equal(t, uintptr(0), lt.subscriptions.Len())
}

type blockingHook struct {
	*recordingHook
	release <-chan struct{}
}

func (h *blockingHook) OnProgress(ctx context.Context, p events.Progress) {
	<-h.release
	h.recordingHook.OnProgress(ctx, p)
}

func TestPublishingHook(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, "bookstart.harbour-lights")

	var wg sync.WaitGroup
	recorder := newRecordingHook()
	wg.Add(3)
	recorder.wg = &wg
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	hook := PublishingHook(topic, "harbour-lights")
	hook.OnProgress(ctx, events.Progress{Stage: events.StageOutline})
	hook.OnAssistantMessage(ctx, messages.New().WithSender("outliner").AssistantMessage("1. Arrival"))
	hook.OnError(ctx, errors.New("provider unavailable"))

	waitOrFail(t, &wg, 2*time.Second)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.progress, 1)
	assert.Equal(t, "harbour-lights", recorder.progress[0].Book)
	assert.False(t, time.Time(recorder.progress[0].Timestamp).IsZero())
	require.Len(t, recorder.assistantMessages, 1)
	assert.Equal(t, "outliner", recorder.assistantMessages[0].Sender)
	require.Len(t, recorder.errors, 1)
	assert.ErrorContains(t, recorder.errors[0], "provider unavailable")
}

type recordingHook struct {
	mu                sync.Mutex
	wg                *sync.WaitGroup
	userPrompts       []messages.Message[messages.UserMessage]
	chunks            []messages.Message[messages.AssistantMessage]
	assistantMessages []messages.Message[messages.AssistantMessage]
	progress          []events.Progress
	errors            []error
}

func newRecordingHook() *recordingHook {
	return &recordingHook{}
}

func (r *recordingHook) done() {
	if r.wg != nil {
		r.wg.Done()
	}
}

func (r *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	r.mu.Lock()
	r.userPrompts = append(r.userPrompts, msg)
	r.mu.Unlock()
	r.done()
}

func (r *recordingHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	r.chunks = append(r.chunks, msg)
	r.mu.Unlock()
	r.done()
}

func (r *recordingHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	r.assistantMessages = append(r.assistantMessages, msg)
	r.mu.Unlock()
	r.done()
}

func (r *recordingHook) OnProgress(_ context.Context, p events.Progress) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
	r.done()
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()
	r.done()
}
