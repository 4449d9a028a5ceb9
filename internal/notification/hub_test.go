package notification

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

func TestHubFiltersByTableAndOwner(t *testing.T) {
	hub := NewHub(logging.Discard())
	mine := hub.Subscribe(Filter{Table: TableFeedback, OwnerID: "u1"})
	district := hub.Subscribe(Filter{Table: TableMessages, District: "Hyderabad"})
	defer mine.Close()
	defer district.Close()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, Event{Table: TableFeedback, Type: TypeInsert, RecordID: "f1", OwnerID: "u2"}))
	require.NoError(t, hub.Publish(ctx, Event{Table: TableFeedback, Type: TypeInsert, RecordID: "f2", OwnerID: "u1"}))
	require.NoError(t, hub.Publish(ctx, Event{Table: TableMessages, Type: TypeInsert, RecordID: "m1", District: "Warangal"}))
	require.NoError(t, hub.Publish(ctx, Event{Table: TableMessages, Type: TypeInsert, RecordID: "m2", District: "Hyderabad"}))

	assert.Equal(t, "f2", (<-mine.C()).RecordID)
	assert.Equal(t, "m2", (<-district.C()).RecordID)
	assert.Len(t, mine.C(), 0)
	assert.Len(t, district.C(), 0)
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	hub := NewHub(logging.Discard())
	s := hub.Subscribe(Filter{})
	assert.Equal(t, 1, hub.Len())
	s.Close()
	s.Close()
	assert.Zero(t, hub.Len())
	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(logging.Discard())
	s := hub.Subscribe(Filter{})
	defer s.Close()
	for i := 0; i < defaultBuffer+5; i++ {
		require.NoError(t, hub.Publish(context.Background(), Event{Table: TableFeedback}))
	}
	assert.Len(t, s.C(), defaultBuffer)
}

func TestRedisBridgeRelaysIntoHub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hub := NewHub(logging.Discard())
	sub := hub.Subscribe(Filter{Table: TableMessages})
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bridge := NewRedisBridge(client, hub, logging.Discard())
	require.NoError(t, bridge.Start(ctx))

	pub := NewLoggedPublisher(bridge, logging.Discard())
	require.NoError(t, pub.Publish(ctx, Event{Table: TableMessages, Type: TypeInsert, RecordID: "m9", District: "Warangal"}))

	select {
	case e := <-sub.C():
		assert.Equal(t, "m9", e.RecordID)
		assert.Equal(t, "Warangal", e.District)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
}
