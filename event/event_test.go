// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/zktender/event"
)

const testEvtType event.EventType = "test.event"

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestEventBusSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	_, otherCh := eb.Subscribe("other.event")
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	for _, ch := range []<-chan event.Event{sub1Ch, sub2Ch} {
		evt := receive(t, ch)
		assert.Equal(t, 999, evt.Data)
		assert.Equal(t, testEvtType, evt.Type)
	}
	assert.Empty(t, otherCh)
}

func TestEventBusWildcard(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, allCh := eb.Subscribe(event.EventTypeAll)
	eb.Publish("a", event.NewEvent("a", 1))
	eb.Publish("b", event.NewEvent("b", 2))
	assert.Equal(t, event.EventType("a"), receive(t, allCh).Type)
	assert.Equal(t, event.EventType("b"), receive(t, allCh).Type)
}

func TestEventBusUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	_, ok := <-subCh
	assert.False(t, ok)
	// Unknown subscriber is a no-op
	eb.Unsubscribe(testEvtType, subId)
}

func TestEventBusFullSubscriberDrops(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	done := make(chan struct{})
	go func() {
		for i := range event.EventQueueSize + 5 {
			eb.Publish(testEvtType, event.NewEvent(testEvtType, i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, subCh, event.EventQueueSize)
	count, err := testutil.GatherAndCount(reg, "zktender_event_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventBusStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	var handled atomic.Int32
	eb.SubscribeFunc(testEvtType, func(event.Event) {
		handled.Add(1)
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "before"))
	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, time.Second, 10*time.Millisecond)

	eb.Stop()
	receive(t, subCh)
	_, ok := <-subCh
	assert.False(t, ok)

	assert.False(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, "after")))
	_, lateCh := eb.Subscribe(testEvtType)
	_, ok = <-lateCh
	assert.False(t, ok)
	// Second Stop is a no-op
	eb.Stop()
}

func TestEventBusPublishAsync(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	require.True(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, "x")))
	assert.Equal(t, "x", receive(t, subCh).Data)
}

func TestSubscribeFuncPanicRecovery(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()

	var received atomic.Int32
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		if received.Add(1) == 1 {
			panic("intentional test panic")
		}
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "panic"))
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "after-panic"))
	require.Eventually(t, func() bool {
		return received.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(
		t,
		1,
		counterValue(t, reg, "zktender_event_handler_panics_total"),
		0,
	)
}

func counterValue(
	t *testing.T,
	reg *prometheus.Registry,
	name string,
) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestEventBusMetricsSharedRegistry(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := prometheus.NewRegistry()
	eb1 := event.NewEventBus(reg, nil)
	defer eb1.Stop()
	eb2 := event.NewEventBus(reg, nil)
	defer eb2.Stop()
	eb1.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	eb2.Publish(testEvtType, event.NewEvent(testEvtType, 2))
	count, err := testutil.GatherAndCount(reg, "zktender_event_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
