/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbahar619/nodeselector-notify/internal/metrics"
)

func TestDispatcher_DeliversAndReportsOutcome(t *testing.T) {
	var got []string
	var mu sync.Mutex
	d := NewDispatcher(SinkFunc(func(_ context.Context, text string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, text)
		if text == "bad" {
			return errors.New("boom")
		}
		return nil
	}), 1)

	ok, err := d.Dispatch(context.Background(), KindSingle, "good")
	require.NoError(t, err)
	bad, err := d.Dispatch(context.Background(), KindSingle, "bad")
	require.NoError(t, err)

	assert.NoError(t, ok.Wait())
	assert.EqualError(t, bad.Wait(), "boom")
	d.Wait()
	assert.Equal(t, []string{"good", "bad"}, got)
}

func TestDispatcher_CountsFailures(t *testing.T) {
	failures := metrics.NotificationsTotal.WithLabelValues(KindBatch, metrics.StatusFailure)
	before := testutil.ToFloat64(failures)

	d := NewDispatcher(SinkFunc(func(context.Context, string) error { return errors.New("down") }), 1)
	task, err := d.Dispatch(context.Background(), KindBatch, "x")
	require.NoError(t, err)
	require.Error(t, task.Wait())

	assert.Equal(t, before+1, testutil.ToFloat64(failures))
}

func TestDispatcher_CapsInFlight(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	d := NewDispatcher(SinkFunc(func(context.Context, string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return nil
	}), limit)

	for i := 0; i < limit; i++ {
		_, err := d.Dispatch(context.Background(), KindSingle, "x")
		require.NoError(t, err)
	}

	// A third dispatch must block until a slot frees up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, KindSingle, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	d.Wait()
	assert.Equal(t, int32(limit), peak.Load())
}

func TestDispatcher_ZeroLimitIsSequential(t *testing.T) {
	d := NewDispatcher(SinkFunc(func(context.Context, string) error { return nil }), 0)
	task, err := d.Dispatch(context.Background(), KindSingle, "x")
	require.NoError(t, err)
	<-task.Done()
	assert.NoError(t, task.Wait())
}
