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
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sbahar619/nodeselector-notify/internal/metrics"
)

// Task is a single in-flight delivery.
type Task struct {
	done chan struct{}
	err  error
}

// Done is closed once the delivery has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the delivery has finished and returns its outcome.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Dispatcher runs deliveries asynchronously on top of a Sink, allowing at
// most maxInFlight of them at once. Failures are logged and counted; nothing
// is retried.
type Dispatcher struct {
	sink Sink
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewDispatcher returns a Dispatcher. A maxInFlight below one is treated as one,
// which makes deliveries strictly sequential.
func NewDispatcher(sink Sink, maxInFlight int64) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Dispatcher{
		sink: sink,
		sem:  semaphore.NewWeighted(maxInFlight),
	}
}

// Dispatch starts delivering text. It blocks while the in-flight limit is
// reached and fails only if ctx is cancelled while waiting for a slot.
func (d *Dispatcher) Dispatch(ctx context.Context, kind, text string) (*Task, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	t := &Task{done: make(chan struct{})}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer close(t.done)

		start := time.Now()
		t.err = d.sink.Deliver(ctx, text)
		status := metrics.StatusSuccess
		if t.err != nil {
			status = metrics.StatusFailure
			log.FromContext(ctx).Error(t.err, "failed to deliver notification", "kind", kind)
		}
		metrics.NotificationsTotal.WithLabelValues(kind, status).Inc()
		metrics.NotificationDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
	}()
	return t, nil
}

// Wait blocks until every dispatched delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
