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

package controller

import (
	"context"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/sbahar619/nodeselector-notify/internal/metrics"
	"github.com/sbahar619/nodeselector-notify/internal/notifier"
	"github.com/sbahar619/nodeselector-notify/internal/policy"
	"github.com/sbahar619/nodeselector-notify/internal/watcher"
)

// RBAC: read-only access to Deployments cluster-wide.
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch

// Notifier starts the asynchronous delivery of a message.
// *notifier.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, kind, text string) (*notifier.Task, error)
	Wait()
}

// DeploymentReconciler consumes Deployment watch events and reports the ones
// whose pod template has no node selector. Violations seen while priming are
// batched into one digest; violations seen while streaming are sent at once.
//
// A reconciler processes one event at a time and must not be shared between
// concurrently running loops.
type DeploymentReconciler struct {
	Notifier          Notifier
	IgnoredNamespaces sets.Set[string]
	Env               string

	phase Phase
	batch []policy.WorkloadRef
}

// Phase returns the current watch phase.
func (r *DeploymentReconciler) Phase() Phase { return r.phase }

// Run consumes events from src until the stream is closed or ctx is cancelled,
// both of which end the loop cleanly. Any other source error is returned.
// Deliveries still in flight are awaited before returning.
func (r *DeploymentReconciler) Run(ctx context.Context, src watcher.Source) error {
	l := log.FromContext(ctx)
	defer r.Notifier.Wait()

	r.phase = Priming
	r.batch = nil

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, watcher.ErrClosed) || ctx.Err() != nil {
				l.Info("Deployment watch stopped")
				return nil
			}
			return fmt.Errorf("read deployment event: %w", err)
		}
		r.Handle(ctx, ev)
	}
}

// Handle applies a single event to the reconciler state.
func (r *DeploymentReconciler) Handle(ctx context.Context, ev watcher.Event) {
	l := log.FromContext(ctx)
	metrics.WatchEventsTotal.WithLabelValues(ev.Type.String()).Inc()

	switch ev.Type {
	case watcher.PrimingStarted:
		if r.phase == Streaming {
			l.Info("Watcher resyncing, collecting deployments again")
		} else {
			l.Info("Watcher initializing, collecting deployments")
		}
		r.phase = Priming
		r.batch = nil

	case watcher.PrimingItem:
		r.warnOutOfPhase(ctx, ev, Priming)
		if ref, violates := r.classify(ctx, ev.Deployment); violates {
			metrics.ViolationsTotal.WithLabelValues(Priming.String()).Inc()
			r.batch = append(r.batch, ref)
		}

	case watcher.PrimingComplete:
		r.warnOutOfPhase(ctx, ev, Priming)
		r.phase = Streaming
		r.flushBatch(ctx)

	case watcher.Upserted:
		r.warnOutOfPhase(ctx, ev, Streaming)
		ref, violates := r.classify(ctx, ev.Deployment)
		if !violates {
			return
		}
		metrics.ViolationsTotal.WithLabelValues(Streaming.String()).Inc()
		r.notify(ctx, notifier.KindSingle, notifier.SingleViolationMessage(r.env(), ref.Name))

	case watcher.Removed:
		ref := policy.RefOf(ev.Deployment)
		l.Info("Deployment deleted", "namespace", ref.Namespace, "name", ref.Name)

	default:
		l.Info("Ignoring unknown watch event", "type", ev.Type)
	}
}

// classify returns the reporting identity of d and whether it is an
// in-scope violation.
func (r *DeploymentReconciler) classify(ctx context.Context, d *appsv1.Deployment) (policy.WorkloadRef, bool) {
	l := log.FromContext(ctx)
	ref := policy.RefOf(d)

	if policy.IsExcluded(ref.Namespace, r.IgnoredNamespaces) {
		metrics.ExcludedTotal.Inc()
		l.V(1).Info("Skipping deployment in ignored namespace", "namespace", ref.Namespace, "name", ref.Name)
		return ref, false
	}
	if policy.IsCompliant(d) {
		l.V(1).Info("Deployment has nodeSelector set", "namespace", ref.Namespace, "name", ref.Name)
		return ref, false
	}
	l.Info("Deployment has no nodeSelector", "namespace", ref.Namespace, "name", ref.Name)
	return ref, true
}

// flushBatch sends the priming digest, if any, and always empties the batch.
func (r *DeploymentReconciler) flushBatch(ctx context.Context) {
	l := log.FromContext(ctx)
	batch := r.batch
	r.batch = nil

	metrics.PrimingBatchSize.Set(float64(len(batch)))
	l.Info("Watcher initialization complete", "violations", len(batch))
	if len(batch) == 0 {
		return
	}
	r.notify(ctx, notifier.KindBatch, notifier.BatchViolationMessage(r.env(), batch))
}

// notify hands the message to the notifier. Delivery failures are logged by
// the notifier and never stop the loop.
func (r *DeploymentReconciler) notify(ctx context.Context, kind, text string) {
	if _, err := r.Notifier.Dispatch(ctx, kind, text); err != nil {
		log.FromContext(ctx).Error(err, "failed to dispatch notification", "kind", kind)
	}
}

func (r *DeploymentReconciler) warnOutOfPhase(ctx context.Context, ev watcher.Event, want Phase) {
	if r.phase != want {
		log.FromContext(ctx).Info("Received watch event outside its phase",
			"type", ev.Type.String(), "phase", r.phase.String())
	}
}

func (r *DeploymentReconciler) env() string {
	if r.Env == "" {
		return "unknown"
	}
	return r.Env
}

// SetupWithManager registers the loop as a manager runnable. A source error
// stops the manager.
func (r *DeploymentReconciler) SetupWithManager(mgr ctrl.Manager, src watcher.Source) error {
	return mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
		ctx = log.IntoContext(ctx, mgr.GetLogger().WithName("deployment-watcher"))
		return r.Run(ctx, src)
	}))
}
