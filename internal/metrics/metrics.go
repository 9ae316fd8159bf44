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

// Package metrics holds the Prometheus collectors exposed by the watcher.
// Collectors are created unregistered; call MustRegister once from main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nodeselector_notify"

const (
	// StatusSuccess labels a notification that reached the sink.
	StatusSuccess = "success"
	// StatusFailure labels a notification the sink rejected.
	StatusFailure = "failure"
)

var (
	WatchEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "events_total",
		Help:      "Watch events consumed by the reconciliation loop, by event type.",
	}, []string{"type"})

	WatchRelistsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "relists_total",
		Help:      "Full Deployment listings performed, by reason.",
	}, []string{"reason"})

	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "violations_total",
		Help:      "Deployments observed without a node selector, by watch phase.",
	}, []string{"phase"})

	ExcludedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "excluded_total",
		Help:      "Deployment events skipped because their namespace is ignored.",
	})

	PrimingBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "policy",
		Name:      "priming_violations",
		Help:      "Violations found by the most recent completed priming phase.",
	})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "notifications_total",
		Help:      "Notification delivery attempts, by message kind and status.",
	}, []string{"kind", "status"})

	NotificationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "delivery_duration_seconds",
		Help:      "Duration of notification deliveries.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind", "status"})
)

// MustRegister registers every collector with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		WatchEventsTotal,
		WatchRelistsTotal,
		ViolationsTotal,
		ExcludedTotal,
		PrimingBatchSize,
		NotificationsTotal,
		NotificationDuration,
	)
}
