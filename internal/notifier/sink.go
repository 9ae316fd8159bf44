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

// Package notifier shapes violation reports into text messages and delivers
// them to an external channel.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/sbahar619/nodeselector-notify/internal/policy"
)

// Sink delivers a plain text message to a fixed destination.
type Sink interface {
	Deliver(ctx context.Context, text string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, text string) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, text string) error { return f(ctx, text) }

const (
	// KindSingle labels a message about one workload seen while streaming.
	KindSingle = "single"
	// KindBatch labels the digest sent when priming completes.
	KindBatch = "batch"
)

// SingleViolationMessage renders the alert for one Deployment found without a
// node selector after the initial listing.
func SingleViolationMessage(env, name string) string {
	return fmt.Sprintf("⚠️ Deployment missing nodeSelector\nenv: %s\nname: %s", env, name)
}

// BatchViolationMessage renders the digest of every violation found during
// priming, one "namespace/name" line per entry in observation order.
func BatchViolationMessage(env string, refs []policy.WorkloadRef) string {
	lines := make([]string, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, "• "+ref.String())
	}
	return fmt.Sprintf("⚠️ Found %d deployment(s) missing nodeSelector\nenv: %s\n%s",
		len(refs), env, strings.Join(lines, "\n"))
}
