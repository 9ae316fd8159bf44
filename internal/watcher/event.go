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

package watcher

import (
	"context"
	"errors"

	appsv1 "k8s.io/api/apps/v1"
)

// EventType is the kind of a watch event delivered to the reconciliation loop.
type EventType int

const (
	// PrimingStarted marks the start (or restart) of an initial listing.
	PrimingStarted EventType = iota
	// PrimingItem carries one Deployment from the initial listing.
	PrimingItem
	// PrimingComplete marks the end of the initial listing.
	PrimingComplete
	// Upserted carries a Deployment created or modified while streaming.
	Upserted
	// Removed carries a Deployment deleted while streaming.
	Removed
)

func (t EventType) String() string {
	switch t {
	case PrimingStarted:
		return "PrimingStarted"
	case PrimingItem:
		return "PrimingItem"
	case PrimingComplete:
		return "PrimingComplete"
	case Upserted:
		return "Upserted"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Event is a single typed watch event. Deployment is nil for the
// PrimingStarted and PrimingComplete markers.
type Event struct {
	Type       EventType
	Deployment *appsv1.Deployment
}

// ErrClosed is returned by Source.Next once the stream has been closed.
var ErrClosed = errors.New("watch source closed")

// Source produces an ordered sequence of events, blocking between them.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// SliceSource replays a fixed list of events and then reports ErrClosed.
type SliceSource struct {
	Events []Event
	pos    int
}

var _ Source = &SliceSource{}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.Events) {
		return Event{}, ErrClosed
	}
	ev := s.Events[s.pos]
	s.pos++
	return ev, nil
}
