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
	"fmt"
	"sync"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sbahar619/nodeselector-notify/internal/metrics"
)

// DeploymentListerWatcher is the subset of the typed Deployment client the
// source needs. kubernetes.Interface.AppsV1().Deployments(ns) satisfies it.
type DeploymentListerWatcher interface {
	List(ctx context.Context, opts metav1.ListOptions) (*appsv1.DeploymentList, error)
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
}

// DeploymentSource turns list-then-watch over Deployments into a Source.
// A fresh listing is framed by PrimingStarted/PrimingComplete; an expired
// resourceVersion triggers a new listing, so priming may happen more than once.
type DeploymentSource struct {
	lw DeploymentListerWatcher

	pending         []Event
	resourceVersion string
	needList        bool
	relistReason    string
	w               watch.Interface

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
}

var _ Source = &DeploymentSource{}

// NewDeploymentSource returns a source watching Deployments in every namespace.
func NewDeploymentSource(cs kubernetes.Interface) *DeploymentSource {
	return NewDeploymentSourceFor(cs.AppsV1().Deployments(metav1.NamespaceAll))
}

// NewDeploymentSourceFor returns a source backed by an arbitrary lister/watcher.
func NewDeploymentSourceFor(lw DeploymentListerWatcher) *DeploymentSource {
	return &DeploymentSource{
		lw:           lw,
		needList:     true,
		relistReason: "initial",
		closed:       make(chan struct{}),
	}
}

// Close stops the active watch. Any blocked or later Next returns ErrClosed.
func (s *DeploymentSource) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.w != nil {
			s.w.Stop()
		}
	})
}

// Next implements Source.
func (s *DeploymentSource) Next(ctx context.Context) (Event, error) {
	l := log.FromContext(ctx)

	for {
		select {
		case <-s.closed:
			return Event{}, ErrClosed
		default:
		}

		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		if s.needList {
			if err := s.list(ctx); err != nil {
				return Event{}, err
			}
			continue
		}

		if s.w == nil {
			w, err := s.lw.Watch(ctx, metav1.ListOptions{
				ResourceVersion:     s.resourceVersion,
				AllowWatchBookmarks: true,
			})
			if err != nil {
				if isExpired(err) {
					l.Info("Watch resourceVersion expired, relisting", "resourceVersion", s.resourceVersion)
					s.requestRelist("expired")
					continue
				}
				return Event{}, fmt.Errorf("watch deployments: %w", err)
			}
			if !s.setWatch(w) {
				return Event{}, ErrClosed
			}
		}

		select {
		case <-s.closed:
			return Event{}, ErrClosed
		case <-ctx.Done():
			s.stopWatch()
			return Event{}, ctx.Err()
		case e, ok := <-s.w.ResultChan():
			if !ok {
				l.V(1).Info("Watch channel closed, resuming", "resourceVersion", s.resourceVersion)
				s.stopWatch()
				continue
			}
			ev, emit, err := s.translate(ctx, e)
			if err != nil {
				return Event{}, err
			}
			if emit {
				return ev, nil
			}
		}
	}
}

// list performs a full listing and queues the priming events.
func (s *DeploymentSource) list(ctx context.Context) error {
	list, err := s.lw.List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("list deployments: %w", err)
	}
	metrics.WatchRelistsTotal.WithLabelValues(s.relistReason).Inc()

	events := make([]Event, 0, len(list.Items)+2)
	events = append(events, Event{Type: PrimingStarted})
	for i := range list.Items {
		events = append(events, Event{Type: PrimingItem, Deployment: &list.Items[i]})
	}
	events = append(events, Event{Type: PrimingComplete})

	s.pending = events
	s.resourceVersion = list.ResourceVersion
	s.needList = false
	log.FromContext(ctx).V(1).Info("Listed deployments", "count", len(list.Items), "resourceVersion", s.resourceVersion)
	return nil
}

// translate maps a raw watch event onto a loop event. emit is false for
// events that only move the resume point or force a relist.
func (s *DeploymentSource) translate(ctx context.Context, e watch.Event) (Event, bool, error) {
	l := log.FromContext(ctx)

	switch e.Type {
	case watch.Added, watch.Modified, watch.Deleted:
		d, ok := e.Object.(*appsv1.Deployment)
		if !ok {
			l.Info("Ignoring watch event with unexpected object", "type", e.Type, "object", fmt.Sprintf("%T", e.Object))
			return Event{}, false, nil
		}
		if d.ResourceVersion != "" {
			s.resourceVersion = d.ResourceVersion
		}
		if e.Type == watch.Deleted {
			return Event{Type: Removed, Deployment: d}, true, nil
		}
		return Event{Type: Upserted, Deployment: d}, true, nil
	case watch.Bookmark:
		if obj, err := meta.Accessor(e.Object); err == nil && obj.GetResourceVersion() != "" {
			s.resourceVersion = obj.GetResourceVersion()
		}
		return Event{}, false, nil
	case watch.Error:
		err := apierrors.FromObject(e.Object)
		if isExpired(err) {
			l.Info("Watch resourceVersion expired, relisting", "resourceVersion", s.resourceVersion)
			s.requestRelist("expired")
			return Event{}, false, nil
		}
		return Event{}, false, fmt.Errorf("watch deployments: %w", err)
	default:
		l.Info("Ignoring unsupported watch event", "type", e.Type)
		return Event{}, false, nil
	}
}

func (s *DeploymentSource) requestRelist(reason string) {
	s.stopWatch()
	s.needList = true
	s.relistReason = reason
	s.resourceVersion = ""
}

// setWatch installs w as the active watch. If Close ran while w was being
// opened, w is stopped instead and false is returned.
func (s *DeploymentSource) setWatch(w watch.Interface) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		w.Stop()
		return false
	default:
	}
	s.w = w
	return true
}

func (s *DeploymentSource) stopWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		s.w.Stop()
		s.w = nil
	}
}

func isExpired(err error) bool {
	return apierrors.IsResourceExpired(err) || apierrors.IsGone(err)
}
