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

package main

import (
	"os"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/sbahar619/nodeselector-notify/internal/config"
	"github.com/sbahar619/nodeselector-notify/internal/controller"
	"github.com/sbahar619/nodeselector-notify/internal/metrics"
	"github.com/sbahar619/nodeselector-notify/internal/notifier"
	"github.com/sbahar619/nodeselector-notify/internal/watcher"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	metrics.MustRegister(ctrlmetrics.Registry)
}

func main() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		// The logger is not configured yet; fall back to defaults.
		ctrl.SetLogger(zap.New())
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}

	ctrl.SetLogger(zap.New(zap.Level(cfg.LogLevel)))

	setupLog.Info("Starting nodeselector-notify", "env", cfg.Environment)
	if cfg.IgnoredNamespaces.Len() > 0 {
		setupLog.Info("Ignoring namespaces", "namespaces", sets.List(cfg.IgnoredNamespaces))
	}

	sender, err := notifier.NewWebhookSender(notifier.WebhookSenderConfig{
		URL:     cfg.WebhookURL,
		Timeout: cfg.NotifyTimeout,
	})
	if err != nil {
		setupLog.Error(err, "unable to create webhook sender")
		os.Exit(1)
	}
	setupLog.Info("Notifications go to webhook", "url", sender.URL(), "maxInFlight", cfg.NotifyMaxInFlight)

	restConfig := ctrl.GetConfigOrDie()
	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: cfg.MetricsBindAddress,
		},
		HealthProbeBindAddress: cfg.ProbeBindAddress,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		setupLog.Error(err, "unable to create clientset")
		os.Exit(1)
	}
	src := watcher.NewDeploymentSource(clientset)
	defer src.Close()

	reconciler := &controller.DeploymentReconciler{
		Notifier:          notifier.NewDispatcher(sender, cfg.NotifyMaxInFlight),
		IgnoredNamespaces: cfg.IgnoredNamespaces,
		Env:               cfg.Environment,
	}
	if err := reconciler.SetupWithManager(mgr, src); err != nil {
		setupLog.Error(err, "unable to set up deployment watcher")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
