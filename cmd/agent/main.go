package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/approval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/config"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/dispatch"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/ledger"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/notify"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/orchestrator"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/policy"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/recommend"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/retrieval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/server"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/verify"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/version"
	"github.com/invisible-tech/autopilot-remediation-agent/pkg/kube"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	cfg := config.DefaultAgentConfig()
	log.WithFields(logrus.Fields{
		"version":    version.Version,
		"namespace":  cfg.TargetNamespace,
		"deployment": cfg.TargetDeployment,
	}).Info("Starting remediation agent")

	kubeClient, err := kube.NewInClusterClient(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Kubernetes client")
	}

	switches := policy.NewSwitches(cfg.AutoActionEnabled, cfg.ConfidenceThreshold, cfg.RequireApprovalFor)
	if cfg.PolicyFile != "" {
		watcher, err := config.NewPolicyWatcher(cfg.PolicyFile, switches, log)
		if err != nil {
			log.WithError(err).Warn("Policy file unavailable, using environment settings")
		} else {
			defer watcher.Close()
		}
	}

	incidents := ledger.New(cfg.IncidentRetention)
	queue := approval.NewQueue()
	notifier := notify.NewSlackNotifier(cfg.SlackWebhookURL, 0, log)

	prom := retrieval.NewPrometheusClient(cfg.PrometheusURL, cfg.PrometheusTimeout, log)

	dispatcher := dispatch.New(log)
	registerActions(dispatcher, kubeClient, notifier, prom, cfg)

	logSources := retrieval.FallbackLogs{kubeClient}
	if cfg.LokiURL != "" {
		logSources = retrieval.FallbackLogs{
			retrieval.NewLokiClient(cfg.LokiURL, cfg.LokiTimeout, log),
			kubeClient,
		}
	}

	orch := orchestrator.New(
		orchestrator.Target{Namespace: cfg.TargetNamespace, Deployment: cfg.TargetDeployment},
		orchestrator.Deps{
			Recommender: recommend.NewGroqRecommender(recommend.GroqConfig{
				APIKey:  cfg.GroqAPIKey,
				BaseURL: cfg.GroqBaseURL,
				Model:   cfg.GroqModel,
			}, log),
			Dispatcher: dispatcher,
			Verifier:   verify.New(kubeClient, cfg.VerifyInterval, cfg.VerifyTimeout, log),
			Queue:      queue,
			Ledger:     incidents,
			Switches:   switches,
			Logs:       logSources,
			Contexts:   retrieval.NewLedgerContext(incidents, 3),
		},
		log,
	)

	srv := server.New(cfg, orch, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Agent server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutting down remediation agent")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
