package app

import (
	"fmt"

	"spacegun/internal/api"
	"spacegun/internal/artifacts"
	"spacegun/internal/config"
	"spacegun/internal/domain"
	"spacegun/internal/events"
	"spacegun/internal/kubernetes"
	"spacegun/internal/metrics"
	"spacegun/internal/pipeline"
	"spacegun/internal/registry"
	"spacegun/internal/scheduler"
	"spacegun/pkg/logging"
)

// Services holds all initialized services and APIs used by the application.
//
// Every collaborator is reached through a dispatch client, also in
// standalone mode, so a command behaves the same whether it runs in process
// or against a server.
type Services struct {
	Context   api.ExecutionContext
	Registry  *api.Registry
	Transport api.Transport
	Metrics   *metrics.Metrics

	Clusters  *api.ClusterClient
	Images    *api.ImageClient
	Events    *api.EventClient
	Artifacts *api.ArtifactClient
	Pipelines *api.PipelineClient

	// Manager owns the pipelines and their crons. It is nil in client mode.
	Manager *pipeline.Manager
}

// Adapters overrides the repositories InitializeServices would build from
// config.yaml. Nil fields are built as usual.
type Adapters struct {
	Clusters  api.ClusterService
	Images    domain.ImageRepository
	Events    domain.EventRepository
	Artifacts domain.ArtifactRepository
}

// InitializeServices creates the dispatch registry, registers the local
// adapters unless running as a client, and creates the clients every
// command goes through.
func InitializeServices(cfg *Config, adapters Adapters) (*Services, error) {
	ec, err := api.ExecutionContextFor(cfg.mode())
	if err != nil {
		return nil, err
	}
	sc := cfg.Spacegun
	if sc == nil {
		defaults := config.DefaultConfig()
		sc = &defaults
	}

	s := &Services{
		Context:  ec,
		Registry: api.NewRegistry(),
		Metrics:  metrics.New(),
	}
	s.Transport = api.NewTransport(ec, s.Registry, sc.Server.URL())
	s.Clusters = api.NewClusterClient(s.Transport)
	s.Images = api.NewImageClient(s.Transport)
	s.Events = api.NewEventClient(s.Transport)
	s.Artifacts = api.NewArtifactClient(s.Transport)
	s.Pipelines = api.NewPipelineClient(s.Transport)

	if !ec.ExecutesLocally() {
		logging.Info("Services", "Forwarding all procedures to %s", sc.Server.URL())
		return s, nil
	}

	if err := s.registerAdapters(cfg, sc, adapters); err != nil {
		return nil, err
	}
	logging.Debug("Services", "Registered %d procedures (%s)", len(s.Registry.Procedures()), ec)
	return s, nil
}

func (s *Services) registerAdapters(cfg *Config, sc *config.Config, adapters Adapters) error {
	if adapters.Events == nil {
		sinks := events.Multi{events.LogSink{}}
		if sc.Slack.WebhookURL != "" {
			sinks = append(sinks, events.NewSlackSink(sc.Slack.WebhookURL, nil))
		}
		adapters.Events = sinks
	}
	api.RegisterEventRepository(s.Registry, adapters.Events)

	if adapters.Clusters == nil {
		adapters.Clusters = s.newClusterRepository(sc)
	}
	api.RegisterClusterService(s.Registry, adapters.Clusters)

	if adapters.Images == nil && sc.Docker.URL != "" {
		images, err := registry.New(registry.Options{
			URL:      sc.Docker.URL,
			Username: sc.Docker.Username,
			Password: sc.Docker.Password,
			CacheTTL: sc.CacheTTL,
			Metrics:  s.Metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create registry client: %w", err)
		}
		adapters.Images = images
	}
	if adapters.Images != nil {
		api.RegisterImageRepository(s.Registry, adapters.Images)
	} else {
		logging.Warn("Services", "No docker registry configured, image planning is unavailable")
	}

	if adapters.Artifacts == nil {
		adapters.Artifacts = artifacts.New(sc.ResolveArtifactsPath(cfg.ConfigPath))
	}
	api.RegisterArtifactRepository(s.Registry, adapters.Artifacts)

	executor := pipeline.NewExecutor(pipeline.Dependencies{
		Clusters:  s.Clusters,
		Images:    s.Images,
		Events:    s.Events,
		Snapshots: s.Clusters,
	}, pipeline.WithMetrics(s.Metrics))
	crons := scheduler.NewCronRegistry(scheduler.WithMetrics(s.Metrics))
	s.Manager = pipeline.NewManager(config.PipelinesPath(cfg.ConfigPath), executor, crons)
	if err := s.Manager.Load(); err != nil {
		logging.Warn("Services", "Some pipelines could not be loaded: %v", err)
	}

	api.RegisterPipelineService(s.Registry, s.Manager)
	api.RegisterCronService(s.Registry, crons)
	return nil
}

// newClusterRepository connects to the configured kube contexts. Without a
// usable kubeconfig the repository has no clusters, so commands that do not
// touch a cluster keep working.
func (s *Services) newClusterRepository(sc *config.Config) api.ClusterService {
	opts := []kubernetes.Option{
		kubernetes.WithNamespaces(sc.Namespaces),
		kubernetes.WithCacheTTL(sc.CacheTTL),
		kubernetes.WithEvents(s.Events),
		kubernetes.WithMetrics(s.Metrics),
	}
	contexts, err := kubernetes.LoadContexts(sc.Kubeconfig, sc.Clusters)
	if err != nil {
		logging.Warn("Services", "No Kubernetes clusters available: %v", err)
		return kubernetes.New(nil, opts...)
	}
	repo, err := kubernetes.NewFromContexts(contexts, opts...)
	if err != nil {
		logging.Warn("Services", "No Kubernetes clusters available: %v", err)
		return kubernetes.New(nil, opts...)
	}
	return repo
}
