package opsly

import (
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/policy"
	"github.com/viant/opsly/service/controller"
	"github.com/viant/opsly/service/dao"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/planner"
	"github.com/viant/opsly/service/prompt"
	"github.com/viant/opsly/tracing"

	"github.com/viant/opsly/service/executor"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service assembly
type Option func(s *Service)

// WithConfig replaces the whole configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithTarget points execution at a remote host; credentials names the scy
// resource holding its SSH secret.
func WithTarget(URL, credentials string) Option {
	return func(s *Service) {
		s.config.Target = executor.Host{URL: URL, Credentials: credentials}
	}
}

// WithSessionDAO sets where session snapshots are persisted
func WithSessionDAO(snapshots dao.Service[session.Key, session.Session]) Option {
	return func(s *Service) {
		s.snapshots = snapshots
	}
}

// WithPromptService sets the pending-question service
func WithPromptService(questions prompt.Service) Option {
	return func(s *Service) {
		s.questions = questions
	}
}

// WithPlannerClient sets the step proposal client, overriding the configured
// provider.
func WithPlannerClient(client planner.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithPolicy sets the execution gate
func WithPolicy(gate *policy.Policy) Option {
	return func(s *Service) {
		s.gate = gate
	}
}

func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithDispatcherWorkers sets the dispatcher worker pool size
func WithDispatcherWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.config.Dispatcher.Workers = count
		}
	}
}

// WithExecutorOptions lets the caller supply additional options passed to
// executor.New (e.g. a custom runner factory for tests).
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Service) {
		s.executorOptions = append(s.executorOptions, opts...)
	}
}

// WithPlannerOptions lets the caller supply additional options passed to
// planner.New.
func WithPlannerOptions(opts ...planner.Option) Option {
	return func(s *Service) {
		s.plannerOptions = append(s.plannerOptions, opts...)
	}
}

// WithControllerOptions lets the caller supply additional options passed to
// controller.New (e.g. a shorter retry delay).
func WithControllerOptions(opts ...controller.Option) Option {
	return func(s *Service) {
		s.controllerOptions = append(s.controllerOptions, opts...)
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times; the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
