package opsly

import (
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/policy"
	"github.com/viant/opsly/service/classifier"
	"github.com/viant/opsly/service/controller"
	"github.com/viant/opsly/service/dao"
	sfs "github.com/viant/opsly/service/dao/session/fs"
	smemory "github.com/viant/opsly/service/dao/session/memory"
	"github.com/viant/opsly/service/dispatcher"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/messaging"
	mfs "github.com/viant/opsly/service/messaging/fs"
	"github.com/viant/opsly/service/planner"
	"github.com/viant/opsly/service/planner/openai"
	"github.com/viant/opsly/service/planner/scripted"
	"github.com/viant/opsly/service/prompt"
	pmemory "github.com/viant/opsly/service/prompt/memory"
	"github.com/viant/opsly/service/store"
)

type Service struct {
	config  *Config
	runtime *Runtime

	snapshots dao.Service[session.Key, session.Session]
	questions prompt.Service
	sessions  *store.Service
	sweeper   *store.Sweeper
	remote    *executor.Service
	client    planner.Client
	sequencer *planner.Service
	rules     *classifier.Service
	gate      *policy.Policy
	events    *event.Service

	executorOptions   []executor.Option
	plannerOptions    []planner.Option
	controllerOptions []controller.Option
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	_ = s.config.Validate()
	s.ensureBaseSetup()

	controllerOptions := []controller.Option{
		controller.WithStore(s.sessions),
		controller.WithPlanner(s.sequencer),
		controller.WithExecutor(s.remote),
		controller.WithClassifier(s.rules),
		controller.WithPrompt(s.questions),
		controller.WithEvents(s.events),
	}
	if s.gate != nil {
		controllerOptions = append(controllerOptions, controller.WithPolicy(s.gate))
	}
	if s.config.Target.URL != "" {
		target := s.config.Target
		controllerOptions = append(controllerOptions, controller.WithHost(&target))
	}
	controllerOptions = append(controllerOptions, s.controllerOptions...)
	s.runtime.controller, _ = controller.New(controllerOptions...)
	s.runtime.dispatcher, _ = dispatcher.New(
		dispatcher.WithHandler(s.runtime.controller),
		dispatcher.WithConfig(dispatcher.Config{
			WorkerCount:    s.config.Dispatcher.Workers,
			MaxBusyRetries: s.config.Dispatcher.MaxBusyRetries,
			BusyRetryDelay: time.Duration(s.config.Dispatcher.BusyRetryDelayMs) * time.Millisecond,
		}))
	s.runtime.sessions = s.sessions
	s.runtime.questions = s.questions
	s.runtime.sweeper = s.sweeper
	s.runtime.remote = s.remote
	s.runtime.events = s.events
}

func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration after defaults were applied.
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) ensureBaseSetup() {

	if s.snapshots == nil {
		if s.config.Session.Location != "" {
			if snapshots, err := sfs.New(s.config.Session.Location); err == nil {
				s.snapshots = snapshots
			}
		}
		if s.snapshots == nil {
			s.snapshots = smemory.New()
		}
	}
	if s.questions == nil {
		s.questions = pmemory.New()
	}
	if s.events == nil {
		var eventOptions []event.Option
		if messaging.Vendor(s.config.Events.Vendor) == messaging.VendorFs {
			location := s.config.Events.Location
			eventOptions = append(eventOptions, event.WithNewFsQueueConfig(func(name string) mfs.Config {
				return mfs.Config{BaseURL: url.Join(location, name), MaxRetries: mfs.DefaultConfig().MaxRetries}
			}))
		}
		s.events, _ = event.New(messaging.Vendor(s.config.Events.Vendor), eventOptions...)
		if s.events != nil {
			// drain published events until a subscriber replaces the listener
			s.events.SetListener(func(*event.Event[any]) {})
		}
	}
	if s.sessions == nil {
		storeOptions := []store.Option{
			store.WithHistoryLimit(s.config.Session.HistoryLimit),
			store.WithPrompt(s.questions),
		}
		if s.config.Target.URL != "" {
			storeOptions = append(storeOptions, store.WithDefaultHost(url.Host(s.config.Target.URL)))
		}
		s.sessions = store.New(s.snapshots, storeOptions...)
	}
	if s.sweeper == nil {
		s.sweeper = store.NewSweeper(s.sessions, store.SweeperConfig{
			SweepInterval: time.Duration(s.config.Session.SweepIntervalMs) * time.Millisecond,
			IdleTimeout:   time.Duration(s.config.Session.IdleTimeoutMs) * time.Millisecond,
		})
	}
	if s.remote == nil {
		executorOptions := []executor.Option{
			executor.WithDefaultTimeout(time.Duration(s.config.Executor.DefaultTimeoutMs) * time.Millisecond),
			executor.WithConnectionTTL(time.Duration(s.config.Executor.ConnectionTTLMs) * time.Millisecond),
			executor.WithMaxPerHost(s.config.Executor.MaxPerHost),
			executor.WithMaxOutputBytes(s.config.Executor.MaxOutputKB * 1024),
		}
		if s.config.Target.URL != "" {
			target := s.config.Target
			executorOptions = append(executorOptions, executor.WithDefaultHost(&target))
		}
		executorOptions = append(executorOptions, s.executorOptions...)
		s.remote = executor.New(executorOptions...)
	}
	if s.client == nil {
		if s.config.Planner.Provider == ProviderOpenAI {
			openAI := s.config.Planner.OpenAI
			s.client = openai.New(&openAI)
		} else {
			s.client = scripted.New()
		}
	}
	if s.sequencer == nil {
		plannerOptions := []planner.Option{
			planner.WithMaxSteps(s.config.Planner.MaxSteps),
			planner.WithRecentHistory(s.config.Planner.RecentHistory),
		}
		plannerOptions = append(plannerOptions, s.plannerOptions...)
		s.sequencer = planner.New(s.client, plannerOptions...)
	}
	if s.rules == nil {
		s.rules, _ = classifier.New()
	}
	if s.gate == nil && s.config.Policy != nil {
		s.gate = policy.FromConfig(s.config.Policy)
	}
}

func New(options ...Option) *Service {
	ret := &Service{config: DefaultConfig(), runtime: &Runtime{}}
	ret.init(options)
	return ret
}
