// Package core wires the scrum domain together: the transactional store, the
// derived-facet cache with its explicit invalidation cascade, the ranking
// index, the assignment engine, and the broadcast dispatcher.
package core

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"scrumcore/internal/broadcast"
	"scrumcore/internal/cache"
	"scrumcore/internal/chat"
	"scrumcore/internal/rank"
	"scrumcore/internal/search"
	"scrumcore/pkg/domain"
)

// Service exposes the transactional operations of the scrum core. Reads of
// derived facets consult the state cache first; every mutation invalidates
// synchronously before returning success.
type Service struct {
	store      domain.PersistentStore
	cache      cache.Client
	ranks      *rank.Locker
	dispatcher *broadcast.Dispatcher
	indexer    search.Indexer
	notifier   chat.Notifier
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// Option customizes service construction.
type Option func(*Service)

// WithCache installs a state cache client. Default is the noop cache, which
// degrades every read to recomputation.
func WithCache(c cache.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithDispatcher installs the broadcast dispatcher for assignment events.
func WithDispatcher(d *broadcast.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithIndexer installs the search re-index signal receiver.
func WithIndexer(ix search.Indexer) Option {
	return func(s *Service) {
		if ix != nil {
			s.indexer = ix
		}
	}
}

// WithChatNotifier installs the project chat webhook notifier.
func WithChatNotifier(n chat.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger installs a structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder installs a metrics recorder. Default discards.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		cache:      cache.Noop{},
		ranks:      rank.NewLocker(),
		dispatcher: broadcast.NewDispatcher(nil, nil, 0),
		indexer:    search.Noop{},
		notifier:   chat.Noop{},
		logger:     slog.New(slog.DiscardHandler),
		metrics:    NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRulesEngine returns an engine loaded with the built-in validation
// rules evaluated at every commit.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(BacklogItemIntegrityRule())
	engine.Register(ProjectNameRule())
	return engine
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

func (s *Service) finish(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "service operation failed", "op", op, "error", err)
	}
}

// lockScopes acquires the rank locks for the given scopes in a deterministic
// order and returns a single release function.
func (s *Service) lockScopes(scopes ...rank.Scope) func() {
	uniq := make([]rank.Scope, 0, len(scopes))
	seen := map[rank.Scope]bool{}
	for _, sc := range scopes {
		if !seen[sc] {
			seen[sc] = true
			uniq = append(uniq, sc)
		}
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].ProjectID != uniq[j].ProjectID {
			return uniq[i].ProjectID < uniq[j].ProjectID
		}
		return uniq[i].Partition < uniq[j].Partition
	})
	releases := make([]func(), 0, len(uniq))
	for _, sc := range uniq {
		releases = append(releases, s.ranks.Lock(sc))
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}

// CreateProject persists a new project.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, error) {
	start := time.Now()
	var created Project
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	s.finish(ctx, "create_project", start, err)
	return created, err
}

// UpdateProject mutates a project using the provided mutator.
func (s *Service) UpdateProject(ctx context.Context, id string, mutator func(*Project) error) (Project, error) {
	start := time.Now()
	var updated Project
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateProject(id, mutator)
		return err
	})
	s.finish(ctx, "update_project", start, err)
	return updated, err
}

// DeleteProject removes a project and everything it owns, then drops its
// aggregate cache entry.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteProject(id)
	})
	if err == nil {
		_ = s.cache.Invalidate(ctx, id, FacetStoryPoints)
	}
	s.finish(ctx, "delete_project", start, err)
	return err
}

// CreatePerson persists a new person.
func (s *Service) CreatePerson(ctx context.Context, person Person) (Person, error) {
	start := time.Now()
	var created Person
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreatePerson(person)
		return err
	})
	s.finish(ctx, "create_person", start, err)
	return created, err
}

// AddTeamMember associates a person with a project's team.
func (s *Service) AddTeamMember(ctx context.Context, projectID, personID string, scrumMaster bool) (TeamMember, error) {
	start := time.Now()
	var created TeamMember
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateTeamMember(TeamMember{
			ProjectID:   projectID,
			PersonID:    personID,
			ScrumMaster: scrumMaster,
		})
		return err
	})
	s.finish(ctx, "add_team_member", start, err)
	return created, err
}

// RemoveTeamMember drops a person from a project's team. Existing task
// assignments are left untouched.
func (s *Service) RemoveTeamMember(ctx context.Context, teamMemberID string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteTeamMember(teamMemberID)
	})
	s.finish(ctx, "remove_team_member", start, err)
	return err
}

// CreateSprint persists a new sprint.
func (s *Service) CreateSprint(ctx context.Context, sprint Sprint) (Sprint, error) {
	start := time.Now()
	var created Sprint
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateSprint(sprint)
		return err
	})
	s.finish(ctx, "create_sprint", start, err)
	return created, err
}

// UpdateSprint mutates a sprint.
func (s *Service) UpdateSprint(ctx context.Context, id string, mutator func(*Sprint) error) (Sprint, error) {
	start := time.Now()
	var updated Sprint
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateSprint(id, mutator)
		return err
	})
	s.finish(ctx, "update_sprint", start, err)
	return updated, err
}

// NotifyProject posts a message to the project's chat room using its stored
// integration settings. Best effort: incomplete settings skip the call and
// transport failures are logged, never surfaced.
func (s *Service) NotifyProject(ctx context.Context, projectID, message string) {
	project, ok := s.store.GetProject(projectID)
	if !ok || project.ChatIntegration == nil {
		return
	}
	if err := s.notifier.Notify(ctx, *project.ChatIntegration, message); err != nil {
		s.logger.WarnContext(ctx, "project chat notification dropped", "project_id", projectID, "error", err)
	}
}
