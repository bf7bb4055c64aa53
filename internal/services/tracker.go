package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chronoly/internal/amqp"
	"chronoly/internal/cache"
	"chronoly/internal/core"
	"chronoly/internal/log"
	"chronoly/internal/store"
)

// RecentEntriesLimit is how many entries the dashboard lists.
const RecentEntriesLimit = 5

// EventPublisher announces successful writes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Dashboard is everything the home page shows for one week.
type Dashboard struct {
	WeekStart     time.Time
	WeekEnd       time.Time
	Totals        []core.WeeklyTotal
	TotalHours    float64
	TotalEarnings float64
	Projects      []core.Project
	RecentEntries []core.TimeEntry
}

// TrackerService owns the write rules for projects and time entries and answers
// weekly totals. It is safe for concurrent use if the store is.
type TrackerService struct {
	store      store.EntityStore
	publisher  EventPublisher
	logger     *log.Logger
	now        func() time.Time
	newID      func() string
	dashboards *cache.LRU[Dashboard]

	// gen counts invalidations. A dashboard computed from a snapshot taken before
	// the latest write is never stored.
	genMu sync.Mutex
	gen   uint64
}

// Option configures a TrackerService.
type Option func(*TrackerService)

// WithPublisher enables change events. A nil publisher disables them.
func WithPublisher(p EventPublisher) Option {
	return func(s *TrackerService) { s.publisher = p }
}

// WithLogger sets the logger used for write outcomes and store failures.
func WithLogger(l *log.Logger) Option {
	return func(s *TrackerService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentTracker)
		}
	}
}

// WithDashboardCache keeps computed dashboards per week until the next write or
// until they expire. Writes made by other processes show up once the entry expires.
func WithDashboardCache(c *cache.LRU[Dashboard]) Option {
	return func(s *TrackerService) { s.dashboards = c }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TrackerService) { s.now = now }
}

// WithIDGenerator overrides the UUID generator, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *TrackerService) { s.newID = gen }
}

func NewTrackerService(st store.EntityStore, opts ...Option) *TrackerService {
	s := &TrackerService{
		store:  st,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentTracker),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for health checks.
func (s *TrackerService) Store() store.EntityStore {
	return s.store
}

// CreateProject validates in and stores a new project with a fresh id and creation time.
func (s *TrackerService) CreateProject(ctx context.Context, in core.ProjectInput) (core.Project, error) {
	if err := in.Validate(); err != nil {
		s.rejected(ctx, "create project", err)
		return core.Project{}, err
	}

	p := core.NewProject(s.newID(), in, s.now())
	if err := s.store.InsertProject(ctx, p); err != nil {
		return core.Project{}, s.storeFailure(ctx, "insert project", err)
	}

	s.logger.InfoContext(ctx, "Project created",
		log.NewFields().WithOperation(log.OpCreate).WithProject(p.ID, p.Name, p.HourlyRate).ToSlice()...)
	s.publish(ctx, amqp.NewChangeMessage(amqp.EntityProject, amqp.ActionCreated, p.ID, p.ID, nil))
	return p, nil
}

// CreateTimeEntry validates in, checks that the project exists and stores the entry.
// The store is not touched when validation fails.
func (s *TrackerService) CreateTimeEntry(ctx context.Context, in core.TimeEntryInput) (core.TimeEntry, error) {
	if err := in.Validate(); err != nil {
		s.rejected(ctx, "create time entry", err)
		return core.TimeEntry{}, err
	}

	projectID := strings.TrimSpace(in.ProjectID)
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			ref := core.ReferenceNotFound("projectId", projectID)
			s.rejected(ctx, "create time entry", ref)
			return core.TimeEntry{}, ref
		}
		return core.TimeEntry{}, s.storeFailure(ctx, "get project", err)
	}

	e := core.NewTimeEntry(s.newID(), in, s.now())
	if err := s.store.InsertTimeEntry(ctx, e); err != nil {
		return core.TimeEntry{}, s.storeFailure(ctx, "insert time entry", err)
	}

	s.logger.InfoContext(ctx, "Time entry created",
		log.NewFields().WithOperation(log.OpCreate).WithEntry(e.ID, e.ProjectID).ToSlice()...)
	start := e.StartTime
	s.publish(ctx, amqp.NewChangeMessage(amqp.EntityTimeEntry, amqp.ActionCreated, e.ID, e.ProjectID, &start))
	return e, nil
}

// DeleteProject removes the project and then every entry that references it.
// It returns how many entries were removed.
func (s *TrackerService) DeleteProject(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		err := core.MissingFields("id")
		s.rejected(ctx, "delete project", err)
		return 0, err
	}

	removed, err := s.deleteProjectAndEntries(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.rejected(ctx, "delete project", err)
		}
		return 0, err
	}

	s.logger.InfoContext(ctx, "Project deleted",
		log.FieldProjectID, id,
		log.FieldRemoved, removed,
		log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.NewChangeMessage(amqp.EntityProject, amqp.ActionDeleted, id, id, nil))
	return removed, nil
}

func (s *TrackerService) deleteProjectAndEntries(ctx context.Context, id string) (int, error) {
	if c, ok := s.store.(store.ProjectCascader); ok {
		removed, err := c.DeleteProjectCascade(ctx, id)
		if err != nil {
			return 0, s.storeFailure(ctx, "delete project", err)
		}
		return removed, nil
	}

	if err := s.store.DeleteProject(ctx, id); err != nil {
		return 0, s.storeFailure(ctx, "delete project", err)
	}
	removed, err := s.store.DeleteTimeEntriesByProject(ctx, id)
	if err != nil {
		// The project is gone; any entries left behind are skipped by the totals.
		s.invalidate()
		return 0, s.storeFailure(ctx, "delete time entries by project", err)
	}
	return removed, nil
}

// DeleteTimeEntry removes one entry.
func (s *TrackerService) DeleteTimeEntry(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		err := core.MissingFields("id")
		s.rejected(ctx, "delete time entry", err)
		return err
	}

	// Remember the week of the entry so the change event can name it.
	var start *time.Time
	if s.publisher != nil {
		start = s.entryStart(ctx, id)
	}

	if err := s.store.DeleteTimeEntry(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.rejected(ctx, "delete time entry", err)
			return err
		}
		return s.storeFailure(ctx, "delete time entry", err)
	}

	s.logger.InfoContext(ctx, "Time entry deleted", log.FieldEntryID, id, log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.NewChangeMessage(amqp.EntityTimeEntry, amqp.ActionDeleted, id, "", start))
	return nil
}

func (s *TrackerService) ListProjects(ctx context.Context) ([]core.Project, error) {
	ps, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list projects", err)
	}
	return ps, nil
}

func (s *TrackerService) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	es, err := s.store.ListTimeEntries(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list time entries", err)
	}
	return es, nil
}

// WeeklyTotals returns one total per project for the week containing ref.
func (s *TrackerService) WeeklyTotals(ctx context.Context, ref time.Time) ([]core.WeeklyTotal, error) {
	projects, entries, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return core.CalculateWeeklyTotals(projects, entries, ref), nil
}

// Dashboard gathers the weekly totals, grand sums and most recent entries for ref's week.
// The returned slices may be shared with other callers and must not be modified.
func (s *TrackerService) Dashboard(ctx context.Context, ref time.Time) (Dashboard, error) {
	start, end := core.WeekBounds(ref)
	key := start.Format(time.RFC3339)
	var gen uint64
	if s.dashboards != nil {
		if d, ok := s.dashboards.Get(key); ok {
			return d, nil
		}
		gen = s.generation()
	}

	projects, entries, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	totals := core.CalculateWeeklyTotals(projects, entries, ref)
	hours, earnings := core.SumTotals(totals)
	d := Dashboard{
		WeekStart:     start,
		WeekEnd:       end,
		Totals:        totals,
		TotalHours:    hours,
		TotalEarnings: earnings,
		Projects:      projects,
		RecentEntries: core.RecentEntries(entries, RecentEntriesLimit),
	}
	if s.dashboards != nil {
		s.fill(gen, key, d)
	}
	return d, nil
}

// snapshot reads projects and entries concurrently.
func (s *TrackerService) snapshot(ctx context.Context) ([]core.Project, []core.TimeEntry, error) {
	var (
		projects []core.Project
		entries  []core.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.store.ListProjects(gctx)
		if err != nil {
			return s.storeFailure(gctx, "list projects", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = s.store.ListTimeEntries(gctx)
		if err != nil {
			return s.storeFailure(gctx, "list time entries", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return projects, entries, nil
}

func (s *TrackerService) entryStart(ctx context.Context, id string) *time.Time {
	es, err := s.store.ListTimeEntries(ctx)
	if err != nil {
		return nil
	}
	for _, e := range es {
		if e.ID == id {
			start := e.StartTime
			return &start
		}
	}
	return nil
}

// publish runs after every successful write, so it also drops cached dashboards.
func (s *TrackerService) publish(ctx context.Context, msg *amqp.ChangeMessage) {
	s.invalidate()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change message",
			"entity", msg.Entity,
			"action", msg.Action,
			"id", msg.ID,
			log.FieldError, err)
	}
}

func (s *TrackerService) invalidate() {
	if s.dashboards == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gen++
	s.dashboards.Purge()
}

func (s *TrackerService) generation() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen
}

// fill caches d unless a write landed after gen was read.
func (s *TrackerService) fill(gen uint64, key string, d Dashboard) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gen == gen {
		s.dashboards.Set(key, d)
	}
}

func (s *TrackerService) rejected(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "Request rejected",
		log.NewFields().WithOperation(op).WithErrorKind(string(core.KindOf(err))).WithError(err).ToSlice()...)
}

// storeFailure logs err and makes sure it reports as ErrStoreUnavailable.
// Not-found errors pass through untouched.
func (s *TrackerService) storeFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return err
	}
	s.logger.ErrorContext(ctx, "Store operation failed",
		log.FieldOperation, op,
		log.FieldError, err)
	if errors.Is(err, core.ErrStoreUnavailable) {
		return err
	}
	return &core.StoreError{Op: op, Err: err}
}
