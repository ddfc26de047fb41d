package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DraftInput is what a caller hands in to start or reshape a draft.
type DraftInput struct {
	Assignments []domain.Assignment
	LineItems   []domain.LineItem
	Expenses    []domain.LineItem
}

// Draft is an immutable snapshot of a drafting session. Every change to the
// session publishes a new Draft; readers never see a half-applied update.
type Draft struct {
	ID    string
	Epoch uint64

	// Chronological; EmptyMiles is filled in from the map for PER_MILE work.
	Assignments []domain.Assignment
	LineItems   []domain.LineItem
	Expenses    []domain.LineItem

	Routes       []domain.AssignmentRoute
	EmptyMiles   domain.EmptyMilesMap
	FocusID      string
	FallbackLegs int

	// MilesStale is set while focus kept EmptyMiles from being recomputed.
	MilesStale bool

	// Summary is zero when Validation is not empty.
	Summary    domain.InvoiceSummary
	Validation domain.ValidationErrors

	UpdatedAt time.Time
}

// VisibleRoutes honors focus mode: only the focused assignment is drawn.
func (d *Draft) VisibleRoutes() []domain.AssignmentRoute {
	if d.FocusID == "" {
		return d.Routes
	}
	for _, r := range d.Routes {
		if r.AssignmentID == d.FocusID {
			return []domain.AssignmentRoute{r}
		}
	}
	return nil
}

// Session is one invoice-drafting workflow.
//
// Routing I/O runs outside the lock. Each refresh takes a new epoch before
// starting and applies its results only if no newer refresh began meanwhile.
type Session struct {
	id      string
	planner *Planner
	now     func() time.Time

	mu          sync.Mutex
	epoch       uint64
	assignments []domain.Assignment
	lineItems   []domain.LineItem
	expenses    []domain.LineItem
	routes      []domain.AssignmentRoute
	emptyMiles  domain.EmptyMilesMap
	overrides   map[string]decimal.Decimal
	focusID     string
	milesStale  bool

	draft atomic.Pointer[Draft]
}

// NewSession routes every assignment and publishes the first draft.
func NewSession(ctx context.Context, id string, planner *Planner, in DraftInput) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s := &Session{
		id:          id,
		planner:     planner,
		now:         time.Now,
		assignments: domain.SortChronologically(in.Assignments),
		lineItems:   slices.Clone(in.LineItems),
		expenses:    slices.Clone(in.Expenses),
		overrides:   make(map[string]decimal.Decimal),
	}

	if _, err := s.refresh(ctx, nil, false); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Draft returns the latest published snapshot.
func (s *Session) Draft() *Draft { return s.draft.Load() }

// SetEmptyMiles records a user override for key and republishes the total in
// the same critical section. Overrides survive ordinary recomputation.
func (s *Session) SetEmptyMiles(key string, miles decimal.Decimal) (*Draft, error) {
	if miles.IsNegative() {
		return nil, domain.ValidationErrors{{Field: "miles", Reason: "must not be negative"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.emptyMiles.With(key, miles)
	if err != nil {
		return nil, fmt.Errorf("set empty miles %q: %w", key, err)
	}
	s.emptyMiles = m
	s.overrides[key] = miles

	return s.publishLocked(), nil
}

// Focus narrows the draft to one assignment; an empty id clears focus.
// Inter-assignment distances are not computed while focused and are
// brought up to date when focus is cleared.
func (s *Session) Focus(ctx context.Context, assignmentID string) (*Draft, error) {
	s.mu.Lock()
	if assignmentID != "" && !slices.ContainsFunc(s.assignments, func(a domain.Assignment) bool {
		return a.ID == assignmentID
	}) {
		s.mu.Unlock()
		return nil, fmt.Errorf("focus %q: %w", assignmentID, domain.ErrAssignmentNotFound)
	}

	s.focusID = assignmentID
	if assignmentID != "" || !s.milesStale {
		d := s.publishLocked()
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	return s.refresh(ctx, nil, false)
}

// Recalculate is the explicit "start over" action: it clears the route cache
// and every override, then regenerates all distances.
func (s *Session) Recalculate(ctx context.Context) (*Draft, error) {
	return s.refresh(ctx, func() {
		s.overrides = make(map[string]decimal.Decimal)
	}, true)
}

// ReplaceAssignments swaps the assignment set. The empty-miles map is rebuilt
// from scratch, so overrides and focus are dropped.
func (s *Session) ReplaceAssignments(ctx context.Context, assignments []domain.Assignment) (*Draft, error) {
	return s.refresh(ctx, func() {
		s.assignments = domain.SortChronologically(assignments)
		s.overrides = make(map[string]decimal.Decimal)
		s.focusID = ""
	}, false)
}

// Submit hands the current draft to the submitter. Empty miles left stale by
// focus mode are recomputed first. A draft with validation errors is rejected
// with ErrDraftInvalid.
func (s *Session) Submit(ctx context.Context, submitter ports.InvoiceSubmitter) (domain.InvoiceSubmission, error) {
	d := s.Draft()
	if d.MilesStale {
		var err error
		if d, err = s.recompute(ctx, nil, false, true); err != nil {
			return domain.InvoiceSubmission{}, fmt.Errorf("submit draft %s: %w", s.id, err)
		}
	}
	if len(d.Validation) > 0 {
		return domain.InvoiceSubmission{}, fmt.Errorf("submit draft %s: %w: %w", s.id, domain.ErrDraftInvalid, d.Validation)
	}

	sub := domain.InvoiceSubmission{
		SubmissionID: uuid.NewString(),
		DraftID:      s.id,
		Assignments:  d.Assignments,
		LineItems:    d.LineItems,
		Expenses:     d.Expenses,
		Summary:      d.Summary,
		SubmittedAt:  s.now(),
	}

	if err := submitter.Submit(ctx, sub); err != nil {
		return domain.InvoiceSubmission{}, fmt.Errorf("submit draft %s: %w", s.id, err)
	}
	return sub, nil
}

// refresh applies prepare under the lock, takes a new epoch and recomputes
// routes (and empty miles unless focused) without holding the lock.
// Results of a superseded epoch are dropped with ErrStaleGeneration.
func (s *Session) refresh(ctx context.Context, prepare func(), clearCache bool) (*Draft, error) {
	return s.recompute(ctx, prepare, clearCache, false)
}

// recompute is refresh with forceMiles computing empty miles even in focus mode.
func (s *Session) recompute(ctx context.Context, prepare func(), clearCache, forceMiles bool) (*Draft, error) {
	s.mu.Lock()
	if prepare != nil {
		prepare()
	}
	s.epoch++
	epoch := s.epoch
	assignments := slices.Clone(s.assignments)
	overrides := maps.Clone(s.overrides)
	computeMiles := s.focusID == "" || forceMiles
	s.mu.Unlock()

	if clearCache && s.planner.Cache != nil {
		if err := s.planner.Cache.Clear(ctx); err != nil {
			log.Printf("route cache clear failed draft=%s err=%v", s.id, err)
		}
	}
	generation := s.planner.Router.Generation()

	routes, err := s.planner.Stitcher.StitchAll(ctx, generation, assignments)
	if err != nil {
		return nil, err
	}

	var miles domain.EmptyMilesMap
	if computeMiles {
		miles, err = s.planner.EmptyMiles.Compute(ctx, generation, assignments, overrides)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		log.Printf("draft=%s epoch=%d superseded by epoch=%d; results discarded", s.id, epoch, s.epoch)
		return nil, domain.ErrStaleGeneration
	}

	s.routes = routes
	if computeMiles {
		s.emptyMiles = s.withOverridesLocked(miles)
		s.milesStale = false
	} else {
		s.emptyMiles = s.withoutClearedOverridesLocked()
		s.milesStale = true
	}

	return s.publishLocked(), nil
}

// Overrides entered while the refresh was in flight still win.
func (s *Session) withOverridesLocked(m domain.EmptyMilesMap) domain.EmptyMilesMap {
	for key, v := range s.overrides {
		next, err := m.With(key, v)
		if errors.Is(err, domain.ErrUnknownEmptyMilesKey) {
			delete(s.overrides, key)
			continue
		}
		m = next
	}
	return m
}

// Overridden entries whose override was cleared while focused fall back to
// zero until the map is recomputed.
func (s *Session) withoutClearedOverridesLocked() domain.EmptyMilesMap {
	m := s.emptyMiles
	for _, e := range s.emptyMiles.Entries {
		if _, ok := s.overrides[e.Key]; e.Overridden && !ok {
			m = m.Reset(e.Key)
		}
	}
	return m
}

func (s *Session) publishLocked() *Draft {
	assignments := make([]domain.Assignment, len(s.assignments))
	for i, a := range s.assignments {
		if a.ChargeType == domain.ChargePerMile {
			if v, ok := s.emptyMiles.ForAssignment(a.ID); ok {
				a.EmptyMiles = &v
			}
		}
		assignments[i] = a
	}

	routeByID := make(map[string]domain.AssignmentRoute, len(s.routes))
	fallbackLegs := 0
	for _, r := range s.routes {
		routeByID[r.AssignmentID] = r
		fallbackLegs += r.FallbackLegs
	}

	d := &Draft{
		ID:           s.id,
		Epoch:        s.epoch,
		Assignments:  assignments,
		LineItems:    s.lineItems,
		Expenses:     s.expenses,
		Routes:       s.routes,
		EmptyMiles:   s.emptyMiles,
		FocusID:      s.focusID,
		FallbackLegs: fallbackLegs,
		MilesStale:   s.milesStale,
		UpdatedAt:    s.now(),
	}

	summary, err := Recalculate(RecalculateRequest{
		Assignments: assignments,
		Routes:      routeByID,
		EmptyMiles:  s.emptyMiles,
		LineItems:   s.lineItems,
		Expenses:    s.expenses,
	})
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		d.Validation = verrs
	case err != nil:
		d.Validation = domain.ValidationErrors{{Field: "draft", Reason: err.Error()}}
	default:
		d.Summary = summary
	}

	s.draft.Store(d)
	return d
}
