package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"route-invoice-service/internal/adapters/directions"
	"route-invoice-service/internal/domain"

	"github.com/shopspring/decimal"
)

func sessionLegs() []directions.MockLeg {
	return []directions.MockLeg{
		leg(phoenix, tempe, 100, 2),
		leg(mesa, chandler, 50, 1),
		leg(tempe, mesa, 7.456, 0.2),
	}
}

func twoAssignments() []domain.Assignment {
	return []domain.Assignment{
		perMile("a2", 14, "1.00", mesa, chandler),
		perMile("a1", 8, "1.00", phoenix, tempe),
	}
}

func newTestSession(t *testing.T) (*Session, *directions.MockDirectionsProvider) {
	t.Helper()
	planner, provider, _ := newTestPlanner(t, sessionLegs())
	s, err := NewSession(context.Background(), "", planner, DraftInput{Assignments: twoAssignments()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, provider
}

func assertTotal(t *testing.T, d *Draft, want string) {
	t.Helper()
	if len(d.Validation) > 0 {
		t.Fatalf("unexpected validation errors: %v", d.Validation)
	}
	if got := domain.FormatMoney(d.Summary.Total); got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
}

func milesOf(t *testing.T, d *Draft, key string) domain.EmptyMilesEntry {
	t.Helper()
	e, ok := d.EmptyMiles.Get(key)
	if !ok {
		t.Fatalf("key %q missing from %+v", key, d.EmptyMiles.Entries)
	}
	return e
}

func TestNewSessionComputesDraft(t *testing.T) {
	s, _ := newTestSession(t)
	d := s.Draft()

	if d.ID == "" || d.Epoch != 1 {
		t.Fatalf("unexpected identity id=%q epoch=%d", d.ID, d.Epoch)
	}
	if d.Assignments[0].ID != "a1" || d.Assignments[1].ID != "a2" {
		t.Fatalf("assignments not in chronological order: %s, %s", d.Assignments[0].ID, d.Assignments[1].ID)
	}
	if got := milesOf(t, d, "a1-to-a2").Miles.String(); got != "7.46" {
		t.Fatalf("a1-to-a2 = %s, want 7.46", got)
	}
	if d.Assignments[0].EmptyMiles == nil || d.Assignments[0].EmptyMiles.String() != "7.46" {
		t.Fatalf("assignment empty miles not populated: %v", d.Assignments[0].EmptyMiles)
	}
	// (100 + 7.46) + (50 + 0)
	assertTotal(t, d, "157.46")
}

func TestSessionOverrideSurvivesRecomputeUntilRecalculate(t *testing.T) {
	ctx := context.Background()
	s, provider := newTestSession(t)

	d, err := s.SetEmptyMiles("a1-to-a2", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTotal(t, d, "160.00")

	// Ordinary recomputation keeps the override.
	d, err = s.refresh(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := milesOf(t, d, "a1-to-a2"); !e.Overridden || !e.Miles.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("override lost on recompute: %+v", e)
	}

	d, err = s.SetEmptyMiles("a2-to-end", decimal.RequireFromString("2.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTotal(t, d, "162.50")

	calls := provider.Calls()
	d, err = s.Recalculate(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Calls() <= calls {
		t.Fatal("recalculate must refetch after clearing the cache")
	}
	if e := milesOf(t, d, "a1-to-a2"); e.Overridden || e.Miles.String() != "7.46" {
		t.Fatalf("override survived recalculate: %+v", e)
	}
	if e := milesOf(t, d, "a2-to-end"); e.Overridden || !e.Miles.IsZero() {
		t.Fatalf("terminal override survived recalculate: %+v", e)
	}
	assertTotal(t, d, "157.46")
}

func TestSessionSetEmptyMilesRejectsBadInput(t *testing.T) {
	s, _ := newTestSession(t)
	before := s.Draft()

	if _, err := s.SetEmptyMiles("a9-to-a1", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrUnknownEmptyMilesKey) {
		t.Fatalf("expected ErrUnknownEmptyMilesKey, got %v", err)
	}

	var verrs domain.ValidationErrors
	if _, err := s.SetEmptyMiles("a1-to-a2", decimal.NewFromInt(-1)); !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	if s.Draft() != before {
		t.Fatal("rejected edits must not publish a new draft")
	}
}

func TestSessionFocusSuppressesEmptyMiles(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	if _, err := s.SetEmptyMiles("a1-to-a2", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	d, err := s.Focus(ctx, "a2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vis := d.VisibleRoutes(); len(vis) != 1 || vis[0].AssignmentID != "a2" {
		t.Fatalf("visible routes = %+v", vis)
	}
	assertTotal(t, d, "160.00")

	d, err = s.Recalculate(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := milesOf(t, d, "a1-to-a2"); e.Overridden || !e.Miles.IsZero() {
		t.Fatalf("override survived recalculate while focused: %+v", e)
	}
	if !d.MilesStale {
		t.Fatal("empty miles must be marked stale while focused")
	}

	d, err = s.Focus(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := milesOf(t, d, "a1-to-a2"); e.Overridden || e.Miles.String() != "7.46" {
		t.Fatalf("empty miles not refreshed after focus cleared: %+v", e)
	}
	if len(d.VisibleRoutes()) != 2 {
		t.Fatalf("expected both routes visible")
	}

	if _, err := s.Focus(ctx, "nope"); !errors.Is(err, domain.ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestSessionReplaceAssignmentsRegeneratesMap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	if _, err := s.SetEmptyMiles("a1-to-a2", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	next := append(twoAssignments(), perMile("a3", 20, "1.00", chandler, gilbert))
	d, err := s.ReplaceAssignments(ctx, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.EmptyMiles.Len() != 3 {
		t.Fatalf("expected 3 entries, got %+v", d.EmptyMiles.Entries)
	}
	if e := milesOf(t, d, "a1-to-a2"); e.Overridden {
		t.Fatalf("override survived assignment change: %+v", e)
	}
	if _, ok := d.EmptyMiles.Get("a2-to-end"); ok {
		t.Fatal("stale terminal key kept")
	}
	milesOf(t, d, "a3-to-end")
}

// gateProvider blocks FetchRoute while a gate is installed.
type gateProvider struct {
	inner   *directions.MockDirectionsProvider
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (g *gateProvider) FetchRoute(ctx context.Context, points []domain.GeoPoint) (domain.RouteResult, error) {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()

	if gate != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.RouteResult{}, ctx.Err()
		}
	}
	return g.inner.FetchRoute(ctx, points)
}

func (g *gateProvider) setGate(ch chan struct{}) {
	g.mu.Lock()
	g.gate = ch
	g.mu.Unlock()
}

func TestSessionDiscardsSupersededRecalculation(t *testing.T) {
	ctx := context.Background()
	gp := &gateProvider{
		inner:   directions.NewMockDirectionsProvider(sessionLegs()),
		entered: make(chan struct{}, 1),
	}
	planner := NewPlanner(gp, newTestCache(t), PlannerConfig{
		LegRouterConfig: LegRouterConfig{Timeout: 5 * time.Second},
	})

	s, err := NewSession(ctx, "draft-1", planner, DraftInput{Assignments: twoAssignments()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	release := make(chan struct{})
	gp.setGate(release)

	done := make(chan error, 1)
	go func() {
		_, err := s.Recalculate(ctx)
		done <- err
	}()

	select {
	case <-gp.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("recalculation never reached the provider")
	}

	// A newer change lands while the recalculation is still in flight.
	gp.setGate(nil)
	d, err := s.ReplaceAssignments(ctx, []domain.Assignment{perMile("a3", 9, "2", scottsdale, phoenix)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	close(release)
	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrStaleGeneration) {
			t.Fatalf("expected ErrStaleGeneration, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recalculation did not finish")
	}

	latest := s.Draft()
	if latest != d {
		t.Fatal("stale results replaced the newer draft")
	}
	if latest.Epoch != 3 || len(latest.Assignments) != 1 || latest.Assignments[0].ID != "a3" {
		t.Fatalf("unexpected draft epoch=%d assignments=%+v", latest.Epoch, latest.Assignments)
	}
	if latest.FallbackLegs != 1 {
		t.Fatalf("fallback legs = %d, want 1", latest.FallbackLegs)
	}
}

type recordingSubmitter struct {
	got []domain.InvoiceSubmission
	err error
}

func (r *recordingSubmitter) Submit(ctx context.Context, sub domain.InvoiceSubmission) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, sub)
	return nil
}

func TestSessionSubmit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	rec := &recordingSubmitter{}

	sub, err := s.Submit(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.got) != 1 || rec.got[0].SubmissionID != sub.SubmissionID || sub.SubmissionID == "" {
		t.Fatalf("submission not handed off: %+v", rec.got)
	}
	if sub.DraftID != s.ID() {
		t.Fatalf("draft id = %q, want %q", sub.DraftID, s.ID())
	}
	if !sub.Summary.Total.Equal(decimal.RequireFromString("157.46")) {
		t.Fatalf("total = %s", sub.Summary.Total)
	}
	if em := sub.Assignments[0].EmptyMiles; em == nil || em.String() != "7.46" {
		t.Fatalf("empty miles not carried on assignment: %v", em)
	}

	rec.err = errors.New("broker down")
	if _, err := s.Submit(ctx, rec); err == nil {
		t.Fatal("expected submitter error to surface")
	}
}

func TestSessionSubmitRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	planner, _, _ := newTestPlanner(t, sessionLegs())

	broken := twoAssignments()
	broken[0].ChargeValue = nil

	s, err := NewSession(ctx, "", planner, DraftInput{Assignments: broken})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Draft().Validation) == 0 {
		t.Fatal("expected validation errors on the draft")
	}

	rec := &recordingSubmitter{}
	_, err = s.Submit(ctx, rec)
	if !errors.Is(err, domain.ErrDraftInvalid) {
		t.Fatalf("expected ErrDraftInvalid, got %v", err)
	}
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("validation details not wrapped: %v", err)
	}
	if len(rec.got) != 0 {
		t.Fatal("invalid draft was submitted")
	}
}

func TestSessionSubmitAfterFocusedRecalculate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	if _, err := s.SetEmptyMiles("a1-to-a2", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Focus(ctx, "a2"); err != nil {
		t.Fatal(err)
	}

	d, err := s.Recalculate(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := milesOf(t, d, "a1-to-a2"); e.Overridden {
		t.Fatalf("cleared override still reported: %+v", e)
	}

	rec := &recordingSubmitter{}
	sub, err := s.Submit(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if em := sub.Assignments[0].EmptyMiles; em == nil || em.String() != "7.46" {
		t.Fatalf("submitted empty miles = %v, want 7.46", em)
	}
	if !sub.Summary.Total.Equal(decimal.RequireFromString("157.46")) {
		t.Fatalf("total = %s, want 157.46", sub.Summary.Total)
	}
	if s.Draft().MilesStale {
		t.Fatal("submit must leave the draft up to date")
	}
}
