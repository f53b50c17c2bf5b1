package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/metrics"
	"tablebook/internal/model"
)

var (
	ErrStaleResponse    = errors.New("availability result no longer matches the draft")
	ErrTableUnavailable = errors.New("table is not in the last availability result")
	ErrBusy             = errors.New("booking is busy")
	ErrSubmitted        = errors.New("booking already submitted")
)

// State is the position of a flow in the booking dialog.
type State string

const (
	StateEditing    State = "editing"
	StateChecking   State = "checking"
	StateChecked    State = "checked"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

var transitions = map[State][]State{
	StateEditing:    {StateChecking},
	StateChecking:   {StateChecked, StateEditing, StateChecking},
	StateChecked:    {StateEditing, StateChecking, StateSubmitting},
	StateSubmitting: {StateSubmitted, StateChecked},
	StateSubmitted:  {},
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Flow is one staff member's booking dialog. It owns its draft; every slot
// edit cancels the in-flight availability check and drops the confirmation.
type Flow struct {
	ID    string
	Owner string

	mu        sync.Mutex
	checker   availability.Checker
	draft     Draft
	state     State
	revision  uint64
	checkSeq  uint64
	result    *model.AvailabilityResult
	cancel    context.CancelFunc
	updatedAt time.Time
	created   *model.Reservation
}

// NewFlow starts a flow for date.
func NewFlow(id, owner, date string, checker availability.Checker) *Flow {
	return &Flow{
		ID:        id,
		Owner:     owner,
		checker:   checker,
		draft:     NewDraft(date),
		state:     StateEditing,
		updatedAt: time.Now(),
	}
}

// View is a read-only snapshot of a flow.
type View struct {
	ID           string                    `json:"id"`
	State        State                     `json:"state"`
	Revision     uint64                    `json:"revision"`
	Draft        Draft                     `json:"draft"`
	Availability *model.AvailabilityResult `json:"availability,omitempty"`
	Reservation  *model.Reservation        `json:"reservation,omitempty"`
}

func (f *Flow) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() View {
	d := f.draft
	d.TableIDs = append([]string{}, f.draft.TableIDs...)
	return View{
		ID:           f.ID,
		State:        f.state,
		Revision:     f.revision,
		Draft:        d,
		Availability: f.result,
		Reservation:  f.created,
	}
}

func (f *Flow) touch() { f.updatedAt = time.Now() }

// IsExpired checks if flow has been idle longer than timeout.
func (f *Flow) IsExpired(timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.updatedAt) > timeout
}

// Update applies a draft edit. A slot change bumps the revision, cancels the
// running check, clears the confirmation and the table selection.
func (f *Flow) Update(p Patch) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateSubmitted {
		return f.viewLocked(), ErrSubmitted
	}
	if f.state == StateSubmitting {
		return f.viewLocked(), ErrBusy
	}

	next := f.draft
	slotChanged, err := p.apply(&next)
	if err != nil {
		return f.viewLocked(), err
	}
	f.draft = next
	f.touch()

	if slotChanged {
		f.invalidateLocked()
	}
	return f.viewLocked(), nil
}

func (f *Flow) invalidateLocked() {
	f.revision++
	f.checkSeq++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.result = nil
	f.draft.ConfirmedSlot = ""
	f.draft.TableIDs = []string{}
	f.state = StateEditing
}

// CheckAvailability runs the configured checker for the current draft. The
// answer is applied only if the draft still asks for the same slot and no
// edit or newer check happened meanwhile; otherwise ErrStaleResponse is
// returned and nothing changes. On a valid answer with free tables the
// best-fit table is preselected.
func (f *Flow) CheckAvailability(ctx context.Context) (View, error) {
	f.mu.Lock()
	if f.state == StateSubmitted {
		defer f.mu.Unlock()
		return f.viewLocked(), ErrSubmitted
	}
	if !CanTransition(f.state, StateChecking) {
		defer f.mu.Unlock()
		return f.viewLocked(), ErrBusy
	}
	if f.cancel != nil {
		f.cancel()
	}
	req := f.draft.Request()
	f.checkSeq++
	seq := f.checkSeq
	checkCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.state = StateChecking
	f.touch()
	f.mu.Unlock()

	res, err := f.checker.Check(checkCtx, req)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkSeq != seq || f.draft.Request().Key() != req.Key() {
		metrics.IncStaleDiscarded()
		return f.viewLocked(), ErrStaleResponse
	}
	f.cancel = nil

	if err != nil {
		metrics.IncAvailabilityCheck("error")
		f.state = StateEditing
		f.result = nil
		f.draft.ConfirmedSlot = ""
		f.draft.TableIDs = []string{}
		return f.viewLocked(), fmt.Errorf("check availability: %w", err)
	}

	f.result = &res
	f.state = StateChecked
	f.draft.TableIDs = []string{}
	f.draft.ConfirmedSlot = ""

	switch {
	case !res.IsValidTime:
		metrics.IncAvailabilityCheck("invalid_time")
	case len(res.AvailableTables) == 0:
		metrics.IncAvailabilityCheck("no_tables")
		f.draft.ConfirmedSlot = req.Key()
	default:
		metrics.IncAvailabilityCheck("available")
		f.draft.ConfirmedSlot = req.Key()
		if best, ok := availability.PickBestTable(res.AvailableTables, req.PartySize); ok {
			f.draft.TableIDs = []string{best.ID}
		}
	}
	return f.viewLocked(), nil
}

// SelectTables replaces the table selection. Every id must come from the
// last availability result.
func (f *Flow) SelectTables(ids []string) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateSubmitted {
		return f.viewLocked(), ErrSubmitted
	}
	if f.state == StateSubmitting {
		return f.viewLocked(), ErrBusy
	}

	offered := map[string]bool{}
	if f.result != nil {
		for _, t := range f.result.AvailableTables {
			offered[t.ID] = true
		}
	}
	seen := map[string]bool{}
	selected := make([]string, 0, len(ids))
	for _, id := range ids {
		if !offered[id] {
			return f.viewLocked(), fmt.Errorf("%w: %s", ErrTableUnavailable, id)
		}
		if !seen[id] {
			seen[id] = true
			selected = append(selected, id)
		}
	}
	f.draft.TableIDs = selected
	f.touch()
	return f.viewLocked(), nil
}

// Submit validates and sends the draft. Validation failures leave the flow
// untouched; an upstream rejection returns it to the checked state.
func (f *Flow) Submit(ctx context.Context, s *Submitter) (*model.Reservation, error) {
	f.mu.Lock()
	if f.state == StateSubmitted {
		defer f.mu.Unlock()
		return f.created, ErrSubmitted
	}
	draft := f.draft
	draft.TableIDs = append([]string{}, f.draft.TableIDs...)
	if err := s.Validate(draft); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if !CanTransition(f.state, StateSubmitting) {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	f.state = StateSubmitting
	f.touch()
	f.mu.Unlock()

	res, err := s.Submit(ctx, draft)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateChecked
		return nil, err
	}
	f.state = StateSubmitted
	f.created = res
	return res, nil
}

// Close cancels any in-flight check.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
