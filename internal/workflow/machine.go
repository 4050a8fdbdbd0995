package workflow

import (
	"fmt"
	"strings"

	"github.com/adiwicaksono/pd-tracker/internal/models"
)

// Budget-variance selections recorded on the field-verification step of
// LS tickets. The selection is carried as a structured prefix on the
// history notes.
const (
	VarianceNihil  = "Selisih Nihil"
	VarianceKurang = "Selisih Kurang"
	VarianceLebih  = "Selisih Lebih"
)

// ProcessRequest describes one processing event against a ticket
type ProcessRequest struct {
	Actor      models.Actor
	TargetStep int             // 0 targets the ticket's current step
	File       *models.FileRef // optional; parallel steps are often satisfied without one
	Notes      string
	Variance   string // mandatory on the variance-check step of LS tickets
	Bypass     bool   // admin override: role and assignment checks are skipped
}

// Decision is the outcome of a processing event: which step was
// satisfied, where the ticket pointer moves, and the derived status.
type Decision struct {
	Step     *models.StepConfiguration
	Notes    string // final notes, including any structured prefix
	NextStep int
	Status   models.TicketStatus
	Advanced bool
}

// Machine computes state transitions for one ticket against one catalog
// snapshot. It is pure: all reads and writes stay with the caller, which
// lets the engine run validation and advancement inside a single
// storage transaction.
type Machine struct {
	catalog      []*models.StepConfiguration
	varianceStep int
}

// NewMachine creates a machine over a catalog snapshot. varianceStep is
// the step number whose LS processing requires a variance selection;
// zero disables the check.
func NewMachine(catalog []*models.StepConfiguration, varianceStep int) *Machine {
	return &Machine{
		catalog:      catalog,
		varianceStep: varianceStep,
	}
}

// ResolveStep validates a processing event and returns the step it
// satisfies. The ticket must carry its histories. Checks, in order:
// terminal state, step existence and branch applicability, role
// authorization, signing-step assignment, idempotency, variance
// selection. Authorization runs before the idempotency check so a
// wrong-role actor is told Unauthorized even on a processed step.
func (m *Machine) ResolveStep(ticket *models.Ticket, req ProcessRequest) (*models.StepConfiguration, error) {
	if ticket.Status == models.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	stepNumber := req.TargetStep
	if stepNumber == 0 {
		stepNumber = ticket.CurrentStep
	}

	step := StepByNumber(m.catalog, stepNumber)
	if step == nil {
		return nil, fmt.Errorf("%w: step %d", ErrNotFound, stepNumber)
	}
	if !step.AppliesTo(ticket.IsLs) {
		return nil, fmt.Errorf("%w: step %d does not apply to this ticket branch", ErrValidation, stepNumber)
	}

	if !req.Bypass {
		if step.RequiredEmployeeRole != req.Actor.EmployeeRole {
			return nil, fmt.Errorf("%w: step %d requires role %s", ErrUnauthorized, stepNumber, step.RequiredEmployeeRole)
		}

		// The signing step can be pinned to up to two named executors.
		if step.RequiredEmployeeRole == models.RolePelaksana && ticket.HasAssignedExecutors() {
			if !ticket.IsAssignedExecutor(req.Actor.ID) {
				return nil, fmt.Errorf("%w: ticket is assigned to another executor", ErrUnauthorized)
			}
		}
	}

	if ticket.HasHistoryFor(stepNumber) {
		return nil, fmt.Errorf("%w: step %d", ErrAlreadyProcessed, stepNumber)
	}

	if m.requiresVariance(ticket, step) && req.Variance == "" {
		return nil, fmt.Errorf("%w: variance selection is required for this step", ErrValidation)
	}
	if req.Variance != "" && !validVariance(req.Variance) {
		return nil, fmt.Errorf("%w: unknown variance selection %q", ErrValidation, req.Variance)
	}

	return step, nil
}

// FinalNotes combines the variance tag, when present, with the
// free-text notes.
func (m *Machine) FinalNotes(ticket *models.Ticket, step *models.StepConfiguration, req ProcessRequest) string {
	if !m.requiresVariance(ticket, step) || req.Variance == "" {
		return req.Notes
	}
	if req.Notes == "" {
		return fmt.Sprintf("[%s]", req.Variance)
	}
	return fmt.Sprintf("[%s] %s", req.Variance, req.Notes)
}

// Advance computes the ticket's next step and status after the given
// step has been recorded. cohortProcessed is the number of history rows
// in the step's parallel cohort including the row just written; it is
// ignored for sequential steps. The caller must obtain that count in
// the same transaction that wrote the row, otherwise two concurrent
// cohort completions can both see "not yet full".
func (m *Machine) Advance(ticket *models.Ticket, step *models.StepConfiguration, cohortProcessed int) Decision {
	maxStep := MaxApplicableStep(m.catalog, ticket.IsLs)

	decision := Decision{
		Step:     step,
		NextStep: ticket.CurrentStep,
	}

	if step.InParallelGroup() {
		cohort := ParallelCohort(m.catalog, *step.ParallelGroup)
		if cohortProcessed >= len(cohort) {
			// Whole cohort satisfied: move past its highest member.
			highest := 0
			for _, n := range cohort {
				if n > highest {
					highest = n
				}
			}
			if next := NextApplicableAfter(m.catalog, ticket.IsLs, highest); next != nil {
				decision.NextStep = next.StepNumber
			} else {
				decision.NextStep = maxStep + 1
			}
			decision.Advanced = true
		}
		// Otherwise the pointer stays where it is so the remaining
		// cohort members can still be picked up.
	} else {
		steps := ApplicableSteps(m.catalog, ticket.IsLs)
		idx := -1
		for i, s := range steps {
			if s.StepNumber == step.StepNumber {
				idx = i
				break
			}
		}
		if idx >= 0 && idx < len(steps)-1 {
			decision.NextStep = steps[idx+1].StepNumber
		} else {
			// Last applicable step: park the pointer one past the end.
			decision.NextStep = maxStep + 1
		}
		decision.Advanced = true
	}

	decision.Status = StatusFor(decision.NextStep, maxStep, true)
	return decision
}

// ReturnTarget validates a return-to-previous-step correction and
// returns the step the ticket falls back to.
func (m *Machine) ReturnTarget(ticket *models.Ticket, reasonNotes string) (int, error) {
	if ticket.CurrentStep <= 1 {
		return 0, fmt.Errorf("%w: cannot return from the first step", ErrValidation)
	}
	if strings.TrimSpace(reasonNotes) == "" {
		return 0, fmt.Errorf("%w: a return reason is required", ErrValidation)
	}
	return PreviousApplicableStep(m.catalog, ticket.IsLs, ticket.CurrentStep), nil
}

// ReturnNote tags a correction reason so whoever redoes the previous
// step sees where the ticket came back from.
func ReturnNote(fromStep int, reason string) string {
	return fmt.Sprintf("[DIKEMBALIKAN DARI STEP %d] %s", fromStep, reason)
}

func (m *Machine) requiresVariance(ticket *models.Ticket, step *models.StepConfiguration) bool {
	return m.varianceStep != 0 && step.StepNumber == m.varianceStep && ticket.IsLs
}

func validVariance(v string) bool {
	switch v {
	case VarianceNihil, VarianceKurang, VarianceLebih:
		return true
	}
	return false
}
