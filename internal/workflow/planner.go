package workflow

import "github.com/adiwicaksono/pd-tracker/internal/models"

// Planner functions are pure derivations over a snapshot of the step
// catalog. Callers fetch a fresh catalog per operation; the catalog is
// mutable by administrators at any time, so snapshots must not be
// cached across requests.

// ApplicableSteps filters the catalog down to the steps a ticket of the
// given branch traverses, preserving step-number order.
func ApplicableSteps(catalog []*models.StepConfiguration, isLs bool) []*models.StepConfiguration {
	var steps []*models.StepConfiguration
	for _, step := range catalog {
		if step.AppliesTo(isLs) {
			steps = append(steps, step)
		}
	}
	return steps
}

// MaxApplicableStep returns the highest applicable step number for the
// branch; a ticket whose current step exceeds it is complete. Returns 0
// for an empty catalog.
func MaxApplicableStep(catalog []*models.StepConfiguration, isLs bool) int {
	max := 0
	for _, step := range catalog {
		if step.AppliesTo(isLs) && step.StepNumber > max {
			max = step.StepNumber
		}
	}
	return max
}

// FirstApplicableStep returns the step number a new ticket of the given
// branch starts on. Falls back to 1 when the catalog has no applicable
// steps.
func FirstApplicableStep(catalog []*models.StepConfiguration, isLs bool) int {
	steps := ApplicableSteps(catalog, isLs)
	if len(steps) == 0 {
		return 1
	}
	return steps[0].StepNumber
}

// ParallelCohort returns the step numbers of every catalog member of
// the given parallel group, regardless of branch applicability.
func ParallelCohort(catalog []*models.StepConfiguration, group string) []int {
	var cohort []int
	for _, step := range catalog {
		if step.IsParallel && step.ParallelGroup != nil && *step.ParallelGroup == group {
			cohort = append(cohort, step.StepNumber)
		}
	}
	return cohort
}

// StepByNumber returns the catalog entry with the given step number,
// or nil when absent.
func StepByNumber(catalog []*models.StepConfiguration, stepNumber int) *models.StepConfiguration {
	for _, step := range catalog {
		if step.StepNumber == stepNumber {
			return step
		}
	}
	return nil
}

// NextApplicableAfter returns the first applicable step with a number
// strictly greater than the given one, or nil when none remains.
func NextApplicableAfter(catalog []*models.StepConfiguration, isLs bool, stepNumber int) *models.StepConfiguration {
	for _, step := range ApplicableSteps(catalog, isLs) {
		if step.StepNumber > stepNumber {
			return step
		}
	}
	return nil
}

// PreviousApplicableStep returns the applicable step immediately before
// the given one in the branch's sequence. Falls back to step 1 when the
// given step is not in the sequence or is the first.
func PreviousApplicableStep(catalog []*models.StepConfiguration, isLs bool, stepNumber int) int {
	steps := ApplicableSteps(catalog, isLs)
	for i, step := range steps {
		if step.StepNumber == stepNumber {
			if i > 0 {
				return steps[i-1].StepNumber
			}
			return 1
		}
	}
	return 1
}

// StatusFor derives the ticket status from the step pointer and whether
// any history exists. Status is never stored independently of these
// inputs; every transition recomputes it here.
func StatusFor(currentStep, maxApplicableStep int, hasHistory bool) models.TicketStatus {
	switch {
	case currentStep > maxApplicableStep:
		return models.StatusCompleted
	case !hasHistory:
		return models.StatusPending
	default:
		return models.StatusInProgress
	}
}
