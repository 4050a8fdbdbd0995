package models

import "time"

// Applicability describes which ticket branch a workflow step belongs to.
type Applicability int

const (
	ApplyBoth Applicability = iota
	ApplyLSOnly
	ApplyNonLSOnly
)

// String returns the string representation of the applicability
func (a Applicability) String() string {
	switch a {
	case ApplyLSOnly:
		return "ls_only"
	case ApplyNonLSOnly:
		return "non_ls_only"
	default:
		return "both"
	}
}

// StepConfiguration represents one step of the approval workflow.
// The catalog ordered by StepNumber must be contiguous starting at 1;
// the progression logic relies on ordinal adjacency to find the next step.
type StepConfiguration struct {
	ID                   int64        `json:"id"`
	StepNumber           int          `json:"step_number"`
	StepName             string       `json:"step_name"`
	Description          string       `json:"description"`
	RequiredEmployeeRole EmployeeRole `json:"required_employee_role"`
	IsLsOnly             bool         `json:"is_ls_only"`
	IsNonLsOnly          bool         `json:"is_non_ls_only"`
	IsParallel           bool         `json:"is_parallel"`
	ParallelGroup        *string      `json:"parallel_group,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Applicability derives the typed branch restriction from the flag pair.
// The flags are mutually exclusive; both set is rejected at create and
// update time.
func (s *StepConfiguration) Applicability() Applicability {
	switch {
	case s.IsLsOnly:
		return ApplyLSOnly
	case s.IsNonLsOnly:
		return ApplyNonLSOnly
	default:
		return ApplyBoth
	}
}

// AppliesTo reports whether this step is part of the given branch's
// applicable sequence. An LS ticket skips non-LS-only steps and vice versa.
func (s *StepConfiguration) AppliesTo(isLs bool) bool {
	if isLs {
		return !s.IsNonLsOnly
	}
	return !s.IsLsOnly
}

// InParallelGroup reports whether the step is a member of a parallel cohort.
func (s *StepConfiguration) InParallelGroup() bool {
	return s.IsParallel && s.ParallelGroup != nil && *s.ParallelGroup != ""
}
