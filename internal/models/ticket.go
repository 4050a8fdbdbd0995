package models

import "time"

// TicketStatus is derived from currentStep and history; it is never set
// directly by callers, only by workflow transitions.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pending"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
)

// Ticket represents one travel-expense reimbursement case
type Ticket struct {
	ID                     int64        `json:"id"`
	TicketNumber           string       `json:"ticket_number"`
	ActivityName           string       `json:"activity_name"`
	AssignmentLetterNumber string       `json:"assignment_letter_number"`
	Uraian                 string       `json:"uraian,omitempty"`
	StartDate              time.Time    `json:"start_date"`
	IsLs                   bool         `json:"is_ls"`
	CurrentStep            int          `json:"current_step"`
	Status                 TicketStatus `json:"status"`
	AssignedExecutorID1    *int64       `json:"assigned_executor_id_1,omitempty"`
	AssignedExecutorID2    *int64       `json:"assigned_executor_id_2,omitempty"`
	CreatedByID            int64        `json:"created_by_id"`
	CreatedByName          string       `json:"created_by_name,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`

	// Histories is populated on reads that join the history table,
	// ordered by step number ascending.
	Histories []*TicketHistory `json:"histories,omitempty"`
}

// HasHistoryFor reports whether a step has already been processed.
func (t *Ticket) HasHistoryFor(stepNumber int) bool {
	for _, h := range t.Histories {
		if h.StepNumber == stepNumber {
			return true
		}
	}
	return false
}

// IsAssignedExecutor reports whether the user is one of the ticket's
// designated signing executors. False when no executors are assigned.
func (t *Ticket) IsAssignedExecutor(userID int64) bool {
	if t.AssignedExecutorID1 != nil && *t.AssignedExecutorID1 == userID {
		return true
	}
	if t.AssignedExecutorID2 != nil && *t.AssignedExecutorID2 == userID {
		return true
	}
	return false
}

// HasAssignedExecutors reports whether the signing step is restricted
// to specific users on this ticket.
func (t *Ticket) HasAssignedExecutors() bool {
	return t.AssignedExecutorID1 != nil || t.AssignedExecutorID2 != nil
}

// TicketHistory is the durable record that a step was processed.
// At most one row exists per (ticket, stepNumber) pair.
type TicketHistory struct {
	ID            int64     `json:"id"`
	TicketID      int64     `json:"ticket_id"`
	StepNumber    int       `json:"step_number"`
	ProcessedByID int64     `json:"processed_by_id"`
	ProcessorName string    `json:"processor_name"`
	FileURL       *string   `json:"file_url,omitempty"`
	FileName      *string   `json:"file_name,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// FileRef is the reference returned by upload storage; the workflow
// only records it, never interprets it.
type FileRef struct {
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
}
