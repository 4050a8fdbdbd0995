package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

// TicketRepository handles ticket database operations
type TicketRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sql.DB, logger *zap.Logger) *TicketRepository {
	return &TicketRepository{
		db:     db,
		logger: logger,
	}
}

// ListFilter narrows List results
type ListFilter struct {
	Status          models.TicketStatus
	ExcludeStatus   models.TicketStatus
	CreatedByID     int64
	ProcessedByID   int64 // tickets with at least one history row by this user
	Limit           int
}

const ticketColumns = `t.id, t.ticket_number, t.activity_name, t.assignment_letter_number,
	t.uraian, t.start_date, t.is_ls, t.current_step, t.status,
	t.assigned_executor_id_1, t.assigned_executor_id_2, t.created_by_id, u.name,
	t.created_at, t.updated_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	var t models.Ticket
	var uraian sql.NullString
	var exec1, exec2 sql.NullInt64

	err := row.Scan(
		&t.ID,
		&t.TicketNumber,
		&t.ActivityName,
		&t.AssignmentLetterNumber,
		&uraian,
		&t.StartDate,
		&t.IsLs,
		&t.CurrentStep,
		&t.Status,
		&exec1,
		&exec2,
		&t.CreatedByID,
		&t.CreatedByName,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if uraian.Valid {
		t.Uraian = uraian.String
	}
	if exec1.Valid {
		t.AssignedExecutorID1 = &exec1.Int64
	}
	if exec2.Valid {
		t.AssignedExecutorID2 = &exec2.Int64
	}
	return &t, nil
}

// Create inserts a new ticket
func (r *TicketRepository) Create(tx *sql.Tx, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (
			ticket_number, activity_name, assignment_letter_number, uraian,
			start_date, is_ls, current_step, status,
			assigned_executor_id_1, assigned_executor_id_2, created_by_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(r.db, tx).Exec(query,
		ticket.TicketNumber,
		ticket.ActivityName,
		ticket.AssignmentLetterNumber,
		nullString(ticket.Uraian),
		ticket.StartDate,
		ticket.IsLs,
		ticket.CurrentStep,
		ticket.Status,
		ticket.AssignedExecutorID1,
		ticket.AssignedExecutorID2,
		ticket.CreatedByID,
	)
	if err != nil {
		r.logger.Error("Failed to create ticket", zap.Error(err))
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ticket.ID = id
	return nil
}

// GetByID retrieves a ticket by ID without its histories
func (r *TicketRepository) GetByID(tx *sql.Tx, id int64) (*models.Ticket, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tickets t
		JOIN users u ON u.id = t.created_by_id
		WHERE t.id = ?`, ticketColumns)

	ticket, err := scanTicket(conn(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get ticket by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// List retrieves tickets matching the filter, newest first
func (r *TicketRepository) List(filter ListFilter) ([]*models.Ticket, error) {
	var where []string
	var args []interface{}

	if filter.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, filter.Status)
	}
	if filter.ExcludeStatus != "" {
		where = append(where, "t.status != ?")
		args = append(args, filter.ExcludeStatus)
	}
	if filter.CreatedByID != 0 {
		where = append(where, "t.created_by_id = ?")
		args = append(args, filter.CreatedByID)
	}
	if filter.ProcessedByID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM ticket_histories h WHERE h.ticket_id = t.id AND h.processed_by_id = ?)")
		args = append(args, filter.ProcessedByID)
	}

	query := fmt.Sprintf("SELECT %s FROM tickets t JOIN users u ON u.id = t.created_by_id", ticketColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list tickets", zap.Error(err))
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// UpdateProgress moves a ticket's step pointer and derived status
func (r *TicketRepository) UpdateProgress(tx *sql.Tx, id int64, currentStep int, status models.TicketStatus) error {
	query := `
		UPDATE tickets
		SET current_step = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := conn(r.db, tx).Exec(query, currentStep, status, id)
	if err != nil {
		r.logger.Error("Failed to update ticket progress", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return nil
}

// Delete removes a ticket; histories cascade
func (r *TicketRepository) Delete(id int64) error {
	_, err := r.db.Exec("DELETE FROM tickets WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete ticket", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return nil
}

// LatestNumberForYear returns the highest ticket number issued for the
// given year, or empty string when the year has no tickets yet.
func (r *TicketRepository) LatestNumberForYear(tx *sql.Tx, year int) (string, error) {
	query := `
		SELECT ticket_number FROM tickets
		WHERE ticket_number LIKE ?
		ORDER BY ticket_number DESC
		LIMIT 1
	`

	var number string
	err := conn(r.db, tx).QueryRow(query, fmt.Sprintf("PD-%d%%", year)).Scan(&number)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest ticket number", zap.Int("year", year), zap.Error(err))
		return "", fmt.Errorf("failed to get latest ticket number: %w", err)
	}
	return number, nil
}

// CountByStatus returns ticket counts grouped by status
func (r *TicketRepository) CountByStatus() (map[models.TicketStatus]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM tickets GROUP BY status")
	if err != nil {
		r.logger.Error("Failed to count tickets by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TicketStatus]int)
	for rows.Next() {
		var status models.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
