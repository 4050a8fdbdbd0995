package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

// HistoryRepository handles ticket history database operations
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

const historyColumns = `id, ticket_id, step_number, processed_by_id, processor_name,
	file_url, file_name, notes, processed_at`

func scanHistory(row interface{ Scan(...interface{}) error }) (*models.TicketHistory, error) {
	var h models.TicketHistory
	var fileURL, fileName sql.NullString

	err := row.Scan(
		&h.ID,
		&h.TicketID,
		&h.StepNumber,
		&h.ProcessedByID,
		&h.ProcessorName,
		&fileURL,
		&fileName,
		&h.Notes,
		&h.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if fileURL.Valid {
		h.FileURL = &fileURL.String
	}
	if fileName.Valid {
		h.FileName = &fileName.String
	}
	return &h, nil
}

// Create inserts a history row. The unique (ticket_id, step_number)
// constraint makes a duplicate insert fail rather than double-record.
func (r *HistoryRepository) Create(tx *sql.Tx, history *models.TicketHistory) error {
	query := `
		INSERT INTO ticket_histories (
			ticket_id, step_number, processed_by_id, processor_name,
			file_url, file_name, notes, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(r.db, tx).Exec(query,
		history.TicketID,
		history.StepNumber,
		history.ProcessedByID,
		history.ProcessorName,
		history.FileURL,
		history.FileName,
		history.Notes,
		history.ProcessedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("ticket_id", history.TicketID),
			zap.Int("step_number", history.StepNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	history.ID = id
	return nil
}

// ListByTicket retrieves all history rows for a ticket ordered by step number
func (r *HistoryRepository) ListByTicket(tx *sql.Tx, ticketID int64) ([]*models.TicketHistory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ticket_histories
		WHERE ticket_id = ?
		ORDER BY step_number ASC`, historyColumns)

	rows, err := conn(r.db, tx).Query(query, ticketID)
	if err != nil {
		r.logger.Error("Failed to list histories", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	defer rows.Close()

	var histories []*models.TicketHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

// Newest returns the most recently created history row for a ticket,
// or nil when the ticket has no history.
func (r *HistoryRepository) Newest(tx *sql.Tx, ticketID int64) (*models.TicketHistory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ticket_histories
		WHERE ticket_id = ?
		ORDER BY processed_at DESC, id DESC
		LIMIT 1`, historyColumns)

	h, err := scanHistory(conn(r.db, tx).QueryRow(query, ticketID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get newest history", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil, fmt.Errorf("failed to get newest history: %w", err)
	}
	return h, nil
}

// DeleteByID removes a single history row
func (r *HistoryRepository) DeleteByID(tx *sql.Tx, id int64) error {
	_, err := conn(r.db, tx).Exec("DELETE FROM ticket_histories WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete history", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// CountInSteps counts history rows for a ticket whose step number is in
// the given set. Parallel cohort gating reads this inside the same
// transaction that inserts the new row.
func (r *HistoryRepository) CountInSteps(tx *sql.Tx, ticketID int64, stepNumbers []int) (int, error) {
	if len(stepNumbers) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(stepNumbers))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(stepNumbers)+1)
	args = append(args, ticketID)
	for _, n := range stepNumbers {
		args = append(args, n)
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM ticket_histories WHERE ticket_id = ? AND step_number IN (%s)",
		placeholders,
	)

	var count int
	if err := conn(r.db, tx).QueryRow(query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count histories", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return 0, fmt.Errorf("failed to count histories: %w", err)
	}
	return count, nil
}
