// Package export renders the ticket register as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const registerSheet = "Register PD"

var registerHeaders = []string{
	"No", "Nomor Tiket", "Nama Kegiatan", "Nomor Surat Tugas", "Uraian",
	"Tanggal Mulai", "Jenis", "Step Saat Ini", "Nama Step", "Status", "Dibuat Oleh",
}

// Exporter writes ticket registers
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// WriteRegister renders the tickets as one worksheet and writes the
// workbook to w. The step catalog supplies display names for the
// current-step column.
func (e *Exporter) WriteRegister(w io.Writer, tickets []*models.Ticket, catalog []*models.StepConfiguration) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	stepNames := make(map[int]string, len(catalog))
	for _, step := range catalog {
		stepNames[step.StepNumber] = step.StepName
	}

	for col, header := range registerHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(registerHeaders), 1)
		_ = f.SetCellStyle(registerSheet, "A1", lastCell, headerStyle)
	}

	for i, ticket := range tickets {
		row := i + 2
		branch := "Non-LS"
		if ticket.IsLs {
			branch = "LS"
		}

		stepName := stepNames[ticket.CurrentStep]
		if ticket.Status == models.StatusCompleted {
			stepName = "Selesai"
		}

		values := []interface{}{
			i + 1,
			ticket.TicketNumber,
			ticket.ActivityName,
			ticket.AssignmentLetterNumber,
			ticket.Uraian,
			ticket.StartDate.Format("2006-01-02"),
			branch,
			ticket.CurrentStep,
			stepName,
			string(ticket.Status),
			ticket.CreatedByName,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(registerSheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Ticket register exported", zap.Int("tickets", len(tickets)))
	return nil
}
