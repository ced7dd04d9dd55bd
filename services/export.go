package services

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"veritas-backend/internal/rag"
)

const transcriptSheet = "Transcript"

// BuildTranscriptWorkbook renders a session's conversation history as an
// Excel workbook. The caller must hold the session lock while this runs.
func BuildTranscriptWorkbook(sess *rag.Session, documentName string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(transcriptSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	info := [][]any{
		{"Session", sess.ID},
		{"Document", documentName},
		{"Exported", time.Now().Format(time.RFC3339)},
		{"Turns", len(sess.History)},
	}
	for i, row := range info {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write info row: %w", err)
		}
	}

	headerRow := len(info) + 2
	headers := []any{"#", "Role", "Message"}
	if err := f.SetSheetRow(transcriptSheet, fmt.Sprintf("A%d", headerRow), &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for i, turn := range sess.History {
		row := []any{i + 1, turn.Role, turn.Content}
		cell := fmt.Sprintf("A%d", headerRow+1+i)
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	// Widen the message column so transcripts are readable without resizing.
	if err := f.SetColWidth(transcriptSheet, "C", "C", 100); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	return f, nil
}
