// Package export renders a session snapshot as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/gachasim/internal/domain/model"
)

// Sheet names.
const (
	SheetHistory     = "History"
	SheetProgression = "Progression"
	SheetStats       = "Stats"
)

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var historyHeader = []interface{}{ //nolint:gochecknoglobals // fixed column layout
	"Batch", "Slot", "Timestamp", "Banner", "Character ID", "Name", "Rarity", "Tier", "Rate-up", "Cost", "Currency",
}

// WriteWorkbook writes history (one row per result, oldest first),
// progression and stats sheets for snap to w.
func WriteWorkbook(w io.Writer, snap model.Snapshot) error { //nolint:gocritic // hugeParam: read-only snapshot
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetHistory); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetProgression); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetStats); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := writeHistory(f, snap.History, headerStyle); err != nil {
		return fmt.Errorf("history sheet: %w", err)
	}
	if err := writeProgression(f, snap.Levels, headerStyle); err != nil {
		return fmt.Errorf("progression sheet: %w", err)
	}
	if err := writeStats(f, snap, headerStyle); err != nil {
		return fmt.Errorf("stats sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeHistory(f *excelize.File, entries []model.HistoryEntry, style int) error {
	if err := writeHeader(f, SheetHistory, historyHeader, style); err != nil {
		return err
	}
	row := 1
	for i, h := range entries {
		for slot, r := range h.Results {
			row++
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{
				i + 1,
				slot + 1,
				h.Timestamp.UTC().Format(time.RFC3339),
				h.BannerName,
				r.CharacterID,
				r.Name,
				int(r.Rarity),
				string(r.Tier),
				r.IsRateUp,
				h.Cost,
				string(h.CurrencyType),
			}
			if err := f.SetSheetRow(SheetHistory, cell, &values); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeProgression(f *excelize.File, levels map[string]int, style int) error {
	if err := writeHeader(f, SheetProgression, []interface{}{"Character ID", "Level"}, style); err != nil {
		return err
	}
	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		row := i + 2
		if err := f.SetCellValue(SheetProgression, fmt.Sprintf("A%d", row), id); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetProgression, fmt.Sprintf("B%d", row), levels[id]); err != nil {
			return err
		}
	}
	return nil
}

func writeStats(f *excelize.File, snap model.Snapshot, style int) error { //nolint:gocritic // hugeParam: read-only snapshot
	if err := writeHeader(f, SheetStats, []interface{}{"Metric", "Value"}, style); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"Total pulls", snap.Stats.TotalPulls},
		{"5★", snap.Stats.RarityCounts[model.Rarity5]},
		{"4★", snap.Stats.RarityCounts[model.Rarity4]},
		{"3★", snap.Stats.RarityCounts[model.Rarity3]},
		{"Rate-up hits", snap.Stats.RateUpCount},
		{"Crystals", snap.Crystals},
		{"Tickets", snap.Tickets},
		{"Selected banner", snap.SelectedBanner},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetStats, cell, &r); err != nil {
			return err
		}
	}
	return nil
}
