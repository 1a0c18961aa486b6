// Package report exports card lists and batch run results.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "汇总"
	DetailSheet  = "卡牌详情"
)

// Group is the cards of one group, in list order.
type Group struct {
	Name  string
	Glyph string
	Cards []cards.Card
}

// GroupCards groups list by card group in order of first appearance.
func GroupCards(list []cards.Card, glyphs map[string]string) []Group {
	var groups []Group
	index := map[string]int{}
	for _, c := range list {
		name := c.GroupOrDefault()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name, Glyph: glyphs[name]})
		}
		groups[i].Cards = append(groups[i].Cards, c)
	}
	return groups
}

// ExportWorkbook writes an xlsx workbook with a per-group summary sheet and a
// detail sheet listing every card.
func ExportWorkbook(list []cards.Card, glyphs map[string]string, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return fmt.Errorf("failed to create detail sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}

	groups := GroupCards(list, glyphs)
	if err := writeSummary(f, groups, len(list), header); err != nil {
		return err
	}
	if err := writeDetail(f, groups, header, wrap); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	slog.Info("Card workbook written", "path", path, "cards", len(list), "groups", len(groups))
	return nil
}

func writeSummary(f *excelize.File, groups []Group, total int, header int) error {
	rows := [][]any{{"卡牌类型", "图标", "数量", "占比"}}
	for _, g := range groups {
		share := 0.0
		if total > 0 {
			share = float64(len(g.Cards)) / float64(total)
		}
		rows = append(rows, []any{g.Name, g.Glyph, len(g.Cards), fmt.Sprintf("%.1f%%", share*100)})
	}
	rows = append(rows, []any{"合计", "", total, "100.0%"})

	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "D1", header); err != nil {
		return fmt.Errorf("failed to style summary header: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 16)
}

func writeDetail(f *excelize.File, groups []Group, header, wrap int) error {
	rows := [][]any{{"卡牌类型", "卡牌名称", "价格", "主题色", "AI提示词", "效果描述"}}
	for _, g := range groups {
		label := strings.TrimSpace(g.Glyph + " " + g.Name)
		for _, c := range g.Cards {
			rows = append(rows, []any{label, c.Name, c.Price, c.ColorTheme, c.Prompt, c.Description})
		}
	}

	if err := writeRows(f, DetailSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(DetailSheet, "A1", "F1", header); err != nil {
		return fmt.Errorf("failed to style detail header: %w", err)
	}
	if len(rows) > 1 {
		last, _ := excelize.CoordinatesToCellName(6, len(rows))
		if err := f.SetCellStyle(DetailSheet, "E2", last, wrap); err != nil {
			return fmt.Errorf("failed to style detail cells: %w", err)
		}
	}
	for col, width := range map[string]float64{"A": 14, "B": 18, "C": 8, "D": 10, "E": 50, "F": 50} {
		if err := f.SetColWidth(DetailSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
