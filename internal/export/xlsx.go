package export

import (
	"fmt"

	"caspview/internal/query"
	"caspview/internal/stats"
	"caspview/internal/survey"
	"caspview/internal/votes"

	"github.com/xuri/excelize/v2"
)

// SummarySheet is the name of the overview sheet.
const SummarySheet = "Summary"

var responseHeader = []interface{}{"Row", "Student", "Answer", "Explanation", "Votes", "Top voted"}

// WriteXLSX writes one sheet per question, ordered like the viewer orders
// cards, plus a summary sheet with the statistics. labels[q] names question q;
// missing labels fall back to "Q<n>".
func WriteXLSX(model *survey.Model, counts votes.Counts, labels []string, outputPath string) error {
	if model == nil {
		return fmt.Errorf("nothing to export: no responses loaded")
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	index, err := f.NewSheet(SummarySheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := writeSummary(f, model, counts, labels, bold); err != nil {
		return err
	}

	ledger := votes.NewLedger(nil)
	ledger.Replace(counts)

	for q := 0; q < model.QuestionCount(); q++ {
		if err := writeQuestion(f, model, ledger, q, labelFor(labels, q), bold); err != nil {
			return err
		}
	}

	// Delete default Sheet1
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}
	return nil
}

func labelFor(labels []string, q int) string {
	if q < len(labels) && labels[q] != "" {
		return labels[q]
	}
	return survey.Label(q)
}

func writeQuestion(f *excelize.File, model *survey.Model, ledger *votes.Ledger, q int, label string, bold int) error {
	sheet := survey.Label(q)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	question, _ := model.Question(q)
	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s: %s", sheet, label))
	f.SetCellValue(sheet, "A2", question.Text)
	f.SetCellStyle(sheet, "A1", "A1", bold)

	if err := f.SetSheetRow(sheet, "A4", &responseHeader); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A4", "F4", bold)

	result := query.View(model, ledger, q, query.All)
	for i, card := range result.Cards {
		explanation := ""
		if card.Answer.HasExplanation() {
			explanation = card.Answer.Explanation
		}
		top := ""
		if card.TopVoted {
			top = "yes"
		}

		cell, _ := excelize.CoordinatesToCellName(1, 5+i)
		row := []interface{}{card.Row.Index, card.Row.StudentID, card.Answer.Value, explanation, card.Votes, top}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(sheet, "B", "B", 18)
	f.SetColWidth(sheet, "D", "D", 80)
	return nil
}

func writeSummary(f *excelize.File, model *survey.Model, counts votes.Counts, labels []string, bold int) error {
	sheet := SummarySheet
	line := 1

	put := func(values ...interface{}) error {
		cell, _ := excelize.CoordinatesToCellName(1, line)
		line++
		return f.SetSheetRow(sheet, cell, &values)
	}
	heading := func(text string) error {
		cell, _ := excelize.CoordinatesToCellName(1, line)
		f.SetCellStyle(sheet, cell, cell, bold)
		return put(text)
	}

	completion := stats.CompletionRate(model)
	if err := heading("Completion"); err != nil {
		return err
	}
	if err := put(completion.String()); err != nil {
		return err
	}
	line++

	if err := heading("Answer distribution"); err != nil {
		return err
	}
	header := []interface{}{"Question", "Label"}
	for _, c := range survey.Choices {
		header = append(header, string(c))
	}
	if err := put(header...); err != nil {
		return err
	}
	for q := 0; q < model.QuestionCount(); q++ {
		row := []interface{}{survey.Label(q), labelFor(labels, q)}
		for _, s := range stats.Distribution(model, q) {
			row = append(row, s.Count)
		}
		if err := put(row...); err != nil {
			return err
		}
	}
	line++

	if err := heading("Uncertainty (% Can't Tell)"); err != nil {
		return err
	}
	for _, e := range stats.Uncertainty(model) {
		if err := put(e.Label, e.Value); err != nil {
			return err
		}
	}
	line++

	if err := heading("Top voted responses"); err != nil {
		return err
	}
	for _, e := range stats.TopVoted(model, counts, stats.DefaultTopVoted) {
		if err := put(e.Label, int(e.Value)); err != nil {
			return err
		}
	}

	f.SetColWidth(sheet, "A", "A", 40)
	return nil
}
