package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names of an exported report workbook.
const (
	SummarySheet   = "Summary"
	TopicsSheet    = "Topics"
	QuestionsSheet = "Questions"
)

// ExportXLSX writes r as a workbook with a summary, per-topic classification
// and the per-question breakdown.
func ExportXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{TopicsSheet, QuestionsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create %s sheet: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	a := r.Analysis
	c := r.Contribution
	summary := [][]any{
		{"Report", r.ID},
		{"Quiz", r.QuizTitle},
		{"Quiz ID", r.QuizID},
		{"Submitted", r.SubmittedAt.UTC().Format(time.RFC3339)},
		{"Score", fmt.Sprintf("%d / %d", a.TotalScore, a.TotalQuestions)},
		{"Percentage", a.OverallPercentage},
		{"Perfect score", c.IsPerfectScore},
		{"XP earned", c.XPEarned},
		{"Time spent (s)", c.TimeSpentSeconds},
		{"Report version", r.ReportVersion},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	topics := [][]any{{"Topic", "Classification", "Correct", "Total", "Percentage"}}
	for _, name := range topicOrder(a.TopicOrder, a.ClassifiedTopics) {
		tc := a.ClassifiedTopics[name]
		topics = append(topics, []any{name, tc.Classification, tc.Correct, tc.Total, tc.Percentage})
	}
	if err := writeRows(f, TopicsSheet, topics); err != nil {
		return err
	}

	questions := [][]any{{"#", "Question ID", "Question", "Topic", "Your answer", "Correct answer", "Result"}}
	for i, q := range a.QuestionBreakdown {
		result := "Incorrect"
		if q.IsCorrect {
			result = "Correct"
		}
		questions = append(questions, []any{
			i + 1, q.QuestionID, q.QuestionText, q.Topic,
			answerCell(q.UserAnswer, q.Options), answerCell(q.CorrectAnswer, q.Options), result,
		})
	}
	if err := writeRows(f, QuestionsSheet, questions); err != nil {
		return err
	}

	for _, sheet := range []string{TopicsSheet, QuestionsSheet} {
		if err := f.SetCellStyle(sheet, "A1", "G1", bold); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(QuestionsSheet, "C", "C", 48); err != nil {
		return fmt.Errorf("size question column: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
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
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// topicOrder lists topics in encounter order when known, else alphabetically.
func topicOrder[T any](order []string, topics map[string]T) []string {
	if len(order) == len(topics) {
		return order
	}
	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// answerCell shows an option index together with the option text.
func answerCell(v any, options []string) any {
	var idx int
	switch n := v.(type) {
	case nil:
		return ""
	case int:
		idx = n
	case float64:
		if n != float64(int(n)) {
			return n
		}
		idx = int(n)
	default:
		return fmt.Sprint(v)
	}
	if idx >= 0 && idx < len(options) {
		return fmt.Sprintf("%d: %s", idx, options[idx])
	}
	return idx
}
