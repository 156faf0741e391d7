// Package export renders a user's months as an xlsx workbook or a JSON document.
package export

import (
	"fmt"
	"io"
	"sort"

	"dario.cat/mergo"
	"github.com/xuri/excelize/v2"

	"budget/internal/core"
)

const (
	MonthsSheet   = "Months"
	ExpensesSheet = "Expenses"
)

// WriteWorkbook writes a workbook with one row per month, the accumulated
// savings below them, and a second sheet listing every expense.
func WriteWorkbook(w io.Writer, userID string, months []core.Month, loc core.Locale) error {
	xlsx, err := Workbook(userID, months, loc)
	if err != nil {
		return err
	}
	defer xlsx.Close()
	if _, err := xlsx.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func Workbook(userID string, months []core.Month, loc core.Locale) (*excelize.File, error) {
	sorted := make([]core.Month, len(months))
	copy(sorted, months)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	xlsx := excelize.NewFile()
	_ = xlsx.SetAppProps(&excelize.AppProperties{Application: "budget"})
	_ = xlsx.SetDocProps(&excelize.DocProperties{Creator: userID, Title: "Budget " + userID})

	sheet := xlsx.GetSheetName(xlsx.GetActiveSheetIndex())
	if err := xlsx.SetSheetName(sheet, MonthsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := xlsx.NewSheet(ExpensesSheet); err != nil {
		return nil, fmt.Errorf("add expenses sheet: %w", err)
	}

	_ = xlsx.SetColWidth(MonthsSheet, "A", "A", 10)
	_ = xlsx.SetColWidth(MonthsSheet, "B", "B", 24)
	_ = xlsx.SetColWidth(MonthsSheet, "C", "H", 15)
	writeMonthsSheet(xlsx, sorted, loc)

	_ = xlsx.SetColWidth(ExpensesSheet, "A", "B", 12)
	_ = xlsx.SetColWidth(ExpensesSheet, "C", "D", 30)
	_ = xlsx.SetColWidth(ExpensesSheet, "E", "F", 12)
	writeExpensesSheet(xlsx, sorted)

	return xlsx, nil
}

func writeMonthsSheet(xlsx *excelize.File, months []core.Month, loc core.Locale) {
	sheet := MonthsSheet
	header(xlsx, sheet, 'H', "Month", "Label", "Income", "Fixed", "Variable", "Total expenses", "Balance", "Closed")

	numbers, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), numberFormat()))
	row := 2
	for i := range months {
		m := &months[i]
		t := core.CalculateTotals(m)
		label := m.Label
		if label == "" {
			label = monthLabel(m.ID, loc)
		}
		_ = xlsx.SetCellValue(sheet, cell('A', row), m.ID)
		_ = xlsx.SetCellValue(sheet, cell('B', row), label)
		_ = xlsx.SetCellValue(sheet, cell('C', row), float(t.Income))
		_ = xlsx.SetCellValue(sheet, cell('D', row), float(t.Fixed))
		_ = xlsx.SetCellValue(sheet, cell('E', row), float(t.Variable))
		_ = xlsx.SetCellValue(sheet, cell('F', row), float(t.TotalExpenses))
		_ = xlsx.SetCellValue(sheet, cell('G', row), float(t.Balance))
		_ = xlsx.SetCellBool(sheet, cell('H', row), m.Closed)
		_ = xlsx.SetCellStyle(sheet, cell('C', row), cell('G', row), numbers)
		row++
	}

	row++
	_ = xlsx.SetCellValue(sheet, cell('B', row), "Accumulated savings")
	_ = xlsx.SetCellValue(sheet, cell('G', row), float(core.CalculateAccumulatedSavings(months)))
	total, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), numberFormat(), thickBorder("top")))
	_ = xlsx.SetCellStyle(sheet, cell('A', row), cell('H', row), total)
}

func writeExpensesSheet(xlsx *excelize.File, months []core.Month) {
	sheet := ExpensesSheet
	header(xlsx, sheet, 'F', "Month", "Date", "Name", "Category", "Type", "Value")

	numbers, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), numberFormat()))
	row := 2
	for _, m := range months {
		for _, e := range m.Expenses {
			_ = xlsx.SetCellValue(sheet, cell('A', row), m.ID)
			_ = xlsx.SetCellValue(sheet, cell('B', row), e.Date.String())
			_ = xlsx.SetCellValue(sheet, cell('C', row), e.Name)
			_ = xlsx.SetCellValue(sheet, cell('D', row), e.Category)
			_ = xlsx.SetCellValue(sheet, cell('E', row), string(e.Type))
			_ = xlsx.SetCellValue(sheet, cell('F', row), float(e.Value))
			_ = xlsx.SetCellStyle(sheet, cell('F', row), cell('F', row), numbers)
			row++
		}
	}
}

func header(xlsx *excelize.File, sheet string, last rune, titles ...string) {
	for i, t := range titles {
		_ = xlsx.SetCellValue(sheet, cell('A'+rune(i), 1), t)
	}
	style, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thinBorder("bottom")))
	_ = xlsx.SetCellStyle(sheet, cell('A', 1), cell(last, 1), style)
}

func monthLabel(id string, loc core.Locale) string {
	start, err := core.MonthStart(id)
	if err != nil {
		return id
	}
	return core.MonthLabel(start, loc)
}

func float(m core.Money) float64 { return m.Decimal().InexactFloat64() }

func cell(col rune, row int) string {
	return fmt.Sprintf("%c%d", col, row)
}

func defaultStyle() *excelize.Style {
	return &excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFFFFF"},
			Pattern: 1,
		},
	}
}

func numberFormat() *excelize.Style {
	fmt := "#,##0.00"
	return &excelize.Style{
		CustomNumFmt: &fmt,
	}
}

func fontBold() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	}
}

func thinBorder(where ...string) *excelize.Style {
	return border(1, where)
}

func thickBorder(where ...string) *excelize.Style {
	return border(2, where)
}

func border(style int, where []string) *excelize.Style {
	s := &excelize.Style{}
	for _, w := range where {
		s.Border = append(s.Border, excelize.Border{
			Type:  w,
			Color: "#000000",
			Style: style,
		})
	}
	return s
}

func mergeStyles(ext ...*excelize.Style) *excelize.Style {
	if len(ext) == 0 {
		return nil
	}
	for _, e := range ext[1:] {
		_ = mergo.Merge(ext[0], e, mergo.WithOverride)
	}
	return ext[0]
}
