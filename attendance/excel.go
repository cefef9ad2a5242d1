/*
excel.go - Attendance workbook import and summary export

IMPORT FORMAT (first sheet, header row required):
  employee_id | date | clock_in | clock_out | status | remarks

  date:      YYYY-MM-DD (also accepts Excel's default mm-dd-yy and m/d/yyyy)
  clock_in:  HH:MM, blank for ABSENT/ON_LEAVE rows
  clock_out: HH:MM, blank when the day is still open
  status:    PRESENT | ABSENT | ON_LEAVE | HALF_DAY, blank means PRESENT

Rows are numbered as in the spreadsheet (header is row 1), so a parse error
on the first data row reports row 2.
*/
package attendance

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/warp/leave-engine/core"
	"github.com/xuri/excelize/v2"
)

var workbookHeader = []string{"employee_id", "date", "clock_in", "clock_out", "status", "remarks"}

var dateLayouts = []string{core.DateLayout, "01-02-06", "1/2/2006"}

// WorkbookRow is a successfully parsed data row.
type WorkbookRow struct {
	Row   int
	Entry EntryInput
}

// ParseWorkbook reads the first sheet of an attendance workbook. Clock times
// are placed on the row's date in loc. Rows that cannot be parsed come back
// as failed EntryResults; only an unreadable file is an error.
func ParseWorkbook(r io.Reader, loc *time.Location) ([]WorkbookRow, []EntryResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot open workbook: %v", core.ErrInvalidInput, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot read sheet %q: %v", core.ErrInvalidInput, sheet, err)
	}

	var (
		parsed   []WorkbookRow
		failures []EntryResult
	)
	for idx, row := range rows {
		if idx == 0 {
			continue // skip header
		}
		rowNum := idx + 1
		if blankRow(row) {
			continue
		}
		entry, err := parseRow(row, loc)
		if err != nil {
			failures = append(failures, EntryResult{
				Row:        rowNum,
				EmployeeID: entry.EmployeeID,
				Err:        fmt.Errorf("row %d: %w", rowNum, err),
			})
			continue
		}
		parsed = append(parsed, WorkbookRow{Row: rowNum, Entry: entry})
	}
	return parsed, failures, nil
}

func parseRow(row []string, loc *time.Location) (EntryInput, error) {
	col := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	in := EntryInput{
		EmployeeID: core.EmployeeID(col(0)),
		Status:     Status(strings.ToUpper(col(4))),
		Remarks:    col(5),
	}
	if in.EmployeeID == "" {
		return in, core.InvalidInput("employee_id is required")
	}

	date, err := parseSheetDate(col(1))
	if err != nil {
		return in, err
	}
	in.Date = date

	if v := col(2); v != "" {
		t, err := core.ParseTimeOfDay(v)
		if err != nil {
			return in, core.InvalidInput("clock_in: %v", err)
		}
		at := clockOn(date, t, loc)
		in.ClockIn = &at
	}
	if v := col(3); v != "" {
		t, err := core.ParseTimeOfDay(v)
		if err != nil {
			return in, core.InvalidInput("clock_out: %v", err)
		}
		at := clockOn(date, t, loc)
		in.ClockOut = &at
	}
	return in, nil
}

func parseSheetDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, core.InvalidInput("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return core.DateOf(t), nil
		}
	}
	return time.Time{}, core.InvalidInput("unrecognized date %q", v)
}

// clockOn places a sheet time of day on the row's date in loc.
func clockOn(date time.Time, t core.TimeOfDay, loc *time.Location) time.Time {
	return t.On(time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc))
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// EXPORT
// =============================================================================

var summaryHeader = []any{
	"employee_id", "from", "to", "present", "half_day", "absent", "on_leave",
	"regular_hours", "overtime_hours", "late_count", "late_minutes", "early_count", "early_minutes",
}

// WriteSummaryWorkbook renders summaries as a single-sheet xlsx.
func WriteSummaryWorkbook(w io.Writer, summaries []Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &summaryHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}

	for i, s := range summaries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		regular, _ := s.RegularHours.Float64()
		overtime, _ := s.OvertimeHours.Float64()
		row := []any{
			string(s.EmployeeID), core.FormatDate(s.From), core.FormatDate(s.To),
			s.DaysPresent, s.DaysHalf, s.DaysAbsent, s.DaysOnLeave,
			regular, overtime, s.LateCount, s.LateMinutes, s.EarlyCount, s.EarlyMinutes,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// WriteImportTemplate renders an empty import workbook with the header row.
func WriteImportTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(workbookHeader))
	for i, h := range workbookHeader {
		header[i] = h
	}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return err
	}
	return f.Write(w)
}
