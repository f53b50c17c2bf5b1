package journal

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

// sheetWriter appends rows to one sheet at a time.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sheetWriter{file: f, bold: bold}, nil
}

func (w *sheetWriter) addSheet(name string, header []string) error {
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1

	if err := w.writeRow(toCells(header)); err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := w.file.SetCellStyle(name, "A1", end, w.bold); err != nil {
		return err
	}
	return w.file.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (w *sheetWriter) writeRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return err
	}
	w.row++
	return nil
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Export writes an XLSX workbook with a Reservations sheet and, when entries
// are given, a Journal sheet. tableNames maps table ids to display numbers;
// unknown ids are written as is.
func Export(out io.Writer, reservations []model.Reservation, tableNames map[string]string, entries []Entry) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.file.Close()

	header := []string{"ID", "Date", "Start", "Duration", "Party", "Status", "Customer", "Email", "Phone", "Tables", "Notes"}
	if err := w.addSheet("Reservations", header); err != nil {
		return err
	}
	for _, r := range reservations {
		start := timeofday.DisplayRaw(r.StartTime)
		tables := make([]string, 0, len(r.TableIDs))
		for _, id := range r.TableIDs {
			if name, ok := tableNames[id]; ok {
				id = name
			}
			tables = append(tables, id)
		}
		row := []interface{}{
			r.ID, r.ReservationDate, start, r.DurationMinutes, r.PartySize, string(r.Status),
			r.Customer.Name, r.Customer.Email, r.Customer.Phone, strings.Join(tables, ", "), r.Notes,
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		if err := w.addSheet("Journal", []string{"Time (UTC)", "Action", "Actor", "Subject", "Reservation date", "Detail"}); err != nil {
			return err
		}
		for _, e := range entries {
			row := []interface{}{
				e.CreatedAt.UTC().Format(timeLayout), e.Action, e.Actor, e.SubjectID, e.ReservationDate, e.Detail,
			}
			if err := w.writeRow(row); err != nil {
				return err
			}
		}
	}

	w.file.SetActiveSheet(0)
	return w.file.Write(out)
}
