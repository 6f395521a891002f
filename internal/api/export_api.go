package api

import (
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"calbook/internal/metrics"
)

// handleExportBookings streams the booking list as an xlsx workbook.
// GET /api/admin/bookings/export?date=YYYY-MM-DD&user=name&category_id=N
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.db.ListBookings(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list bookings for export")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Bookings"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "User", "Category", "Date", "Start", "End", "Booked At"}
	for i, col := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, b := range bookings {
		row := []any{b.ID, b.Username, "", "", "", "", b.BookedAt.Format(time.RFC3339)}
		if b.Slot != nil {
			row[2] = b.Slot.CategoryName
			row[3] = b.Slot.StartTime.Format("2006-01-02")
			row[4] = b.Slot.StartTime.Format("15:04")
			row[5] = b.Slot.EndTime.Format("15:04")
		}
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, val)
		}
	}

	filename := "bookings_" + time.Now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("write xlsx export")
	}
}
