package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/xuri/excelize/v2"
)

const exportPageSize = 500

var reservationExportColumns = []string{
	"Reference", "Status", "Source", "Room", "Check-in", "Check-out", "Nights",
	"Guest", "Email", "Phone", "Adults", "Children", "Total", "Paid", "Balance",
	"Special requests", "Admin notes", "Created at",
}

// ExportService renders reservation listings as spreadsheets
type ExportService struct {
	rooms        RoomStore
	reservations ReservationStore
}

// NewExportService creates a new export service
func NewExportService(rooms RoomStore, reservations ReservationStore) *ExportService {
	return &ExportService{rooms: rooms, reservations: reservations}
}

// WriteReservationsXLSX writes every reservation matching filter to w as an
// XLSX workbook. filter.Limit and filter.Offset are ignored.
func (s *ExportService) WriteReservationsXLSX(ctx context.Context, w io.Writer, filter models.ReservationFilter) (int, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return 0, err
	}
	roomNames := make(map[uuid.UUID]string, len(rooms))
	for _, room := range rooms {
		roomNames[room.ID] = room.Name
	}

	file := excelize.NewFile()
	defer file.Close()

	sheet := "Reservations"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	if err := writeExportRow(file, sheet, row, toCells(reservationExportColumns)); err != nil {
		return 0, err
	}
	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(reservationExportColumns), 1)
		_ = file.SetCellStyle(sheet, "A1", endCell, style)
	}
	_ = file.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	var total, paid float64
	count := 0
	filter.Limit = exportPageSize
	filter.Offset = 0
	for {
		page, matched, err := s.reservations.List(ctx, filter)
		if err != nil {
			return 0, err
		}
		for i := range page {
			res := &page[i]
			row++
			if err := writeExportRow(file, sheet, row, reservationCells(res, roomNames[res.RoomID])); err != nil {
				return 0, err
			}
			total += res.TotalAmount
			paid += res.PaidAmount
			count++
		}
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= matched {
			break
		}
	}

	row += 2
	totals := make([]interface{}, len(reservationExportColumns))
	totals[0] = fmt.Sprintf("%d reservations", count)
	totals[12] = roundAmount(total)
	totals[13] = roundAmount(paid)
	totals[14] = roundAmount(total - paid)
	if err := writeExportRow(file, sheet, row, totals); err != nil {
		return 0, err
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return count, nil
}

func reservationCells(res *models.Reservation, roomName string) []interface{} {
	return []interface{}{
		res.Reference,
		string(res.Status),
		string(res.Source),
		roomName,
		res.CheckIn.String(),
		res.CheckOut.String(),
		res.Nights(),
		res.GuestName,
		res.GuestEmail,
		stringOrEmpty(res.GuestPhone),
		res.AdultsCount,
		res.ChildrenCount,
		res.TotalAmount,
		res.PaidAmount,
		roundAmount(res.BalanceDue()),
		stringOrEmpty(res.SpecialRequests),
		stringOrEmpty(res.AdminNotes),
		res.CreatedAt.UTC().Format("2006-01-02 15:04"),
	}
}

func writeExportRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	for i, val := range values {
		if val == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
