package domain

import (
	"fmt"
	"strconv"
)

// Carriage geometry. Every carriage sells an 18-row grid with five seats per
// row labelled A B C D F; there is no column E on rail stock.
const (
	CarriageRows    = 18
	CarriageColumns = 5
)

var seatColumnLetters = [CarriageColumns]byte{'A', 'B', 'C', 'D', 'F'}

var seatColumnIndex = map[byte]int{'A': 0, 'B': 1, 'C': 2, 'D': 3, 'F': 4}

type VehicleType string

type SeatClass string

const (
	VehicleHighSpeed VehicleType = "HIGH_SPEED"

	SeatClassBusiness SeatClass = "BUSINESS"
	SeatClassFirst    SeatClass = "FIRST"
	SeatClassSecond   SeatClass = "SECOND"
)

// SeatCoordinate addresses a single seat inside a carriage. Row and Col are
// zero-based; display labels are one-based ("01A" is row 0, col 0).
type SeatCoordinate struct {
	Row int
	Col int
}

// Label renders the coordinate as a seat number. Rows 1..9 are zero-padded
// to two digits, rows 10..18 are not.
func (s SeatCoordinate) Label() string {
	row := s.Row + 1
	if row <= 9 {
		return fmt.Sprintf("0%d%c", row, seatColumnLetters[s.Col])
	}
	return fmt.Sprintf("%d%c", row, seatColumnLetters[s.Col])
}

// ParseSeatLabel is the inverse of Label.
func ParseSeatLabel(label string) (SeatCoordinate, error) {
	if len(label) < 2 {
		return SeatCoordinate{}, fmt.Errorf("seat label %q too short", label)
	}
	colLetter := label[len(label)-1]
	col, ok := seatColumnIndex[colLetter]
	if !ok {
		return SeatCoordinate{}, fmt.Errorf("seat label %q: unknown column %q", label, string(colLetter))
	}
	row, err := strconv.Atoi(label[:len(label)-1])
	if err != nil {
		return SeatCoordinate{}, fmt.Errorf("seat label %q: bad row: %w", label, err)
	}
	if row < 1 || row > CarriageRows {
		return SeatCoordinate{}, fmt.Errorf("seat label %q: row %d out of range", label, row)
	}
	return SeatCoordinate{Row: row - 1, Col: col}, nil
}

// PassengerSeatRequest is one passenger's slot in a purchase.
type PassengerSeatRequest struct {
	PassengerID string    `json:"passenger_id"`
	SeatClass   SeatClass `json:"seat_class"`
}

// SeatAssignment is the outcome for one passenger.
type SeatAssignment struct {
	PassengerID string    `json:"passenger_id"`
	SeatClass   SeatClass `json:"seat_class"`
	Carriage    string    `json:"carriage"`
	SeatNumber  string    `json:"seat_number"`
}
