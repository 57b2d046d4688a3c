// Package statement writes and reads the CSV account statement served by
// /transactions/download.
package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/ledger/internal/storage"
)

// Header is the first record of every statement.
var Header = []string{"Type", "Amount", "Time", "Description"}

// TimeLayout is the timestamp encoding used in the Time column.
const TimeLayout = time.RFC3339Nano

// Row is one statement line.
type Row struct {
	Type        storage.TxType
	Amount      int64
	Time        time.Time
	Description string
}

// FromTransactions converts log rows to statement rows, keeping their order.
func FromTransactions(txs []storage.Transaction) []Row {
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = Row{Type: tx.Type, Amount: tx.Amount, Time: tx.Timestamp, Description: tx.Description}
	}
	return rows
}

// Write emits the header followed by rows in the given order.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			string(r.Type),
			strconv.FormatInt(r.Amount, 10),
			r.Time.UTC().Format(TimeLayout),
			r.Description,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Parse reads a statement produced by Write.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty statement")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !strings.EqualFold(strings.Join(head, ","), strings.Join(Header, ",")) {
		return nil, fmt.Errorf("unexpected header %q", head)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		typ := storage.TxType(rec[0])
		if !typ.Valid() {
			return nil, fmt.Errorf("line %d: invalid type %q", line, rec[0])
		}
		amount, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to parse amount: %w", line, err)
		}
		if amount <= 0 {
			return nil, fmt.Errorf("line %d: amount must be positive, got %d", line, amount)
		}
		at, err := time.Parse(TimeLayout, rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to parse time: %w", line, err)
		}
		rows = append(rows, Row{Type: typ, Amount: amount, Time: at, Description: rec[3]})
	}
	return rows, nil
}
