// Package csvio reads transaction records from CSV and writes account snapshots back out.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"payments-engine/ledger"
	"payments-engine/model"
)

// Column names expected in the header row.
const (
	colType   = "type"
	colClient = "client"
	colTx     = "tx"
	colAmount = "amount"
)

// Reader parses transactions from CSV. It implements ledger.Source.
//
// Fields are trimmed, rows may omit trailing columns, and column order is
// taken from the header. A row that cannot be parsed yields an error
// wrapping ledger.ErrMalformedInput and reading continues with the next row.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{csv: cr}
}

func (r *Reader) readHeader() error {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(record))
	for i, name := range record {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colType, colClient, colTx} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("read header: missing column %q", required)
		}
	}
	r.columns = columns
	return nil
}

// Next returns the next transaction, or io.EOF at the end of input.
func (r *Reader) Next() (model.Transaction, error) {
	if r.columns == nil {
		if err := r.readHeader(); err != nil {
			return model.Transaction{}, err
		}
	}

	record, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return model.Transaction{}, fmt.Errorf("%w: %v", ledger.ErrMalformedInput, parseErr)
		}
		return model.Transaction{}, err
	}

	line, _ := r.csv.FieldPos(0)
	tx, err := r.parse(record)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: line %d: %v", ledger.ErrMalformedInput, line, err)
	}
	return tx, nil
}

func (r *Reader) field(record []string, name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (r *Reader) parse(record []string) (model.Transaction, error) {
	var tx model.Transaction

	typ, err := model.ParseTransactionType(r.field(record, colType))
	if err != nil {
		return tx, err
	}
	tx.Type = typ

	client, err := strconv.ParseUint(r.field(record, colClient), 10, 16)
	if err != nil {
		return tx, fmt.Errorf("client: %w", err)
	}
	tx.ClientID = uint16(client)

	id, err := strconv.ParseUint(r.field(record, colTx), 10, 32)
	if err != nil {
		return tx, fmt.Errorf("tx: %w", err)
	}
	tx.TxID = uint32(id)

	if !typ.CarriesAmount() {
		return tx, nil
	}
	raw := r.field(record, colAmount)
	if raw == "" {
		return tx, fmt.Errorf("amount is required for %s", typ)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return tx, fmt.Errorf("amount: %w", err)
	}
	tx.Amount = decimal.NewNullDecimal(amount)
	return tx, nil
}
