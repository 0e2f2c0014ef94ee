package zonal

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// DateLayout formats the date column
const DateLayout = "2006-01-02"

// Row is one line of a statistics table. Statistics with no data are NaN and
// marshal to JSON null.
type Row struct {
	Time   time.Time          `json:"time"`
	Date   string             `json:"date,omitempty"`
	Values map[string]float64 `json:"values"`
}

// Get returns a column value, NaN when absent
func (r Row) Get(column string) float64 {
	if v, ok := r.Values[column]; ok {
		return v
	}
	return math.NaN()
}

type jsonRow struct {
	Time   time.Time           `json:"time"`
	Date   string              `json:"date,omitempty"`
	Values map[string]*float64 `json:"values"`
}

// MarshalJSON encodes NaN and infinite values as null
func (r Row) MarshalJSON() ([]byte, error) {
	out := jsonRow{Time: r.Time, Date: r.Date, Values: make(map[string]*float64, len(r.Values))}
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out.Values[k] = nil
			continue
		}
		v := v
		out.Values[k] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null values back to NaN
func (r *Row) UnmarshalJSON(data []byte) error {
	var in jsonRow
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Time, r.Date = in.Time, in.Date
	r.Values = make(map[string]float64, len(in.Values))
	for k, v := range in.Values {
		if v == nil {
			r.Values[k] = math.NaN()
			continue
		}
		r.Values[k] = *v
	}
	return nil
}

// Table is an ordered set of rows sharing the same columns
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Column returns every row's value for a column
func (t *Table) Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Get(name)
	}
	return out
}

// WriteCSV writes the table with a leading date column. NaN cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, r := range t.Rows {
		record[0] = r.Date
		for i, c := range t.Columns {
			v := r.Get(c)
			if math.IsNaN(v) {
				record[i+1] = ""
				continue
			}
			record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the table rendered by WriteCSV
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
