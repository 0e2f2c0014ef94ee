package database

import (
	"math"
	"time"

	"github.com/chrissnell/statgis/pkg/zonal"
	"github.com/google/uuid"
)

// AnalysisRun is one executed analysis request and its encoded result
type AnalysisRun struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id" json:"id"`
	Dataset    string    `gorm:"column:dataset;not null" json:"dataset"`
	Kind       string    `gorm:"column:kind;not null" json:"kind"`
	Request    string    `gorm:"column:request;not null" json:"-"`
	Result     string    `gorm:"column:result;not null" json:"-"`
	DurationMS int64     `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for AnalysisRun
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// ResultValue is one cell of a run's result table in long format. A nil
// Value is a statistic with no data.
type ResultValue struct {
	ID       int64      `gorm:"primaryKey;autoIncrement;column:id" json:"-"`
	RunID    uuid.UUID  `gorm:"column:run_id;not null" json:"-"`
	RowIndex int        `gorm:"column:row_index" json:"row"`
	Time     *time.Time `gorm:"column:time" json:"time,omitempty"`
	Name     string     `gorm:"column:name;not null" json:"name"`
	Value    *float64   `gorm:"column:value" json:"value"`
}

// TableName specifies the table name for ResultValue
func (ResultValue) TableName() string {
	return "result_values"
}

// ValuesFromTable flattens a statistics table into result values
func ValuesFromTable(t *zonal.Table) []ResultValue {
	out := make([]ResultValue, 0, len(t.Rows)*len(t.Columns))
	for i, row := range t.Rows {
		var at *time.Time
		if !row.Time.IsZero() {
			ts := row.Time.UTC()
			at = &ts
		}
		for _, c := range t.Columns {
			rv := ResultValue{RowIndex: i, Time: at, Name: c}
			if v := row.Get(c); !math.IsNaN(v) && !math.IsInf(v, 0) {
				rv.Value = &v
			}
			out = append(out, rv)
		}
	}
	return out
}
