package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("analysis run not found")

const valueBatchSize = 500

// SaveRun stores a run and its result values in one transaction. A zero run
// ID is replaced with a new random UUID.
func (c *Client) SaveRun(ctx context.Context, run *AnalysisRun, values []ResultValue) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("error saving run %s: %w", run.ID, err)
		}
		if len(values) == 0 {
			return nil
		}
		for i := range values {
			values[i].RunID = run.ID
		}
		if err := tx.CreateInBatches(values, valueBatchSize).Error; err != nil {
			return fmt.Errorf("error saving values of run %s: %w", run.ID, err)
		}
		return nil
	})
}

// GetRun fetches a run by id
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*AnalysisRun, error) {
	var run AnalysisRun
	err := c.DB.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first. An empty dataset
// lists runs of every dataset.
func (c *Client) ListRuns(ctx context.Context, dataset string, limit int) ([]AnalysisRun, error) {
	q := c.DB.WithContext(ctx).Order("created_at DESC")
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []AnalysisRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	return runs, nil
}

// RunValues returns the stored result values of a run in table order
func (c *Client) RunValues(ctx context.Context, id uuid.UUID) ([]ResultValue, error) {
	var values []ResultValue
	err := c.DB.WithContext(ctx).Where("run_id = ?", id).Order("row_index, id").Find(&values).Error
	if err != nil {
		return nil, fmt.Errorf("error querying values of run %s: %w", id, err)
	}
	return values, nil
}

// DeleteRun removes a run and its values
func (c *Client) DeleteRun(ctx context.Context, id uuid.UUID) error {
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&ResultValue{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&AnalysisRun{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}
