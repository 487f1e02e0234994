// Package store persists print jobs in a local SQLite database so pending
// work and the completed history survive restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// InterruptedReason is recorded on jobs that were printing when the
// process stopped.
const InterruptedReason = "interrupted"

// JobRecord is one print attempt. A job printed again after reaching a
// terminal status gets a new row with the next attempt number.
type JobRecord struct {
	ID          uint   `gorm:"primaryKey"`
	JobID       string `gorm:"uniqueIndex:idx_job_attempt,priority:1;size:128"`
	Attempt     int    `gorm:"uniqueIndex:idx_job_attempt,priority:2"`
	OrderNumber string `gorm:"index;size:128"`
	Source      string `gorm:"size:16"`
	Status      string `gorm:"index;size:16"`
	Payload     string
	Error       string
	EnqueuedAt  time.Time
	PrintedAt   *time.Time
	UpdatedAt   time.Time
}

// History manages the job database.
type History struct {
	db     *gorm.DB
	dbPath string
}

// Open creates the database file and its tables if needed.
func Open(dbPath string) (*History, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to job database: %w", err)
	}
	// Databases from before attempts were tracked have a unique index on job_id alone.
	if db.Migrator().HasIndex(&JobRecord{}, "idx_job_records_job_id") {
		if err := db.Migrator().DropIndex(&JobRecord{}, "idx_job_records_job_id"); err != nil {
			return nil, fmt.Errorf("failed to drop legacy index: %w", err)
		}
	}
	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &History{db: db, dbPath: dbPath}, nil
}

func toRecord(job model.PrintJob) (JobRecord, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return JobRecord{}, err
	}
	return JobRecord{
		JobID:       job.JobID,
		Attempt:     job.Attempt,
		OrderNumber: job.SourceOrderNumber,
		Source:      job.Source,
		Status:      string(job.Status),
		Payload:     string(payload),
		Error:       job.Error,
		EnqueuedAt:  job.EnqueuedAt,
		PrintedAt:   job.PrintedAt,
	}, nil
}

func (r JobRecord) toJob() (model.PrintJob, error) {
	job := model.PrintJob{
		JobID:             r.JobID,
		Attempt:           r.Attempt,
		SourceOrderNumber: r.OrderNumber,
		Source:            r.Source,
		Status:            model.JobStatus(r.Status),
		Error:             r.Error,
		EnqueuedAt:        r.EnqueuedAt,
		PrintedAt:         r.PrintedAt,
	}
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &job.Payload); err != nil {
			return job, fmt.Errorf("job %s: corrupt payload: %w", r.JobID, err)
		}
	}
	return job, nil
}

func toJobs(records []JobRecord) ([]model.PrintJob, error) {
	jobs := make([]model.PrintJob, 0, len(records))
	for _, r := range records {
		job, err := r.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Save records a state change of job. The newest attempt of the job id is
// updated while it is unfinished; once it is terminal it is never rewritten,
// and a new pending or printing state starts the next attempt.
func (h *History) Save(job model.PrintJob) error {
	rec, err := toRecord(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.JobID, err)
	}
	return h.db.Transaction(func(tx *gorm.DB) error {
		var last JobRecord
		if err := tx.Where("job_id = ?", job.JobID).Order("attempt DESC").Limit(1).Find(&last).Error; err != nil {
			return err
		}
		switch {
		case last.ID == 0:
			rec.Attempt = 1
			return tx.Create(&rec).Error
		case model.JobStatus(last.Status).Terminal():
			if job.Status.Terminal() {
				return nil
			}
			rec.Attempt = last.Attempt + 1
			return tx.Create(&rec).Error
		}
		rec.ID = last.ID
		rec.Attempt = last.Attempt
		return tx.Model(&last).
			Select("order_number", "source", "status", "payload", "error", "enqueued_at", "printed_at").
			Updates(&rec).Error
	})
}

// Delete removes the unfinished attempt of a job. Terminal attempts stay.
func (h *History) Delete(jobID string) error {
	return h.db.Where("job_id = ? AND status IN ?", jobID, []string{string(model.JobPending), string(model.JobPrinting)}).
		Delete(&JobRecord{}).Error
}

// Get returns the newest attempt of a job.
func (h *History) Get(jobID string) (model.PrintJob, error) {
	var rec JobRecord
	if err := h.db.Where("job_id = ?", jobID).Order("attempt DESC").First(&rec).Error; err != nil {
		return model.PrintJob{}, err
	}
	return rec.toJob()
}

// Attempts returns every attempt of a job, oldest first.
func (h *History) Attempts(jobID string) ([]model.PrintJob, error) {
	var records []JobRecord
	if err := h.db.Where("job_id = ?", jobID).Order("attempt ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return toJobs(records)
}

// Recent returns up to limit terminal jobs, oldest first.
func (h *History) Recent(limit int) ([]model.PrintJob, error) {
	var records []JobRecord
	err := h.db.Where("status IN ?", []string{string(model.JobPrinted), string(model.JobFailed)}).
		Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return toJobs(records)
}

// Unfinished returns pending and printing jobs in enqueue order.
func (h *History) Unfinished() ([]model.PrintJob, error) {
	var records []JobRecord
	err := h.db.Where("status IN ?", []string{string(model.JobPending), string(model.JobPrinting)}).
		Order("enqueued_at ASC, id ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toJobs(records)
}

// Recover prepares the table after a restart: jobs caught mid-print are
// marked failed. It returns the pending jobs to queue again and the jobs
// it failed.
func (h *History) Recover() (pending, interrupted []model.PrintJob, err error) {
	jobs, err := h.Unfinished()
	if err != nil {
		return nil, nil, err
	}
	for _, job := range jobs {
		if job.Status == model.JobPending {
			pending = append(pending, job)
			continue
		}
		job.Status = model.JobFailed
		job.Error = InterruptedReason
		if err := h.Save(job); err != nil {
			return nil, nil, err
		}
		interrupted = append(interrupted, job)
	}
	return pending, interrupted, nil
}

// Prune keeps the newest keep terminal jobs and deletes the rest.
func (h *History) Prune(keep int) (int64, error) {
	var ids []uint
	err := h.db.Model(&JobRecord{}).
		Where("status IN ?", []string{string(model.JobPrinted), string(model.JobFailed)}).
		Order("id DESC").Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) <= keep {
		return 0, nil
	}
	res := h.db.Where("id IN ?", ids[keep:]).Delete(&JobRecord{})
	return res.RowsAffected, res.Error
}

func (h *History) Path() string { return h.dbPath }

func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
