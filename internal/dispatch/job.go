// Package dispatch queues print jobs and drives them through per-printer
// workers. Each printer gets its own goroutine so a stalled device never
// blocks labels headed elsewhere.
package dispatch

import (
	"time"

	"github.com/mn-ibiz/label-daemon/internal/label"
)

// JobStatus is the aggregate status of a print job.
type JobStatus string

const (
	JobQueued          JobStatus = "queued"
	JobInProgress      JobStatus = "in_progress"
	JobCompleted       JobStatus = "completed"
	JobPartiallyFailed JobStatus = "partially_failed"
	JobFailed          JobStatus = "failed"
)

// Terminal reports whether the job will never change status again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobPartiallyFailed || s == JobFailed
}

// ItemStatus is the lifecycle of one label within a job.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemSent      ItemStatus = "sent"
	ItemConfirmed ItemStatus = "confirmed"
	ItemFailed    ItemStatus = "failed"
	ItemCancelled ItemStatus = "cancelled"
)

func (s ItemStatus) terminal() bool {
	return s == ItemConfirmed || s == ItemFailed || s == ItemCancelled
}

// Item is one label to print: which printer, which template, and the
// record whose values fill the template's placeholders.
type Item struct {
	Index      int          `json:"index"`
	PrinterID  string       `json:"printer_id"`
	TemplateID string       `json:"template_id"`
	Record     label.Record `json:"record"`
	Copies     int          `json:"copies"`
	Status     ItemStatus   `json:"status"`
	Attempts   int          `json:"attempts,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Job is a batch of items submitted together. Items may target different
// printers; the job finishes when every item reaches a terminal status.
type Job struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id,omitempty"`
	Status    JobStatus `json:"status"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// deriveStatus computes the aggregate job status from item states. While any
// item is still pending or sent the job is in progress; once all items are
// terminal the job is completed only if every item confirmed, failed only if
// none did, and partially failed otherwise.
func deriveStatus(items []Item) JobStatus {
	pending, confirmed, open := 0, 0, 0
	for i := range items {
		switch {
		case !items[i].Status.terminal():
			open++
			if items[i].Status == ItemPending {
				pending++
			}
		case items[i].Status == ItemConfirmed:
			confirmed++
		}
	}
	switch {
	case pending == len(items):
		return JobQueued
	case open > 0:
		return JobInProgress
	case confirmed == len(items):
		return JobCompleted
	case confirmed == 0:
		return JobFailed
	default:
		return JobPartiallyFailed
	}
}
