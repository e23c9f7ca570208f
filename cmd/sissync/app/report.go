package app

import (
	"strconv"

	"github.com/agentstation/sissync"
	"github.com/agentstation/sissync/internal/output"
)

type entityReport struct {
	Entity    string `json:"entity" yaml:"entity"`
	Reference bool   `json:"reference,omitempty" yaml:"reference,omitempty"`
	Created   int    `json:"created" yaml:"created"`
	Updated   int    `json:"updated" yaml:"updated"`
	Deleted   int    `json:"deleted" yaml:"deleted"`
	Rejected  int    `json:"rejected" yaml:"rejected"`
	Invalid   int    `json:"invalid" yaml:"invalid"`
	Duration  string `json:"duration" yaml:"duration"`
}

type syncReport struct {
	CorrelationID string         `json:"correlation_id" yaml:"correlation_id"`
	DryRun        bool           `json:"dry_run" yaml:"dry_run"`
	Entities      []entityReport `json:"entities" yaml:"entities"`
	Created       int            `json:"created" yaml:"created"`
	Updated       int            `json:"updated" yaml:"updated"`
	Deleted       int            `json:"deleted" yaml:"deleted"`
	Duration      string         `json:"duration" yaml:"duration"`
}

func newSyncReport(r *sissync.Result) syncReport {
	report := syncReport{
		CorrelationID: r.CorrelationID,
		DryRun:        r.DryRun,
		Entities:      make([]entityReport, 0, len(r.Entities)),
		Duration:      r.Duration.String(),
	}
	report.Created, report.Updated, report.Deleted = r.Totals()
	for _, e := range r.Entities {
		report.Entities = append(report.Entities, entityReport{
			Entity:    e.Entity,
			Reference: e.Reference,
			Created:   e.Created,
			Updated:   e.Updated,
			Deleted:   e.Deleted,
			Rejected:  len(e.Rejected),
			Invalid:   e.Local.Skipped,
			Duration:  e.Duration.String(),
		})
	}
	return report
}

// Table implements output.Tabular.
func (r syncReport) Table() output.Data {
	right := output.AlignRight
	data := output.Data{
		Headers:         []string{"Entity", "Created", "Updated", "Deleted", "Rejected", "Invalid"},
		ColumnAlignment: []output.Align{output.AlignLeft, right, right, right, right, right},
	}
	for _, e := range r.Entities {
		data.Rows = append(data.Rows, []string{
			e.Entity,
			strconv.Itoa(e.Created),
			strconv.Itoa(e.Updated),
			strconv.Itoa(e.Deleted),
			strconv.Itoa(e.Rejected),
			strconv.Itoa(e.Invalid),
		})
	}
	total := "total"
	if r.DryRun {
		total = "total (dry run)"
	}
	data.Footer = []string{total, strconv.Itoa(r.Created), strconv.Itoa(r.Updated), strconv.Itoa(r.Deleted), "", ""}
	return data
}
