package migrate

// Report describes a run, complete or not.
type Report struct {
	RunID       string             `json:"run_id"`
	DryRun      bool               `json:"dry_run"`
	Collections []CollectionResult `json:"collections"`
}

// CollectionResult is the outcome of one processed collection.
type CollectionResult struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	// RowsAffected is what the destination reported for the INSERT. It is
	// zero under dry run.
	RowsAffected int64 `json:"rows_affected"`
}

// TotalDocuments sums documents across processed collections.
func (r *Report) TotalDocuments() int {
	total := 0
	for _, c := range r.Collections {
		total += c.Documents
	}
	return total
}
