package model

// IngestOutcome classifies what happened to a single source during an
// ingestion run.
type IngestOutcome string

const (
	IngestNew       IngestOutcome = "new"
	IngestChanged   IngestOutcome = "changed"
	IngestUnchanged IngestOutcome = "unchanged"
	IngestError     IngestOutcome = "error"
)

// IngestReport aggregates per-source outcomes over a directory run.
type IngestReport struct {
	NewFiles       int `json:"new_files"`
	ChangedFiles   int `json:"changed_files"`
	UnchangedFiles int `json:"unchanged_files"`
	ErrorFiles     int `json:"error_files"`
	ChunksWritten  int `json:"chunks_written"`
}

func (r *IngestReport) Record(outcome IngestOutcome) {
	switch outcome {
	case IngestNew:
		r.NewFiles++
	case IngestChanged:
		r.ChangedFiles++
	case IngestUnchanged:
		r.UnchangedFiles++
	case IngestError:
		r.ErrorFiles++
	}
}
