package queue

// ImportTask asks a worker to process one staged batch. The records are
// already in the staging table when the task is published; the task only
// carries the log id and the column mapping chosen by the operator.
type ImportTask struct {
	ImportLogID int64             `json:"import_log_id"`
	Mapping     map[string]string `json:"mapping"`
}
