package ir

// FileContent distinguishes data files from delete files.
type FileContent string

const (
	ContentData            FileContent = "data"
	ContentEqualityDeletes FileContent = "equality_deletes"
)

// DataFile describes one closed output file as reported by a file writer
// backend. The on-disk encoding is owned by the backend; this is only the
// handle the commit layer needs.
type DataFile struct {
	ID               string       `json:"id"`
	TaskID           string       `json:"task_id"`
	Partition        PartitionKey `json:"-"`
	PartitionPath    string       `json:"partition"`
	Content          FileContent  `json:"content"`
	EqualityFieldIDs []int        `json:"equality_ids,omitempty"`
	RecordCount      int64        `json:"record_count"`
	Digest           string       `json:"digest"`
}
