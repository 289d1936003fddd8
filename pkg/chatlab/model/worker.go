package model

// WorkerRequest is the transport-agnostic request envelope.
type WorkerRequest struct {
	ID      string         `json:"id"`
	Op      string         `json:"op"`
	Payload map[string]any `json:"payload"`
}

// WorkerResponse is the transport-agnostic response envelope.
type WorkerResponse struct {
	ID     string       `json:"id"`
	OK     bool         `json:"ok"`
	Result any          `json:"result,omitempty"`
	Error  *WorkerError `json:"error,omitempty"`
}

// WorkerError mirrors chatlaberrors.Error on the wire without importing it
// here, keeping model dependency-free for other packages to embed.
type WorkerError struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`
}

// Diagnosis is returned by the sniffer when no format matches a file.
type Diagnosis struct {
	Suggestion     string         `json:"suggestion"`
	PartialMatches []PartialMatch `json:"partialMatches"`
}

// PartialMatch names a format that satisfied at least one signature.
type PartialMatch struct {
	FormatName    string   `json:"formatName"`
	MissingFields []string `json:"missingFields"`
}

// ProgressStage is the stage label carried by a ProgressEvent.
type ProgressStage string

const (
	StageDetect     ProgressStage = "detect"
	StagePreprocess ProgressStage = "preprocess"
	StageParse      ProgressStage = "parse"
	StageImport     ProgressStage = "import"
	StageIndex      ProgressStage = "index"
	StageMerge      ProgressStage = "merge"
	StageDone       ProgressStage = "done"
	StageError      ProgressStage = "error"
	StageStop       ProgressStage = "stop"
)

// Progress is the progress payload posted for long-running requests.
type Progress struct {
	Stage             ProgressStage `json:"stage"`
	BytesRead         int64         `json:"bytesRead"`
	TotalBytes        int64         `json:"totalBytes"`
	MessagesProcessed int64         `json:"messagesProcessed"`
	MessagesDropped   int64         `json:"messagesDropped,omitempty"`
	Percentage        int           `json:"percentage"`
	Message           string        `json:"message,omitempty"`
}

// ProgressEvent wraps Progress with the request id it belongs to.
type ProgressEvent struct {
	ID       string   `json:"id"`
	Progress Progress `json:"progress"`
}

// ComputePercentage is min(100, round(100*read/total)).
func ComputePercentage(bytesRead, totalBytes int64) int {
	if totalBytes <= 0 {
		return 0
	}
	pct := (bytesRead*100 + totalBytes/2) / totalBytes
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return int(pct)
}
