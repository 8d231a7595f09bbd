package library

import "fmt"

// DatasetState is the ingestion state of a dataset.
//
//	new -> uploading -> processing -> ok
//	  \________\____________\-----> error
type DatasetState string

const (
	StateNew        DatasetState = "new"
	StateUploading  DatasetState = "uploading"
	StateProcessing DatasetState = "processing"
	StateOK         DatasetState = "ok"
	StateError      DatasetState = "error"
)

// IsTerminal reports whether no further transitions can occur.
func (s DatasetState) IsTerminal() bool {
	return s == StateOK || s == StateError
}

// Valid reports whether s is one of the known states.
func (s DatasetState) Valid() bool {
	switch s {
	case StateNew, StateUploading, StateProcessing, StateOK, StateError:
		return true
	}
	return false
}

// Event is reported to the ingestion pipeline by the storage and job backends.
// The concrete types below form a closed set.
type Event interface {
	eventName() string
}

// UploadStarted moves a freshly created dataset into uploading.
type UploadStarted struct{}

// UploadCompleted is reported once the bytes are persisted.
type UploadCompleted struct {
	StorageRef string
	Size       int64
}

// AnalysisCompleted is reported by the job backend with derived metadata.
type AnalysisCompleted struct {
	Peek     string
	DataType string
	FileExt  string
}

// Failed moves any non-terminal dataset into the error state.
type Failed struct {
	Detail string
}

func (UploadStarted) eventName() string     { return "upload_started" }
func (UploadCompleted) eventName() string   { return "upload_completed" }
func (AnalysisCompleted) eventName() string { return "analysis_completed" }
func (Failed) eventName() string            { return "failed" }

// EventName returns a stable name for logging.
func EventName(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return e.eventName()
}

// TransitionError reports an event that does not apply to the current state.
type TransitionError struct {
	From  DatasetState
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s not allowed in state %s", e.Event, e.From)
}

// Transition computes the state reached by applying e in state from.
// Terminal states absorb every event (changed=false, no error) so repeated
// reports from the job backend are harmless. Events that would skip or
// regress a state return a *TransitionError.
func Transition(from DatasetState, e Event) (to DatasetState, changed bool, err error) {
	if from.IsTerminal() {
		return from, false, nil
	}

	switch e.(type) {
	case Failed:
		return StateError, true, nil
	case UploadStarted:
		if from == StateNew {
			return StateUploading, true, nil
		}
	case UploadCompleted:
		if from == StateUploading {
			return StateProcessing, true, nil
		}
	case AnalysisCompleted:
		if from == StateProcessing {
			return StateOK, true, nil
		}
	}

	return from, false, &TransitionError{From: from, Event: EventName(e)}
}

// Apply returns a copy of d with the transition for e applied, including
// the event's payload. It does not touch timestamps.
func Apply(d Dataset, e Event) (Dataset, bool, error) {
	to, changed, err := Transition(d.State, e)
	if err != nil || !changed {
		return d, false, err
	}

	d.State = to
	switch ev := e.(type) {
	case UploadCompleted:
		d.StorageRef = ev.StorageRef
		d.FileSize = ev.Size
	case AnalysisCompleted:
		d.Peek = ev.Peek
		d.DataType = ev.DataType
		if ev.FileExt != "" {
			d.FileExt = ev.FileExt
		}
	case Failed:
		detail := ev.Detail
		if detail == "" {
			detail = "unknown error"
		}
		d.Error = &detail
	}
	return d, true, nil
}
