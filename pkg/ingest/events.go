package ingest

import (
	"errors"
	"fmt"
)

// Step names an ingest stage
type Step string

const (
	StepCloning   Step = "cloning"
	StepScanning  Step = "scanning"
	StepEmbedding Step = "embedding"
	StepGraphing  Step = "graphing"
	StepAnalyzing Step = "analyzing"
	StepPathing   Step = "pathing"
)

// Event names on the progress stream
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// Event is one notification of an ingest run. A stream carries any number
// of progress events followed by exactly one done or error event.
type Event struct {
	Name    string
	Step    Step    // progress only
	Message string  // progress and error
	Result  *Result // done only
}

// Result summarizes a completed ingest
type Result struct {
	RepoID string `json:"repo_id"`
	Files  int    `json:"files"`
	Chunks int    `json:"chunks"`
	Cached bool   `json:"cached,omitempty"`
}

type progressPayload struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Payload is the JSON body sent with the event
func (e Event) Payload() any {
	switch e.Name {
	case EventProgress:
		return progressPayload{Step: e.Step, Message: e.Message}
	case EventDone:
		return e.Result
	default:
		return errorPayload{Message: e.Message}
	}
}

// Terminal reports whether e ends the stream
func (e Event) Terminal() bool {
	return e.Name == EventDone || e.Name == EventError
}

// StageError is a failure that aborted the pipeline at Step
type StageError struct {
	Step Step
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wait drains a stream and returns its outcome. progress, when non-nil, is
// called for every progress event.
func Wait(events <-chan Event, progress func(Event)) (*Result, error) {
	for ev := range events {
		switch ev.Name {
		case EventProgress:
			if progress != nil {
				progress(ev)
			}
		case EventDone:
			return ev.Result, nil
		case EventError:
			return nil, errors.New(ev.Message)
		}
	}
	return nil, errors.New("ingest stream closed without a result")
}
