package pipeline

import (
	"encoding/json"
	"fmt"
	"log"

	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/pkg/events"
)

// FinalResult is the hand-off to the query service once the stream completes.
// Streamed content and citation checks win over the completion event's bulk
// fields when both are present.
type FinalResult struct {
	Content        string
	Sources        []entity.Source
	QueryType      string
	ExpandedQuery  string
	RetrievalCount int
	RerankedCount  int
	Warnings       []string
	CitationChecks []entity.CitationCheck
}

// Interpreter consumes the query event stream and maintains the visible step
// list. The remote pipeline may skip stages and does not guarantee an event
// per stage, so an event for step k resolves every earlier step that never
// reported: forward-inference from the next-seen stage.
type Interpreter struct {
	session *Session
	logger  *log.Logger

	// steps seen as at/past-completion
	resolved map[string]bool
	// most recent decoded payload per step, for the skipped flag
	lastData map[string]*events.StepData
}

func NewInterpreter(session *Session, logger *log.Logger) *Interpreter {
	return &Interpreter{
		session:  session,
		logger:   logger,
		resolved: make(map[string]bool),
		lastData: make(map[string]*events.StepData),
	}
}

// Apply processes one stream event. It returns a non-nil FinalResult exactly
// once, on the complete event, and an error on an error event.
func (i *Interpreter) Apply(ev events.QueryEvent) (*FinalResult, error) {
	switch ev.Type {
	case events.QueryEventProgress:
		i.applyProgress(ev)
		return nil, nil

	case events.QueryEventComplete:
		return i.finalize(ev), nil

	case events.QueryEventError:
		i.session.IsStreaming = false
		return nil, fmt.Errorf("query stream failed: %s", ev.Message)

	default:
		i.logger.Printf("[INTERPRETER] Ignoring unknown event type: %s", ev.Type)
		return nil, nil
	}
}

func (i *Interpreter) applyProgress(ev events.QueryEvent) {
	data := decodeStepData(ev.Data)

	switch ev.Step {
	case StepAnswerChunk:
		if data != nil && data.Chunk != "" {
			i.session.AppendChunk(data.Chunk)
		}
		return

	case StepCitationVerified:
		if data != nil && data.Citation != nil {
			i.session.AppendCitationCheck(toCitationCheck(*data.Citation))
		}
		return

	case StepAnswerComplete:
		// content already tracked chunk by chunk
		return

	case StepWebSearchProgress:
		if data != nil && data.Message != "" {
			i.session.WebSearchProgress = data.Message
		}
		return
	}

	idx := Ordinal(ev.Step)
	if idx < 0 {
		i.logger.Printf("[INTERPRETER] Ignoring unknown step: %s", ev.Step)
		return
	}

	if ev.Step == StepWebSearch && data != nil && data.Status == "complete" {
		i.session.WebSearchProgress = ""
	}

	i.lastData[ev.Step] = data

	// The current step is live unless it already finished.
	current := i.session.Steps[idx]
	if !Terminal(current.Status) {
		current.Status = StatusActive
	}

	// Every earlier step that never resolved is now past: completed, or
	// skipped if its own last event flagged it skipped.
	for j := 0; j < idx; j++ {
		earlier := i.session.Steps[j]
		if i.resolved[earlier.Name] || Terminal(earlier.Status) {
			continue
		}
		if prev := i.lastData[earlier.Name]; prev != nil && prev.Skipped {
			earlier.Status = StatusSkipped
		} else {
			earlier.Status = StatusCompleted
		}
		i.resolved[earlier.Name] = true
	}

	// A payload with a non-starting status settles the current step too.
	if data != nil && data.Status != "starting" {
		switch {
		case data.Error != "" || data.Status == "failed":
			current.Status = StatusFailed
		case data.Skipped:
			current.Status = StatusSkipped
		default:
			current.Status = StatusCompleted
		}
		i.resolved[current.Name] = true
	}
}

func (i *Interpreter) finalize(ev events.QueryEvent) *FinalResult {
	i.session.IsStreaming = false
	// all steps considered resolved; the visible list is discarded
	i.session.Steps = nil
	i.session.WebSearchProgress = ""

	result := &FinalResult{
		Content:        ev.Answer,
		QueryType:      ev.QueryType,
		ExpandedQuery:  ev.ExpandedQuery,
		RetrievalCount: ev.RetrievalCount,
		RerankedCount:  ev.RerankedCount,
		Warnings:       ev.Warnings,
	}
	if i.session.Content != "" {
		result.Content = i.session.Content
	}

	for _, s := range ev.Sources {
		result.Sources = append(result.Sources, entity.Source{
			PaperId: s.PaperId,
			Title:   s.Title,
			Snippet: s.Snippet,
			Score:   s.Score,
		})
	}

	if len(i.session.CitationChecks) > 0 {
		result.CitationChecks = i.session.CitationChecks
	} else {
		for _, c := range ev.CitationChecks {
			result.CitationChecks = append(result.CitationChecks, toCitationCheck(c))
		}
	}

	return result
}

func decodeStepData(raw json.RawMessage) *events.StepData {
	if len(raw) == 0 {
		return nil
	}
	var data events.StepData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return &data
}

func toCitationCheck(p events.CitationCheckPayload) entity.CitationCheck {
	return entity.CitationCheck{
		CitationId:  p.CitationId,
		Claim:       p.Claim,
		Confidence:  p.Confidence,
		Valid:       p.Valid,
		Explanation: p.Explanation,
	}
}
