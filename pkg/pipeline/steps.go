package pipeline

// StepStatus is the lifecycle of one visible pipeline step. A step never
// leaves completed/skipped/failed once it gets there.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusActive    StepStatus = "active"
	StatusCompleted StepStatus = "completed"
	StatusSkipped   StepStatus = "skipped"
	StatusFailed    StepStatus = "failed"
)

// Canonical step names in pipeline order. The remote service may skip any of
// them dynamically and does not promise an event per step.
var CanonicalSteps = []string{
	"rewriting",
	"entities",
	"classification",
	"expansion",
	"hyde",
	"retrieval",
	"reranking",
	"generation",
	"verification",
	"web_search",
}

// Synthetic steps carried on progress events but never shown in the visible
// list.
const (
	StepAnswerChunk       = "answer_chunk"
	StepCitationVerified  = "citation_verified"
	StepAnswerComplete    = "answer_complete"
	StepWebSearchProgress = "web_search_progress"
	StepWebSearch         = "web_search"
)

// StepInfo is one visible entry of the progress list.
type StepInfo struct {
	Name   string
	Status StepStatus
}

// NewStepList builds a fresh list with every canonical step pending. Created
// at submission time, discarded on completion.
func NewStepList() []*StepInfo {
	steps := make([]*StepInfo, len(CanonicalSteps))
	for i, name := range CanonicalSteps {
		steps[i] = &StepInfo{Name: name, Status: StatusPending}
	}
	return steps
}

// Ordinal returns the canonical position of a step name, or -1 for synthetic
// and unknown steps.
func Ordinal(name string) int {
	for i, s := range CanonicalSteps {
		if s == name {
			return i
		}
	}
	return -1
}

// Terminal reports whether a status is final.
func Terminal(s StepStatus) bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}
