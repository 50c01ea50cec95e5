package pipeline

import (
	"ai-paperchat-client/internal/entity"

	"github.com/google/uuid"
)

// Session is the explicit record of the one query allowed in flight. It binds
// a (conversation, response message) pair to the accumulating answer and the
// visible step list. The query service creates it on submission and drops it
// when the stream completes, errors, or is superseded.
type Session struct {
	ConversationId uuid.UUID
	MessageId      uuid.UUID
	Content        string
	CitationChecks []entity.CitationCheck
	IsStreaming    bool
	Steps          []*StepInfo

	// transient display string for web search progress
	WebSearchProgress string

	// bound placeholder response message, mutated in place while streaming
	message *entity.Message
}

func NewSession(conversationId uuid.UUID, message *entity.Message) *Session {
	return &Session{
		ConversationId: conversationId,
		MessageId:      message.Id,
		IsStreaming:    true,
		Steps:          NewStepList(),
		message:        message,
	}
}

// AppendChunk adds an answer fragment to the session and mirrors it onto the
// bound message so both views stay equal at every point during streaming.
func (s *Session) AppendChunk(fragment string) {
	s.Content += fragment
	s.message.Content = s.Content
}

// AppendCitationCheck appends to both the session list and the bound
// message's metadata list. Append-only: a later check for the same citation
// id never overwrites an earlier one.
func (s *Session) AppendCitationCheck(check entity.CitationCheck) {
	s.CitationChecks = append(s.CitationChecks, check)
	if s.message.Metadata == nil {
		s.message.Metadata = &entity.MessageMetadata{}
	}
	s.message.Metadata.CitationChecks = append(s.message.Metadata.CitationChecks, check)
}

// CitationCheckMap resolves each citation id to its lowest-confidence entry.
// Ties keep the earliest appended record.
func CitationCheckMap(checks []entity.CitationCheck) map[string]entity.CitationCheck {
	m := make(map[string]entity.CitationCheck, len(checks))
	for _, c := range checks {
		existing, found := m[c.CitationId]
		if !found || c.Confidence < existing.Confidence {
			m[c.CitationId] = c
		}
	}
	return m
}

// Message returns the bound response message.
func (s *Session) Message() *entity.Message {
	return s.message
}
