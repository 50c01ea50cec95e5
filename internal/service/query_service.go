package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/dto"
	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/pkg/logger"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/api"
	"ai-paperchat-client/pkg/pipeline"
	"ai-paperchat-client/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// ErrQueryInFlight rejects a submission while another query is streaming.
// Exactly one query session may exist at a time.
var ErrQueryInFlight = errors.New("a query is already in flight")

const titleMaxLen = 50

// IQueryService defines the conversation-facing query surface.
type IQueryService interface {
	SubmitQuery(ctx context.Context, question string, opts dto.QueryOptions) (*dto.SubmitQueryResult, error)
	Session() *pipeline.Session
	NewConversation() *entity.Conversation
	SelectConversation(id uuid.UUID) error
	ActiveConversation() *entity.Conversation
	GetConversations(ctx context.Context) ([]dto.ConversationSummary, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]dto.ConversationMessage, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
}

type queryService struct {
	streamer  api.QueryStreamer
	convApi   api.ConversationAPI
	convRepo  *memory.ConversationRepository
	library   ILibraryService
	validate  *validator.Validate
	sysLogger logger.ILogger
	flowLog   *log.Logger

	mu      sync.Mutex
	session *pipeline.Session
	loading bool
}

func NewQueryService(
	streamer api.QueryStreamer,
	convApi api.ConversationAPI,
	convRepo *memory.ConversationRepository,
	library ILibraryService,
	sysLogger logger.ILogger,
	flowLog *log.Logger,
) IQueryService {
	return &queryService{
		streamer:  streamer,
		convApi:   convApi,
		convRepo:  convRepo,
		library:   library,
		validate:  validator.New(),
		sysLogger: sysLogger,
		flowLog:   flowLog,
	}
}

// SubmitQuery runs the full query lifecycle: conversation setup, message
// pair, stream consumption, finalization. It blocks until the stream ends.
func (qs *queryService) SubmitQuery(ctx context.Context, question string, opts dto.QueryOptions) (*dto.SubmitQueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}
	if err := qs.validate.Struct(&dto.SubmitQueryRequest{Question: question, Options: opts}); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("query-service")
	ctx, span := tracer.Start(ctx, "SubmitQuery")
	defer span.End()

	// The stream reader goroutine holds its connection until this context
	// ends; cancelling on return releases it even when the loop exits early
	// on a completion event.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Claim the single query slot and a fresh pipeline list
	qs.mu.Lock()
	if qs.session != nil && qs.session.IsStreaming {
		qs.mu.Unlock()
		return nil, ErrQueryInFlight
	}
	qs.loading = true
	qs.mu.Unlock()

	started := time.Now()

	defer func() {
		// Always release flags and refresh stats, success or not
		qs.mu.Lock()
		qs.loading = false
		qs.session = nil
		qs.mu.Unlock()

		if err := qs.library.RefreshStats(ctx); err != nil {
			qs.sysLogger.Warn("Query", "Stats refresh failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 2. Resolve or synthesize the conversation
	conversation := qs.convRepo.Active()
	if conversation == nil {
		conversation = &entity.Conversation{
			Id:        uuid.New(),
			Title:     utils.Truncate(question, titleMaxLen),
			CreatedAt: time.Now(),
		}
		if err := qs.convApi.CreateConversation(ctx, conversation.Id.String(), conversation.Title); err != nil {
			// Local state is used regardless
			qs.sysLogger.Warn("Query", "Conversation persistence failed", map[string]interface{}{"error": err.Error()})
		}
		qs.convRepo.Save(conversation)
		qs.convRepo.SetActive(conversation.Id)
	}

	now := time.Now()

	// 3. Append the query message
	queryMessage := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Kind:           constant.MessageKindQuery,
		Content:        question,
		CreatedAt:      now,
	}
	conversation.Messages = append(conversation.Messages, queryMessage)

	// 4. Append the empty response placeholder
	responseMessage := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Kind:           constant.MessageKindResponse,
		CreatedAt:      now,
	}
	conversation.Messages = append(conversation.Messages, responseMessage)
	qs.convRepo.Save(conversation)

	// 5. Bind the streaming session to the placeholder
	session := pipeline.NewSession(conversation.Id, responseMessage)
	qs.mu.Lock()
	qs.session = session
	qs.mu.Unlock()

	interpreter := pipeline.NewInterpreter(session, qs.flowLog)

	qs.flowLog.Printf("[QUERY] Submitting: %s", utils.Truncate(question, 80))

	// 6. Open the stream and route every event through the interpreter
	stream, err := qs.streamer.StreamQuery(ctx, buildStreamRequest(question, conversation.Id, opts))
	if err != nil {
		qs.failResponse(conversation, responseMessage, err)
		return nil, err
	}

	completed := false
	for ev := range stream {
		result, err := interpreter.Apply(ev)
		if err != nil {
			// 8. Stream-level error: materialize a visible error response
			qs.failResponse(conversation, responseMessage, err)
			return nil, err
		}
		if result == nil {
			continue
		}

		// 7. Completion: finalize content and metadata, streamed values win
		responseMessage.Content = result.Content
		responseMessage.Metadata = &entity.MessageMetadata{
			QueryType:      result.QueryType,
			ExpandedQuery:  result.ExpandedQuery,
			Sources:        result.Sources,
			CitationChecks: result.CitationChecks,
			RetrievalCount: result.RetrievalCount,
			RerankedCount:  result.RerankedCount,
			LatencyMs:      int(time.Since(started).Milliseconds()),
			Warnings:       result.Warnings,
		}

		if conversation.Title == constant.DefaultConversationTitle {
			conversation.Title = utils.Truncate(question, titleMaxLen)
		}
		touched := time.Now()
		conversation.UpdatedAt = &touched
		qs.convRepo.Save(conversation)

		qs.flowLog.Printf("[QUERY] Completed: %d chars, %d citations",
			len(responseMessage.Content), len(result.CitationChecks))
		completed = true
		break
	}

	if !completed {
		err := errors.New("stream ended without a completion event")
		qs.failResponse(conversation, responseMessage, err)
		return nil, err
	}

	return &dto.SubmitQueryResult{
		ConversationId: conversation.Id,
		QueryId:        queryMessage.Id,
		ResponseId:     responseMessage.Id,
	}, nil
}

// failResponse fills the placeholder so a failed stream never leaves a
// silently-stuck empty message.
func (qs *queryService) failResponse(conversation *entity.Conversation, response *entity.Message, err error) {
	response.Content = "Error: " + err.Error()
	qs.convRepo.Save(conversation)
	qs.flowLog.Printf("[QUERY] Stream failed: %v", err)
}

func buildStreamRequest(question string, conversationId uuid.UUID, opts dto.QueryOptions) api.QueryStreamRequest {
	return api.QueryStreamRequest{
		Question:            question,
		TopK:                opts.TopK,
		Temperature:         opts.Temperature,
		PaperIds:            opts.PaperIds,
		MaxChunksPerPaper:   opts.MaxChunksPerPaper,
		ConversationId:      conversationId.String(),
		QueryType:           opts.QueryType,
		EnableHyde:          opts.EnableHyde,
		EnableExpansion:     opts.EnableExpansion,
		EnableCitationCheck: opts.EnableCitationCheck,
	}
}

// Session exposes the in-flight query session for display, or nil.
func (qs *queryService) Session() *pipeline.Session {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.session
}

// NewConversation starts a fresh local conversation with the default title
// and makes it active. It is renamed from the first query once that query's
// stream completes.
func (qs *queryService) NewConversation() *entity.Conversation {
	conversation := &entity.Conversation{
		Id:        uuid.New(),
		Title:     constant.DefaultConversationTitle,
		CreatedAt: time.Now(),
	}
	qs.convRepo.Save(conversation)
	qs.convRepo.SetActive(conversation.Id)
	return conversation
}

func (qs *queryService) SelectConversation(id uuid.UUID) error {
	if _, found := qs.convRepo.Get(id); !found {
		return errors.New("conversation not found")
	}
	qs.convRepo.SetActive(id)
	return nil
}

func (qs *queryService) ActiveConversation() *entity.Conversation {
	return qs.convRepo.Active()
}

// GetConversations lists conversations from the remote store, refreshing the
// local cache.
func (qs *queryService) GetConversations(ctx context.Context) ([]dto.ConversationSummary, error) {
	payloads, err := qs.convApi.GetConversations(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.ConversationSummary, 0, len(payloads))
	for _, p := range payloads {
		id, err := uuid.Parse(p.Id)
		if err != nil {
			continue
		}
		if _, found := qs.convRepo.Get(id); !found {
			qs.convRepo.Save(&entity.Conversation{
				Id:        id,
				Title:     p.Title,
				CreatedAt: p.CreatedAt,
				UpdatedAt: p.UpdatedAt,
			})
		}
		summaries = append(summaries, dto.ConversationSummary{
			Id:        id,
			Title:     p.Title,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return summaries, nil
}

func (qs *queryService) GetHistory(ctx context.Context, id uuid.UUID) ([]dto.ConversationMessage, error) {
	payloads, err := qs.convApi.GetConversation(ctx, id.String())
	if err != nil {
		return nil, err
	}

	messages := make([]dto.ConversationMessage, 0, len(payloads))
	for _, p := range payloads {
		msgId, err := uuid.Parse(p.Id)
		if err != nil {
			continue
		}
		messages = append(messages, dto.ConversationMessage{
			Id:        msgId,
			Kind:      p.Kind,
			Content:   p.Content,
			CreatedAt: p.CreatedAt,
		})
	}
	return messages, nil
}

func (qs *queryService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if err := qs.convApi.DeleteConversation(ctx, id.String()); err != nil {
		return err
	}
	qs.convRepo.Delete(id)
	return nil
}
