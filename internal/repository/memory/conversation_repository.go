package memory

import (
	"sort"
	"sync"
	"time"

	"ai-paperchat-client/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ConversationRepository keeps the local conversation list. Conversations are
// only ever appended to, retitled or deleted; messages are never reordered.
type ConversationRepository struct {
	cache *cache.Cache

	mu       sync.RWMutex
	activeId uuid.UUID
}

func NewConversationRepository() *ConversationRepository {
	// Conversations live for the client session; expiry only reclaims
	// abandoned ones.
	c := cache.New(24*time.Hour, 1*time.Hour)
	return &ConversationRepository{
		cache: c,
	}
}

func (r *ConversationRepository) Save(conversation *entity.Conversation) {
	r.cache.Set(conversation.Id.String(), conversation, cache.DefaultExpiration)
}

func (r *ConversationRepository) Get(id uuid.UUID) (*entity.Conversation, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*entity.Conversation), true
	}
	return nil, false
}

func (r *ConversationRepository) Delete(id uuid.UUID) {
	r.cache.Delete(id.String())

	r.mu.Lock()
	if r.activeId == id {
		r.activeId = uuid.Nil
	}
	r.mu.Unlock()
}

func (r *ConversationRepository) All() []*entity.Conversation {
	items := r.cache.Items()
	conversations := make([]*entity.Conversation, 0, len(items))
	for _, item := range items {
		conversations = append(conversations, item.Object.(*entity.Conversation))
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations
}

func (r *ConversationRepository) SetActive(id uuid.UUID) {
	r.mu.Lock()
	r.activeId = id
	r.mu.Unlock()
}

// Active returns the currently selected conversation, or nil when none is
// active.
func (r *ConversationRepository) Active() *entity.Conversation {
	r.mu.RLock()
	id := r.activeId
	r.mu.RUnlock()

	if id == uuid.Nil {
		return nil
	}
	if conv, found := r.Get(id); found {
		return conv
	}
	return nil
}
