package memory

import (
	"sort"
	"sync"

	"ai-paperchat-client/internal/entity"

	"github.com/patrickmn/go-cache"
)

// PaperRepository is the denormalized library projection. Provisional entries
// created by the upload flow are keyed by task id until an authoritative
// paper id arrives; the library refresh overwrites with confirmed entries.
type PaperRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewPaperRepository() *PaperRepository {
	return &PaperRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *PaperRepository) Save(paper *entity.Paper) {
	r.cache.Set(paper.Id, paper, cache.NoExpiration)
}

func (r *PaperRepository) Get(id string) (*entity.Paper, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(*entity.Paper), true
	}
	return nil, false
}

func (r *PaperRepository) Delete(id string) {
	r.cache.Delete(id)
}

// GetCopy returns the paper by value, read under the repository lock so it
// cannot race an in-place update.
func (r *PaperRepository) GetCopy(id string) (entity.Paper, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paper, found := r.Get(id)
	if !found {
		return entity.Paper{}, false
	}
	return *paper, true
}

// All returns the listing sorted by title. Entries are copied under the
// repository lock: stream events mutate papers in place, so handing out the
// stored pointers would let readers race those writes.
func (r *PaperRepository) All() []*entity.Paper {
	r.mu.Lock()
	defer r.mu.Unlock()

	papers := make([]*entity.Paper, 0)
	for _, stored := range r.all() {
		copied := *stored
		papers = append(papers, &copied)
	}
	return papers
}

// all returns the live stored pointers. Callers must hold r.mu.
func (r *PaperRepository) all() []*entity.Paper {
	items := r.cache.Items()
	papers := make([]*entity.Paper, 0, len(items))
	for _, item := range items {
		papers = append(papers, item.Object.(*entity.Paper))
	}
	sort.Slice(papers, func(i, j int) bool {
		return papers[i].Title < papers[j].Title
	})
	return papers
}

// Update applies fn to the paper under the repository lock. Missing ids are
// a no-op: batch events can race a cleared batch.
func (r *PaperRepository) Update(id string, fn func(*entity.Paper)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paper, found := r.Get(id)
	if !found {
		return
	}
	fn(paper)
	r.Save(paper)
}

// Promote rekeys a provisional entry onto its authoritative paper id once
// processing reports it.
func (r *PaperRepository) Promote(provisionalId, paperId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paper, found := r.Get(provisionalId)
	if !found {
		return
	}
	r.cache.Delete(provisionalId)
	paper.Id = paperId
	paper.Provisional = false
	r.Save(paper)
}

// ReplaceConfirmed swaps in the authoritative listing, dropping every
// previously confirmed entry while keeping still-provisional placeholders.
func (r *PaperRepository) ReplaceConfirmed(papers []*entity.Paper) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.all() {
		if !existing.Provisional {
			r.cache.Delete(existing.Id)
		}
	}
	for _, paper := range papers {
		paper.Provisional = false
		r.Save(paper)
	}
}
