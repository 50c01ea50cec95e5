package service

import (
	"context"
	"sync"
	"time"

	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/pkg/logger"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/api"
)

// ILibraryService owns the authoritative library view and the aggregate
// usage statistics. Both refreshes are best-effort: callers log failures and
// move on.
type ILibraryService interface {
	RefreshPapers(ctx context.Context) error
	RefreshStats(ctx context.Context) error
	Papers() []*entity.Paper
	Stats() *entity.UsageStats
}

type libraryService struct {
	libraryApi api.LibraryAPI
	paperRepo  *memory.PaperRepository
	logger     logger.ILogger

	mu    sync.RWMutex
	stats entity.UsageStats
}

func NewLibraryService(
	libraryApi api.LibraryAPI,
	paperRepo *memory.PaperRepository,
	sysLogger logger.ILogger,
) ILibraryService {
	return &libraryService{
		libraryApi: libraryApi,
		paperRepo:  paperRepo,
		logger:     sysLogger,
	}
}

// RefreshPapers replaces locally confirmed entries with the authoritative
// listing. Provisional placeholders from a still-running batch survive until
// their confirmed counterpart arrives.
func (ls *libraryService) RefreshPapers(ctx context.Context) error {
	payloads, err := ls.libraryApi.ListPapers(ctx)
	if err != nil {
		return err
	}

	papers := make([]*entity.Paper, 0, len(payloads))
	for _, p := range payloads {
		papers = append(papers, &entity.Paper{
			Id:              p.Id,
			Title:           p.Title,
			Filename:        p.Filename,
			Status:          p.Status,
			ProgressPercent: 100,
			ChunkCount:      p.ChunkCount,
			UploadedAt:      p.UploadedAt,
		})
	}
	ls.paperRepo.ReplaceConfirmed(papers)

	ls.logger.Info("Library", "Paper listing refreshed", map[string]interface{}{"count": len(papers)})
	return nil
}

func (ls *libraryService) RefreshStats(ctx context.Context) error {
	payload, err := ls.libraryApi.GetStats(ctx)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	ls.stats = entity.UsageStats{
		PaperCount:  payload.PaperCount,
		ChunkCount:  payload.ChunkCount,
		QueryCount:  payload.QueryCount,
		RefreshedAt: time.Now(),
	}
	ls.mu.Unlock()

	return nil
}

func (ls *libraryService) Papers() []*entity.Paper {
	return ls.paperRepo.All()
}

func (ls *libraryService) Stats() *entity.UsageStats {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	stats := ls.stats
	return &stats
}
