package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"ai-paperchat-client/internal/dto"
	"ai-paperchat-client/pkg/api"
)

// Hasher computes content digests and partitions a submitted file set into
// unique and already-known files with one batched remote call.
type Hasher struct {
	dedup  api.DedupChecker
	logger *log.Logger
}

func NewHasher(dedup api.DedupChecker, logger *log.Logger) *Hasher {
	return &Hasher{dedup: dedup, logger: logger}
}

// HashFile returns the SHA-256 hex digest of the raw bytes. Stable across
// environments, collision-resistant for dedup purposes.
func HashFile(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Partition checks all digests in one call and splits the set. The dedup
// check is on the critical path: its failure aborts the whole upload attempt.
func (h *Hasher) Partition(ctx context.Context, files []dto.UploadFile) (*dto.DedupResult, error) {
	hashes := make([]string, len(files))
	for i, f := range files {
		hashes[i] = HashFile(f.Data)
	}

	resp, err := h.dedup.CheckDuplicates(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	known := make(map[string]api.DuplicateInfo, len(resp.Duplicates))
	for _, d := range resp.Duplicates {
		known[d.Hash] = d
	}

	result := &dto.DedupResult{}
	for i, f := range files {
		if existing, found := known[hashes[i]]; found {
			result.Duplicates = append(result.Duplicates, dto.DuplicateFile{
				Filename:      f.Filename,
				Hash:          hashes[i],
				ExistingId:    existing.PaperId,
				ExistingTitle: existing.Title,
			})
			continue
		}
		result.Unique = append(result.Unique, f)
	}
	result.DuplicateCount = len(result.Duplicates)

	h.logger.Printf("[DEDUP] %d files submitted, %d unique, %d duplicates",
		len(files), len(result.Unique), result.DuplicateCount)

	return result, nil
}
