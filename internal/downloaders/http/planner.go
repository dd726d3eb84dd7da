package pdlhttp

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tanq16/pdl/internal/utils"
)

// PlanChunks splits [0, totalSize-1] into chunkCount contiguous ranges; the
// last one absorbs the remainder. When totalSize is smaller than chunkCount
// the count is reduced to totalSize so no range is ever empty.
func PlanChunks(totalSize int64, chunkCount int, tempDir, baseName string) ([]*utils.ChunkSpec, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("cannot plan chunks for size %d", totalSize)
	}
	if chunkCount < 1 {
		return nil, fmt.Errorf("chunk count must be positive, got %d", chunkCount)
	}
	if int64(chunkCount) > totalSize {
		chunkCount = int(totalSize)
	}
	chunkSize := totalSize / int64(chunkCount)
	chunks := make([]*utils.ChunkSpec, 0, chunkCount)
	for i := range chunkCount {
		startByte := int64(i) * chunkSize
		endByte := startByte + chunkSize - 1
		if i == chunkCount-1 {
			endByte = totalSize - 1
		}
		chunks = append(chunks, &utils.ChunkSpec{
			Index:        i,
			StartByte:    startByte,
			EndByte:      endByte,
			TempFilePath: filepath.Join(tempDir, fmt.Sprintf("%s.part%d.%s", baseName, i, uuid.NewString())),
		})
	}
	return chunks, nil
}
