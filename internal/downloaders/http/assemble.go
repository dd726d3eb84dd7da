package pdlhttp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/pdl/internal/utils"
)

// AssembleChunks concatenates the chunk files in index order into
// workingPath. Chunk files are removed afterwards whether or not assembly
// succeeded. expectedSize < 0 skips the final size check.
func AssembleChunks(chunks []*utils.ChunkSpec, workingPath string, expectedSize int64) error {
	defer removeChunkFiles(chunks)

	ordered := slices.Clone(chunks)
	slices.SortFunc(ordered, func(a, b *utils.ChunkSpec) int {
		return a.Index - b.Index
	})

	destFile, err := os.OpenFile(workingPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	defer destFile.Close()

	var totalWritten int64
	for _, chunk := range ordered {
		written, err := appendFile(destFile, chunk.TempFilePath)
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %w", ErrAssembly, chunk.Index, err)
		}
		totalWritten += written
	}
	if expectedSize >= 0 && totalWritten != expectedSize {
		return fmt.Errorf("%w: size mismatch: expected %d, got %d", ErrAssembly, expectedSize, totalWritten)
	}
	if err := destFile.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	log.Debug().Str("op", "http/assemble").Int("chunks", len(ordered)).Int64("bytes", totalWritten).Msg("Chunks assembled")
	return nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("error opening chunk: %w", err)
	}
	defer src.Close()
	return io.Copy(dst, src)
}

// FinalizeFile moves the finished working file over outputPath in a single
// rename, replacing whatever was there. Both paths share a directory, so
// the rename is atomic.
func FinalizeFile(workingPath, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrFinalize, err)
		}
	}
	if err := os.Rename(workingPath, outputPath); err != nil {
		return fmt.Errorf("%w: error renaming output file: %w", ErrFinalize, err)
	}
	return nil
}
