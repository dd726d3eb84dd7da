package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// WorkingPath is the temp file a download is written to before the final rename.
func WorkingPath(outputPath string) string {
	return outputPath + WorkingSuffix
}

// ChunkTempDir keeps chunk files next to the destination so the whole
// download stays on one filesystem.
func ChunkTempDir(outputPath, dirName string) string {
	if dirName == "" {
		dirName = TempDirName
	}
	return filepath.Join(filepath.Dir(outputPath), dirName)
}

// FileNameFromURL returns the last path segment of link, or "" if there is none.
func FileNameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}

// ResolveOutputPath picks the destination for a download when the caller
// did not provide one.
func ResolveOutputPath(outputPath, suggested string) string {
	if outputPath != "" {
		return outputPath
	}
	name := filepath.Base(strings.TrimSpace(suggested))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		name = DefaultFileName
	}
	return name
}

func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveDirIfEmpty drops the chunk temp directory once nothing is left in it.
func RemoveDirIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}

// CleanFunction removes leftovers of an interrupted download of outputPath:
// its working file and any chunk files in the temp directory.
func CleanFunction(outputPath, dirName string) error {
	if err := RemoveIfExists(WorkingPath(outputPath)); err != nil {
		return err
	}
	tempDir := ChunkTempDir(outputPath, dirName)
	files, err := os.ReadDir(tempDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	partPrefix := filepath.Base(outputPath) + ".part"
	for _, file := range files {
		if !file.IsDir() && strings.HasPrefix(file.Name(), partPrefix) {
			if err := os.Remove(filepath.Join(tempDir, file.Name())); err != nil {
				return err
			}
		}
	}
	RemoveDirIfEmpty(tempDir)
	return nil
}

// CleanLocal removes the whole temp directory under dir.
func CleanLocal(dir, dirName string) error {
	if dirName == "" {
		dirName = TempDirName
	}
	tempDir := filepath.Join(dir, dirName)
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	return os.RemoveAll(tempDir)
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
