package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// DefaultImageExtensions are the extensions picked up when none are configured.
var DefaultImageExtensions = []string{"png", "jpg", "jpeg", "bmp", "tga", "dds", "webp", "gif", "tiff"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// HasExtension checks if a file has one of the given extensions
func HasExtension(filename string, exts []string) bool {
	return slices.Contains(exts, GetFileExtension(filename))
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return HasExtension(filename, DefaultImageExtensions)
}

// StripExtension removes the final extension from a path
func StripExtension(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// ListImageFiles lists files under dir with one of the given extensions,
// sorted by path. Subdirectories are walked only when recursive is set.
func ListImageFiles(dir string, exts []string, recursive bool) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultImageExtensions
	}
	norm := make([]string, len(exts))
	for i, e := range exts {
		norm[i] = strings.ToLower(strings.TrimPrefix(e, "."))
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if HasExtension(path, norm) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	result = strings.Trim(result, " .")

	return result
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
