package parser

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// PadFileName zero pads the leading run of digits in name to at least 3 digits,
// so "7.png" becomes "007.png". Names that do not start with a digit are
// returned unchanged.
func PadFileName(name string) string {
	loc := leadingDigits.FindStringIndex(name)
	if loc == nil {
		return name
	}

	digits := name[loc[0]:loc[1]]
	if len(digits) >= 3 {
		return name
	}

	return strings.Repeat("0", 3-len(digits)) + name
}

// ChapterNumber parses a chapter display number ("12", "91.5") into a sort key.
// Oneshots have an empty number and sort as 0, as does anything non-numeric.
func ChapterNumber(num string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// LocalChapterList returns a list of all files from the provided rootDir.
// Optionally pass an exclusion list to skip certain file names.
// Pages still being written (PartSuffix) are never listed.
func LocalChapterList(rootDir string, exclusionList ...string) ([]string, error) {
	// Expand ~ to home directory
	expandedPath, err := ExpandPath(rootDir)
	if err != nil {
		return nil, err
	}

	exclusions := make(map[string]struct{}, len(exclusionList))
	for _, name := range exclusionList {
		exclusions[name] = struct{}{}
	}

	fileList := make([]string, 0)

	entries, err := os.ReadDir(expandedPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasSuffix(entry.Name(), PartSuffix) {
			if _, skip := exclusions[entry.Name()]; !skip {
				fileList = append(fileList, entry.Name())
			}
		}
	}

	return fileList, nil
}

// ListSeries returns the series folders present under the download root.
func ListSeries(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	series := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			series = append(series, entry.Name())
		}
	}
	return series, nil
}

// ListChapters returns the paths of every non-empty chapter folder of a series.
// Empty folders (for example from a download that failed on every page) are left out.
func ListChapters(rootDir, seriesID string) ([]string, error) {
	seriesDir := filepath.Join(rootDir, seriesID)

	entries, err := os.ReadDir(seriesDir)
	if err != nil {
		return nil, err
	}

	chapters := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		chapterDir := filepath.Join(seriesDir, entry.Name())
		files, err := os.ReadDir(chapterDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read chapter folder %s: %w", chapterDir, err)
		}
		if len(files) != 0 {
			chapters = append(chapters, chapterDir)
		}
	}
	return chapters, nil
}

// FindChapter searches every series folder for a chapter folder named chapterID
// and returns the first match.
func FindChapter(rootDir, chapterID string) (string, bool) {
	seriesList, err := ListSeries(rootDir)
	if err != nil {
		return "", false
	}

	for _, series := range seriesList {
		candidate := filepath.Join(rootDir, series, chapterID)
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// ExpandPath expands ~ to the user's home directory, or returns the path as-is
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
