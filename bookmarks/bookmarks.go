package bookmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"mdrelay/parser"
	"mdrelay/validation"
)

// Manga is the watch list file: series downloaded at every startup
type Manga struct {
	Manga []Bookmarks `json:"manga"`
}

type Bookmarks struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language"`
}

// LoadBookmarks reads the watch list at path
func LoadBookmarks(path string) (Manga, error) {
	bookmarksLocation, err := parser.ExpandPath(path)
	if err != nil {
		return Manga{}, fmt.Errorf("cannot expand bookmarks path: %w", err)
	}

	file, err := os.Open(bookmarksLocation)
	if err != nil {
		return Manga{}, fmt.Errorf("error loading bookmarks file: %w", err)
	}
	defer file.Close()

	byteValues, err := io.ReadAll(file)
	if err != nil {
		return Manga{}, fmt.Errorf("error reading bookmarks file: %w", err)
	}

	var mangaStruct Manga
	if err := json.Unmarshal(byteValues, &mangaStruct); err != nil {
		return Manga{}, fmt.Errorf("error unmarshalling bookmarks: %w", err)
	}

	return mangaStruct, nil
}

// Valid returns the entries that can be submitted, filling in defaultLanguage.
// Invalid entries are logged and dropped; duplicate IDs keep the first entry.
func (m Manga) Valid(defaultLanguage string) []Bookmarks {
	seen := make(map[string]bool)
	valid := make([]Bookmarks, 0, len(m.Manga))

	for _, entry := range m.Manga {
		if entry.Language == "" {
			entry.Language = defaultLanguage
		}

		if err := validation.ValidateSeriesID(entry.ID); err != nil {
			log.Printf("[Bookmarks] Skipping %q: %v", entry.Title, err)
			continue
		}
		if err := validation.ValidateLanguage(entry.Language); err != nil {
			log.Printf("[Bookmarks] Skipping %s: %v", entry.ID, err)
			continue
		}
		if seen[entry.ID] {
			log.Printf("[Bookmarks] Skipping duplicate %s", entry.ID)
			continue
		}

		seen[entry.ID] = true
		valid = append(valid, entry)
	}

	return valid
}
