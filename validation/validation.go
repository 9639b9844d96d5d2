package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxSeriesIDLength = 64

var languageCode = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})?$`)

// ValidateSeriesID checks that id can be used as a single path segment,
// both in upstream URLs and as a folder name under the download root.
func ValidateSeriesID(id string) error {
	if id == "" {
		return errors.New("series id is required")
	}
	if len(id) > maxSeriesIDLength {
		return fmt.Errorf("series id longer than %d characters", maxSeriesIDLength)
	}
	if id == "." || id == ".." {
		return errors.New("invalid series id: " + id)
	}
	if strings.ContainsAny(id, `/\?#%`) {
		return errors.New("series id contains a reserved character: " + id)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return errors.New("series id contains a control character")
		}
	}
	return nil
}

// ValidateLanguage checks a catalog language code such as "gb" or "pt-br"
func ValidateLanguage(lang string) error {
	if lang == "" {
		return errors.New("language is required")
	}
	if !languageCode.MatchString(lang) {
		return errors.New("invalid language code: " + lang)
	}
	return nil
}
