package judge

import (
	"sort"
	"strings"
)

// Judge0 CE language IDs.
var languageIDs = map[string]int{
	"javascript": 63, // Node.js
	"python":     71, // Python 3
	"java":       62,
	"cpp":        54,
	"c":          50,
	"csharp":     51,
	"php":        68,
	"ruby":       72,
	"go":         60,
	"rust":       73,
	"kotlin":     78,
	"swift":      83,
	"typescript": 74,
	"scala":      81,
	"perl":       85,
	"haskell":    61,
	"lua":        64,
	"r":          80,
	"dart":       84,
}

// LanguageID returns the Judge0 language ID, or 0 when unsupported.
func LanguageID(language string) int {
	return languageIDs[strings.ToLower(language)]
}

func Supported(language string) bool {
	return LanguageID(language) != 0
}

func SupportedLanguages() []string {
	langs := make([]string, 0, len(languageIDs))
	for l := range languageIDs {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
