package planner

import "strings"

var languageByExt = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"py":   "python",
	"rb":   "ruby",
	"java": "java",
	"c":    "c",
	"cpp":  "cpp",
	"go":   "go",
	"rs":   "rust",
	"html": "html",
	"css":  "css",
	"scss": "scss",
	"json": "json",
	"md":   "markdown",
}

// LanguageForFile maps a filename extension to a language tag used in
// prompts and syntax-highlighting hints. Unknown extensions are plaintext.
func LanguageForFile(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return "plaintext"
	}
	if lang, ok := languageByExt[strings.ToLower(filename[i+1:])]; ok {
		return lang
	}
	return "plaintext"
}
