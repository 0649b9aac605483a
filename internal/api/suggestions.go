package api

// Canned prompts surfaced by clients, one set per edit mode.
var filePrompts = []string{
	"Fix any bugs in this code",
	"Add error handling",
	"Optimize performance",
	"Add comments to explain the code",
	"Refactor for better readability",
	"Add input validation",
	"Implement responsive design",
	"Add accessibility features",
}

var projectPrompts = []string{
	"Explain the project structure",
	"Find all API endpoints",
	"List all React components",
	"Show me where state management is used",
	"Find security vulnerabilities",
	"Suggest architectural improvements",
	"List all dependencies",
	"Show me the data flow",
}
