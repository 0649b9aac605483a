package planner

import (
	"fmt"
	"strings"

	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

const planSystemPrompt = `You are an expert software engineer embedded in a repository editing agent.
Given a goal and the current repository files, respond with a single JSON object and nothing else:

{
  "goal": "<one-line restatement of the goal>",
  "explanation": "<how the changes accomplish it>",
  "files": [
    {"filename": "<path>", "action": "create|edit|delete", "content": "<full new file content, omitted for delete>", "reason": "<why this file changes>"}
  ],
  "dependencies": ["<new packages required, if any>"],
  "steps": ["<ordered follow-up steps for the user, if any>"]
}

Always return the complete content for created or edited files, never a diff.
Do not wrap the JSON in markdown fences.`

const editSystemPrompt = `You are an expert software engineer. Modify the single file you are given
according to the instruction. Respond with a single JSON object and nothing else:

{"explanation": "<what you changed and why>", "modifiedContent": "<the complete updated file>"}

Do not wrap the JSON in markdown fences.`

// buildPlanPrompt renders the goal plus the full working copy. The selected
// file, when set, is called out so the model weights it as the focal point.
func buildPlanPrompt(goal string, files []workspace.FileRecord, selected string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)
	if selected != "" {
		fmt.Fprintf(&b, "The user currently has %s open.\n\n", selected)
	}
	if len(files) == 0 {
		b.WriteString("The repository is empty.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Repository files (%d):\n\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "--- %s (%s) ---\n", f.Path, LanguageForFile(f.Path))
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func buildEditPrompt(file workspace.FileRecord, instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	fmt.Fprintf(&b, "File %s (%s):\n\n%s", file.Path, LanguageForFile(file.Path), file.Content)
	if !strings.HasSuffix(file.Content, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}
