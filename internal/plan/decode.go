package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
)

// StripFences removes a leading/trailing markdown code fence from model
// output. The completion service is not contract-bound to return clean JSON;
// it frequently wraps the payload in ```json ... ``` or bare ``` ... ```.
func StripFences(text string) string {
	out := strings.TrimSpace(text)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	// Drop the opening fence line, including any language tag after the ticks.
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	} else {
		out = strings.TrimPrefix(out, "```")
	}
	out = strings.TrimSpace(out)
	if strings.HasSuffix(out, "```") {
		out = out[:len(out)-3]
	}
	return strings.TrimSpace(out)
}

// Wire shapes. The plan schema drifted across drafts of the original
// cloud function: "plan" vs "goal", "files" vs "files_to_edit" vs
// "file_changes", "filename" vs "file_path", "content" vs "updated_content".
// All legacy shapes normalize to the canonical Plan here, at the boundary,
// so nothing downstream ever branches on shape.

type wireChange struct {
	Filename       string  `json:"filename"`
	FilePath       string  `json:"file_path"`
	Action         string  `json:"action"`
	Content        *string `json:"content"`
	UpdatedContent *string `json:"updated_content"`
	Reason         string  `json:"reason"`
}

type wirePlan struct {
	Goal         string       `json:"goal"`
	PlanAlias    string       `json:"plan"`
	Explanation  string       `json:"explanation"`
	Files        []wireChange `json:"files"`
	FilesToEdit  []wireChange `json:"files_to_edit"`
	FileChanges  []wireChange `json:"file_changes"`
	Dependencies []string     `json:"dependencies"`
	Steps        []string     `json:"steps"`
}

func (w wireChange) filename() string {
	if w.Filename != "" {
		return w.Filename
	}
	return w.FilePath
}

func (w wireChange) content() *string {
	if w.Content != nil {
		return w.Content
	}
	return w.UpdatedContent
}

// Decode parses raw completion output into a Plan. Fences are stripped
// first. Structural failures (not JSON, or missing any goal field) come back
// as *errors.PlanFormatError. Individual file entries missing a filename or
// carrying an unknown action are dropped, each producing a warning string,
// rather than failing the whole plan.
func Decode(raw string) (*Plan, []string, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, nil, berrors.NewPlanFormatError(raw, fmt.Errorf("empty response"))
	}

	var w wirePlan
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, nil, berrors.NewPlanFormatError(text, err)
	}

	goal := strings.TrimSpace(w.Goal)
	if goal == "" {
		goal = strings.TrimSpace(w.PlanAlias)
	}
	if goal == "" {
		return nil, nil, berrors.NewPlanFormatError(text, fmt.Errorf("missing goal"))
	}

	// Canonical "files" wins; legacy lists imply action=edit when unset.
	source := w.Files
	legacy := false
	if source == nil && w.FilesToEdit != nil {
		source, legacy = w.FilesToEdit, true
	}
	if source == nil && w.FileChanges != nil {
		source, legacy = w.FileChanges, true
	}

	var warnings []string
	files := make([]FileChange, 0, len(source))
	for i, wc := range source {
		name := wc.filename()
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("dropped change %d: missing filename", i))
			continue
		}
		action := Action(strings.ToLower(strings.TrimSpace(wc.Action)))
		if action == "" && legacy {
			action = ActionEdit
		}
		if !action.Valid() {
			warnings = append(warnings, fmt.Sprintf("dropped change %d (%s): unknown action %q", i, name, wc.Action))
			continue
		}
		files = append(files, FileChange{
			Filename: name,
			Action:   action,
			Content:  wc.content(),
			Reason:   wc.Reason,
		})
	}

	return &Plan{
		Goal:         goal,
		Explanation:  w.Explanation,
		Files:        files,
		Dependencies: w.Dependencies,
		Steps:        w.Steps,
	}, warnings, nil
}
