// Package plan defines the structured edit proposal produced by the
// completion service, and the forgiving decoder that turns raw model output
// into a validated Plan.
package plan

// Action is one of the closed set of file mutations a plan may request.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Valid reports whether a is in the closed action set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// FileChange is one mutation instruction within a Plan.
//
// Content is a pointer so that "no content supplied" is distinguishable from
// "empty content": an edit without content is advisory and leaves the file
// text alone, while a create without content writes an empty file.
type FileChange struct {
	Filename string  `json:"filename"`
	Action   Action  `json:"action"`
	Content  *string `json:"content,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Plan is an immutable, reviewable proposal of file mutations. Regenerating
// always produces a new Plan; nothing mutates one after Decode returns it.
type Plan struct {
	Goal         string       `json:"goal"`
	Explanation  string       `json:"explanation,omitempty"`
	Files        []FileChange `json:"files"`
	Dependencies []string     `json:"dependencies,omitempty"`
	Steps        []string     `json:"steps,omitempty"`
}

// IsNoop reports whether the plan carries no file mutations. Such a plan is
// valid (pure advice) and executes as a logged success.
func (p *Plan) IsNoop() bool {
	return len(p.Files) == 0
}
