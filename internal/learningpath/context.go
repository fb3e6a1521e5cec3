package learningpath

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gitguide/gitguide-backend/internal/types"
)

// ContextFile is one repository file available for chat context, in the order
// the fetcher returned it.
type ContextFile struct {
	Path    string
	Content string
}

const (
	maxContextFiles   = 5
	maxFileExcerptLen = 2000
	tasksPerSubtopic  = 2
)

// BuildChatContext renders a deterministic text snapshot of the project for
// the chat prompt: project metadata, the flattened learning path, the current
// task, and at most five file excerpts of at most 2000 characters each. A
// missing file set degrades to an empty excerpt section.
func BuildChatContext(project *types.Project, concepts []*types.Concept, files []ContextFile) string {
	var b strings.Builder

	b.WriteString("PROJECT CONTEXT:\n")
	fmt.Fprintf(&b, "- Project: %s\n", projectName(project))
	fmt.Fprintf(&b, "- Domain: %s\n", project.Domain)
	fmt.Fprintf(&b, "- Skill Level: %s\n", project.SkillLevel)
	fmt.Fprintf(&b, "- Tech Stack: %s\n", strings.Join(techStackList(project), ", "))
	fmt.Fprintf(&b, "- Overview: %s\n", project.ProjectOverview)

	if current := CurrentTask(concepts); current != nil {
		filesList := "No specific files"
		if studies := FileList(current); len(studies) > 0 {
			filesList = strings.Join(studies, ", ")
		}
		b.WriteString("\nCURRENT TASK:\n")
		fmt.Fprintf(&b, "- Title: %s\n", current.Title)
		fmt.Fprintf(&b, "- Description: %s\n", current.Description)
		fmt.Fprintf(&b, "- Difficulty: %s\n", current.Difficulty)
		fmt.Fprintf(&b, "- Files to Study: %s\n", filesList)
	}

	if len(concepts) > 0 {
		b.WriteString("\nLEARNING PATH:\n")
		for _, c := range concepts {
			fmt.Fprintf(&b, "%s: %s\n", c.Name, c.Description)
			for _, s := range c.Subtopics {
				fmt.Fprintf(&b, "  %s\n", s.Name)
				for i, t := range s.Tasks {
					if i >= tasksPerSubtopic {
						break
					}
					fmt.Fprintf(&b, "    %s %s\n", taskMarker(t), t.Title)
				}
			}
		}
	}

	if len(files) > 0 {
		b.WriteString("\nREPOSITORY FILES:\n")
		for i, f := range files {
			if i >= maxContextFiles {
				break
			}
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", f.Path, clipExcerpt(f.Content, maxFileExcerptLen))
		}
	}

	return b.String()
}

func projectName(project *types.Project) string {
	if project.RepoName != "" {
		return project.RepoName
	}
	parts := strings.Split(strings.TrimSuffix(project.RepoURL, "/"), "/")
	return parts[len(parts)-1]
}

func techStackList(project *types.Project) []string {
	if len(project.TechStack) == 0 {
		return nil
	}
	var stack []string
	if err := json.Unmarshal(project.TechStack, &stack); err != nil {
		return nil
	}
	return stack
}

// clipExcerpt truncates s to at most max bytes without splitting a UTF-8 rune.
func clipExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func taskMarker(t *types.Task) string {
	switch {
	case t.Status == types.TaskStatusCompleted:
		return "[done]"
	case t.IsUnlocked:
		return "[unlocked]"
	default:
		return "[locked]"
	}
}
