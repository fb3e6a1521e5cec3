package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gitguide/gitguide-backend/internal/clients/github"
)

const maxPromptFileLen = 1500

const learningPathSystemPrompt = `You are an expert software engineering instructor analyzing a GitHub repository to create a personalized, step-by-step learning journey. You respond with ONLY valid JSON: no explanations, no markdown, no additional text.`

const learningPathFormat = `{
    "project_overview": "Comprehensive project overview (6-10 sentences) grounded in repository structure...",
    "concepts": [
        {
            "name": "Descriptive concept name",
            "description": "Detailed 4-6 sentence explanation teaching the concept before tasks",
            "subtopics": [
                {
                    "name": "Specific subtopic name",
                    "description": "2-3 sentence explanation of what this subtopic covers",
                    "tasks": [
                        {
                            "title": "Specific task referencing actual files",
                            "description": "Detailed task description with specific file references and what to learn",
                            "files_to_study": ["actual/file/path.js", "another/file.py"],
                            "difficulty": "easy|medium|hard"
                        }
                    ]
                }
            ]
        }
    ]
}`

// BuildLearningPathPrompt renders the generation request for one repository
// snapshot. Returns the system and user messages separately.
func BuildLearningPathPrompt(snapshot *github.RepoSnapshot, skillLevel, domain string) (system string, user string) {
	var b strings.Builder

	b.WriteString("REPOSITORY INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n", snapshot.Repo)
	fmt.Fprintf(&b, "- Description: %s\n", snapshot.Description)
	fmt.Fprintf(&b, "- Primary Language: %s\n", snapshot.Language)
	fmt.Fprintf(&b, "- Tech Stack: %s\n", strings.Join(snapshot.TechStack, ", "))
	fmt.Fprintf(&b, "- Files Analyzed: %d\n", len(snapshot.Files))

	b.WriteString("\nLEARNER PROFILE:\n")
	fmt.Fprintf(&b, "- Skill Level: %s\n", skillLevel)
	fmt.Fprintf(&b, "- Domain Focus: %s\n", domain)

	b.WriteString("\nKEY FILES CONTENT:")
	for _, f := range snapshot.Files {
		fmt.Fprintf(&b, "\n\n--- %s ---\n%s", f.Path, clipContent(f.Content, maxPromptFileLen))
	}

	b.WriteString(`

TASK:
Create a learning structure for this repository with:
1. PROJECT OVERVIEW: a comprehensive overview (6-10 sentences) explaining what this project does, its architecture, primary modules, data flow, and what the learner will gain by studying it. Make it concrete and repo-aware. No code.
2. CONCEPTS: 3-6 main concepts ordered from foundational to advanced, each with a detailed multi-sentence description.
3. SUBTOPICS: 2-4 subtopics per concept with clear 2-3 sentence descriptions.
4. TASKS: 2-4 hands-on tasks per subtopic that reference ACTUAL files from this repository, with progressive difficulty.

IMPORTANT REQUIREMENTS:
- Reference actual files, functions, and code patterns from this repository.
- Adapt complexity to the learner's skill level.
- Tasks must be small, specific, and actionable. Never include code.
- The journey should be incremental with clear progression.

CRITICAL: Respond with ONLY valid JSON. Your response must start with { and end with }. Nothing else.

RESPONSE FORMAT (JSON ONLY):
`)
	b.WriteString(learningPathFormat)

	return learningPathSystemPrompt, b.String()
}

// clipContent truncates s to at most max bytes without splitting a UTF-8 rune.
func clipContent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

const chatSystemPrompt = `You are an expert programming tutor helping a student learn from a real GitHub repository. You have complete access to the project context and should provide specific, helpful guidance. Reference actual files, functions, and code patterns when relevant, adapt explanations to the student's skill level, focus on the current task when applicable, and be encouraging and educational.`

// BuildChatPrompt combines the assembled project context with the user's
// question into the tutor request.
func BuildChatPrompt(contextText, userMessage string) (system string, user string) {
	var b strings.Builder
	b.WriteString(contextText)
	b.WriteString("\nUSER QUESTION: ")
	b.WriteString(userMessage)
	b.WriteString("\n\nRespond as a knowledgeable tutor who understands this specific project deeply.")
	return chatSystemPrompt, b.String()
}

// ExtractJSONBlock pulls the first top-level JSON object out of a model
// response, tolerating markdown fences and prose around it.
func ExtractJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
