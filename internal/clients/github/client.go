package github

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/sync/errgroup"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/logger"
)

const (
	maxFileSize     = 50 * 1024  // skip individual blobs beyond this
	totalSizeBudget = 400 * 1024 // stop selecting files once the sum reaches this
	maxFiles        = 40
	fetchWorkers    = 4
)

// FetchedFile is one repository file pulled down for analysis.
type FetchedFile struct {
	Path    string
	Content string
}

// RepoSnapshot is everything the pipeline needs from a repository: metadata
// plus a bounded, priority-ordered selection of source files.
type RepoSnapshot struct {
	Owner         string
	Repo          string
	Description   string
	DefaultBranch string
	Language      string
	TechStack     []string
	Files         []FetchedFile
}

// Client wraps the GitHub REST API for read-only repository analysis.
type Client struct {
	gh  *gh.Client
	log *logger.Logger
}

// NewClient builds a client. An empty token gives unauthenticated access,
// which is enough for public repositories at a lower rate limit.
func NewClient(token string, log *logger.Logger) *Client {
	c := gh.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &Client{gh: c, log: log.With("component", "github_client")}
}

// ParseRepoURL extracts owner and repo from a github.com URL. Accepts
// https, http, trailing slashes, and a .git suffix.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	s := strings.TrimSpace(repoURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if !strings.HasPrefix(s, "github.com/") {
		return "", "", apperr.Newf(apperr.CodeValidation, "not a github.com repository URL: %s", repoURL)
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(s, "github.com/"), "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.Newf(apperr.CodeValidation, "repository URL must include owner and name: %s", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Fetch pulls repository metadata, walks the tree of the default branch
// (falling back to master when the default is missing), and downloads a
// bounded selection of the most relevant files.
func (c *Client) Fetch(ctx context.Context, repoURL string) (*RepoSnapshot, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	log := c.log.With("owner", owner, "repo", repo)

	info, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "failed to load repository metadata", err)
	}

	branch := info.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil && branch != "master" {
		log.Warn("tree fetch failed, retrying on master", "branch", branch, "error", err)
		branch = "master"
		tree, _, err = c.gh.Git.GetTree(ctx, owner, repo, branch, true)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "failed to load repository tree", err)
	}

	selected := selectFiles(tree.Entries)
	log.Info("selected repository files", "candidates", len(tree.Entries), "selected", len(selected))

	files := make([]FetchedFile, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, entry := range selected {
		g.Go(func() error {
			content, err := c.fileContent(gctx, owner, repo, branch, entry.GetPath())
			if err != nil {
				// A single unreadable file does not sink the run.
				log.Warn("skipping unreadable file", "path", entry.GetPath(), "error", err)
				return nil
			}
			files[i] = FetchedFile{Path: entry.GetPath(), Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "failed to download repository files", err)
	}

	kept := files[:0]
	for _, f := range files {
		if f.Path != "" {
			kept = append(kept, f)
		}
	}

	paths := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		paths = append(paths, e.GetPath())
	}

	return &RepoSnapshot{
		Owner:         owner,
		Repo:          repo,
		Description:   info.GetDescription(),
		DefaultBranch: branch,
		Language:      info.GetLanguage(),
		TechStack:     DetectTechStack(info.GetLanguage(), paths),
		Files:         kept,
	}, nil
}

func (c *Client) fileContent(ctx context.Context, owner, repo, branch, filePath string) (string, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, filePath,
		&gh.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return "", err
	}
	if fc == nil {
		return "", fmt.Errorf("%s is not a file", filePath)
	}
	return fc.GetContent()
}

// selectFiles orders blob entries by relevance and keeps as many as fit the
// count and size budgets. Selection is deterministic for a given tree.
func selectFiles(entries []*gh.TreeEntry) []*gh.TreeEntry {
	var candidates []*gh.TreeEntry
	for _, e := range entries {
		if e.GetType() != "blob" {
			continue
		}
		if e.GetSize() > maxFileSize {
			continue
		}
		if !isRelevantFile(e.GetPath()) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := filePriority(candidates[i].GetPath()), filePriority(candidates[j].GetPath())
		if pi != pj {
			return pi < pj
		}
		di, dj := strings.Count(candidates[i].GetPath(), "/"), strings.Count(candidates[j].GetPath(), "/")
		if di != dj {
			return di < dj
		}
		return candidates[i].GetPath() < candidates[j].GetPath()
	})

	var selected []*gh.TreeEntry
	total := 0
	for _, e := range candidates {
		if len(selected) >= maxFiles || total+e.GetSize() > totalSizeBudget {
			break
		}
		selected = append(selected, e)
		total += e.GetSize()
	}
	return selected
}

var relevantExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".cpp": true, ".h": true,
	".cs": true, ".php": true, ".swift": true, ".kt": true, ".scala": true,
	".md": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".html": true, ".css": true, ".sql": true, ".sh": true, ".proto": true,
}

var skippedDirs = map[string]bool{
	"node_modules": true, "vendor": true, "dist": true, "build": true,
	".git": true, ".github": true, "__pycache__": true, ".venv": true,
	"venv": true, "target": true, "coverage": true,
}

func isRelevantFile(p string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if skippedDirs[seg] {
			return false
		}
	}
	base := path.Base(p)
	if strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.css") {
		return false
	}
	switch base {
	case "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum", "Cargo.lock", "poetry.lock":
		return false
	}
	if filePriority(p) == 0 {
		return true
	}
	return relevantExtensions[strings.ToLower(path.Ext(p))]
}

// filePriority buckets files so project manifests and entrypoints come first.
func filePriority(p string) int {
	switch path.Base(p) {
	case "README.md", "readme.md", "README.rst":
		return 0
	case "package.json", "requirements.txt", "setup.py", "pyproject.toml",
		"go.mod", "Cargo.toml", "pom.xml", "Gemfile", "Dockerfile":
		return 0
	case "main.go", "main.py", "app.py", "index.js", "index.ts", "server.js":
		return 1
	}
	if strings.Count(p, "/") == 0 {
		return 2
	}
	return 3
}

// techMarkers maps manifest or config filenames to stack labels.
var techMarkers = []struct {
	file  string
	label string
}{
	{"go.mod", "Go"},
	{"package.json", "JavaScript"},
	{"tsconfig.json", "TypeScript"},
	{"requirements.txt", "Python"},
	{"setup.py", "Python"},
	{"pyproject.toml", "Python"},
	{"Gemfile", "Ruby"},
	{"pom.xml", "Java"},
	{"build.gradle", "Java"},
	{"Cargo.toml", "Rust"},
	{"composer.json", "PHP"},
	{"Dockerfile", "Docker"},
	{"docker-compose.yml", "Docker"},
}

// DetectTechStack derives a coarse technology list from the repository's
// primary language plus manifest files present anywhere in the tree.
func DetectTechStack(language string, paths []string) []string {
	present := map[string]bool{}
	for _, p := range paths {
		present[path.Base(p)] = true
	}

	seen := map[string]bool{}
	var stack []string
	add := func(label string) {
		if label != "" && !seen[label] {
			seen[label] = true
			stack = append(stack, label)
		}
	}

	add(language)
	for _, m := range techMarkers {
		if present[m.file] {
			add(m.label)
		}
	}
	return stack
}
