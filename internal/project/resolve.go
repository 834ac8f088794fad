// Package project resolves a stable project identity for a working
// directory by reading its git remote, falling back to a hash of the
// directory itself when no remote is configured.
package project

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Info is the resolved identity of a working directory.
type Info struct {
	ID   string
	Name string
}

var originURLRegex = regexp.MustCompile(`^\s*url\s*=\s*(.+)$`)

// Detect walks upward from cwd looking for a .git entry, extracts its
// origin remote, and derives a stable id from the normalized URL. When no
// git remote is found it falls back to hashing the normalized cwd, in
// which case Name is empty.
func Detect(cwd string) (Info, error) {
	gitDir, err := findGitDir(cwd)
	if err == nil {
		if url := readOriginURL(gitDir); url != "" {
			normalized := normalizeRemoteURL(url)
			return Info{ID: hashString(normalized), Name: nameFromURL(normalized)}, nil
		}
	}

	normalizedCwd := normalizeCwd(cwd)
	return Info{ID: hashString(normalizedCwd)}, nil
}

// DetectName augments Detect's result with a human-readable project name
// drawn from the nearest manifest file when Detect found no git remote.
// Detection order: go.mod -> package.json -> pyproject.toml -> directory
// name.
func DetectName(cwd string) string {
	if name := detectGoMod(cwd); name != "" {
		return name
	}
	if name := detectPackageJSON(cwd); name != "" {
		return name
	}
	if name := detectPyproject(cwd); name != "" {
		return name
	}
	return filepath.Base(filepath.Clean(cwd))
}

// findGitDir walks upward from start looking for a .git entry, following
// worktree pointer files (a .git file containing "gitdir: <path>").
func findGitDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, ".git")
		info, statErr := os.Stat(candidate)
		if statErr == nil {
			if info.IsDir() {
				return candidate, nil
			}
			if resolved, ptrErr := resolveGitdirPointer(candidate); ptrErr == nil {
				return resolved, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .git found above %s", start)
		}
		dir = parent
	}
}

// resolveGitdirPointer reads a worktree ".git" pointer file and resolves
// its "gitdir: <path>" line to an absolute directory.
func resolveGitdirPointer(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", fmt.Errorf("%s is not a gitdir pointer file", path)
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if filepath.IsAbs(target) {
		return target, nil
	}
	return filepath.Join(filepath.Dir(path), target), nil
}

// readOriginURL parses gitDir/config for the url under [remote "origin"].
func readOriginURL(gitDir string) string {
	file, err := os.Open(filepath.Join(gitDir, "config"))
	if err != nil {
		return ""
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	inOrigin := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		if matches := originURLRegex.FindStringSubmatch(line); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}

// normalizeRemoteURL canonicalizes a git remote URL: strips ssh://,
// rewrites the scp-like git@host:path form to https://host/path, ensures
// an https:// prefix, strips a trailing .git and slash, and lowercases the
// hostname while preserving path case.
func normalizeRemoteURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "ssh://")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")

	if idx := strings.Index(u, "@"); idx != -1 {
		u = u[idx+1:]
	}
	if slash := strings.Index(u, "/"); slash == -1 {
		if colon := strings.Index(u, ":"); colon != -1 {
			u = u[:colon] + "/" + u[colon+1:]
		}
	} else if colon := strings.Index(u[:slash], ":"); colon != -1 {
		u = u[:colon] + "/" + u[colon+1:]
	}

	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	if slash := strings.Index(u, "/"); slash != -1 {
		u = strings.ToLower(u[:slash]) + u[slash:]
	} else {
		u = strings.ToLower(u)
	}

	return "https://" + u
}

// nameFromURL derives a project name as the last path component of a
// normalized remote URL.
func nameFromURL(normalized string) string {
	trimmed := strings.TrimSuffix(normalized, ".git")
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

// normalizeCwd canonicalizes a working directory path for hashing:
// backslashes to forward slashes, no trailing slash, lowercase.
func normalizeCwd(cwd string) string {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		abs = cwd
	}
	normalized := strings.ReplaceAll(abs, `\`, "/")
	normalized = strings.TrimSuffix(normalized, "/")
	return strings.ToLower(normalized)
}

// hashString returns the lowercase hex of the first 64 bits of a SHA-256
// digest over s.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func detectGoMod(rootPath string) string {
	file, err := os.Open(filepath.Join(rootPath, "go.mod"))
	if err != nil {
		return ""
	}
	defer func() { _ = file.Close() }()

	moduleRegex := regexp.MustCompile(`^module\s+(.+)$`)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if matches := moduleRegex.FindStringSubmatch(line); len(matches) > 1 {
			return filepath.Base(matches[1])
		}
	}
	return ""
}

func detectPackageJSON(rootPath string) string {
	data, err := os.ReadFile(filepath.Join(rootPath, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return ""
	}
	name := pkg.Name
	if strings.HasPrefix(name, "@") {
		if parts := strings.Split(name, "/"); len(parts) > 1 {
			name = parts[len(parts)-1]
		}
	}
	return name
}

func detectPyproject(rootPath string) string {
	file, err := os.Open(filepath.Join(rootPath, "pyproject.toml"))
	if err != nil {
		return ""
	}
	defer func() { _ = file.Close() }()

	nameRegex := regexp.MustCompile(`^\s*name\s*=\s*["']([^"']+)["']`)
	inProjectSection := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			inProjectSection = strings.TrimSpace(line) == "[project]"
			continue
		}
		if !inProjectSection {
			continue
		}
		if matches := nameRegex.FindStringSubmatch(line); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}
