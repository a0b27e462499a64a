package gitignore

// DefaultPatterns is the built-in exclude set applied before any
// project-specific .gitignore is consulted. It mirrors the patterns a
// reasonable code index should never descend into regardless of what a
// project's own ignore files say: VCS metadata, package manager caches,
// build output, and common secret-bearing files.
//
// HighPriorityPatterns is a subset of DefaultPatterns that is checked first
// during matching, since these are the patterns most likely to fire (VCS
// directories and credential files appear in almost every tree).
var (
	HighPriorityPatterns = []string{
		".git/",
		".svn/",
		".hg/",
		"*.pem",
		"*.key",
		"id_rsa",
		"id_ed25519",
		".env",
		".env.*",
		"*_secret*",
		"*_credentials*",
	}

	DefaultPatterns = append(append([]string{}, HighPriorityPatterns...), []string{
		// VCS
		".bzr/",
		"CVS/",
		// Editors / OS
		".DS_Store",
		"Thumbs.db",
		"*.swp",
		"*.swo",
		"*~",
		".idea/",
		".vscode/",
		// Go
		"vendor/",
		// Node / JS
		"node_modules/",
		".npm/",
		".yarn/",
		"bower_components/",
		// Python
		"__pycache__/",
		"*.pyc",
		".venv/",
		"venv/",
		".tox/",
		".mypy_cache/",
		".pytest_cache/",
		"*.egg-info/",
		// Rust
		"target/",
		// Java / JVM
		".gradle/",
		"*.class",
		// Build output
		"dist/",
		"build/",
		"out/",
		"bin/",
		".next/",
		".nuxt/",
		"coverage/",
		// Package manager locks/caches that rarely need indexing
		".cache/",
		".parcel-cache/",
		// Archives / binaries
		"*.zip",
		"*.tar",
		"*.tar.gz",
		"*.tgz",
		"*.rar",
		"*.7z",
		"*.exe",
		"*.dll",
		"*.so",
		"*.dylib",
		"*.o",
		"*.a",
		// Logs and temp
		"*.log",
		"tmp/",
		"temp/",
		// Lock files that are noisy to index but not secret
		"package-lock.json",
		"yarn.lock",
		"pnpm-lock.yaml",
		"Cargo.lock",
		// amanmcp's own index/state directory
		".amanmcp/",
	}...)

	// AllowedHiddenDirs are hidden directory basenames that are never
	// rejected purely for being dot-prefixed, because they commonly carry
	// content worth indexing (CI config, editor-agnostic docs).
	AllowedHiddenDirs = map[string]bool{
		".github":     true,
		".well-known": true,
	}
)

// NewWithDefaults creates a Matcher pre-loaded with DefaultPatterns.
func NewWithDefaults() *Matcher {
	m := New()
	for _, p := range DefaultPatterns {
		m.AddPattern(p)
	}
	return m
}
