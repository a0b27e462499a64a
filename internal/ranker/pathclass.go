package ranker

import "regexp"

// PathClass buckets a file path into one of the categories the ranker's
// path-class component scores.
type PathClass int

const (
	ClassDeps PathClass = iota
	ClassAssets
	ClassBuild
	ClassDocs
	ClassTest
	ClassConfig
	ClassCoreSource
	ClassUnknown
)

func (c PathClass) String() string {
	switch c {
	case ClassDeps:
		return "deps"
	case ClassAssets:
		return "assets"
	case ClassBuild:
		return "build"
	case ClassDocs:
		return "docs"
	case ClassTest:
		return "test"
	case ClassConfig:
		return "config"
	case ClassCoreSource:
		return "core_source"
	default:
		return "unknown"
	}
}

// classScores is the lookup table the path-class component scores
// against, before the depth penalty is applied.
var classScores = map[PathClass]float64{
	ClassCoreSource: 1.0,
	ClassConfig:     0.7,
	ClassTest:       0.5,
	ClassDocs:       0.4,
	ClassBuild:      0.3,
	ClassDeps:       0.1,
	ClassAssets:     0.1,
	ClassUnknown:    0.5,
}

// classPatterns is evaluated in order; the first match wins. The order
// itself is meaningful: a path like "vendor/docs/readme.md" is DEPS, not
// DOCS, because third-party code is never "ours" regardless of what it
// contains.
var classPatterns = []struct {
	class   PathClass
	pattern *regexp.Regexp
}{
	{ClassDeps, regexp.MustCompile(`(?i)(^|/)(node_modules|vendor|venv|\.venv|site-packages|third_party|_examples)(/|$)`)},
	{ClassAssets, regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|ico|webp|woff2?|ttf|eot|mp3|mp4|wav|avif)$`)},
	{ClassBuild, regexp.MustCompile(`(?i)(^|/)(dist|build|target|out|bin|obj|\.cache)(/|$)`)},
	{ClassDocs, regexp.MustCompile(`(?i)(^|/)(docs?|documentation)(/|$)|\.(md|mdx|rst|adoc)$`)},
	{ClassTest, regexp.MustCompile(`(?i)(^|/)(tests?|__tests__|spec|testdata)(/|$)|([_.](test|spec))\.[a-z0-9]+$`)},
	{ClassConfig, regexp.MustCompile(`(?i)(^|/)(config|configs|\.github|\.circleci)(/|$)|\.(ya?ml|json|toml|ini|cfg|conf|env)$`)},
}

// coreSourcePattern recognizes common source-file extensions so an
// otherwise-unmatched path still lands in CORE_SOURCE rather than
// UNKNOWN, which is reserved for genuinely unrecognized paths.
var coreSourcePattern = regexp.MustCompile(`(?i)\.(go|ts|tsx|js|jsx|py|rs|java|kt|c|cpp|h|hpp|rb|php|swift|scala|cs)$`)

// ClassifyPath classifies path using the ordered pattern table; the
// first match wins.
func ClassifyPath(path string) PathClass {
	for _, cp := range classPatterns {
		if cp.pattern.MatchString(path) {
			return cp.class
		}
	}
	if coreSourcePattern.MatchString(path) {
		return ClassCoreSource
	}
	return ClassUnknown
}
