package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPath(t *testing.T) {
	cases := []struct {
		path string
		want PathClass
	}{
		{"vendor/github.com/foo/bar.go", ClassDeps},
		{"node_modules/react/index.js", ClassDeps},
		{"assets/logo.svg", ClassAssets},
		{"dist/bundle.js", ClassBuild},
		{"docs/architecture.md", ClassDocs},
		{"internal/foo/foo_test.go", ClassTest},
		{"config/app.yaml", ClassConfig},
		{"internal/foo/foo.go", ClassCoreSource},
		{"README", ClassUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyPath(c.path), "path=%s", c.path)
	}
}

func TestClassifyPath_DepsWinsOverNestedDocs(t *testing.T) {
	assert.Equal(t, ClassDeps, ClassifyPath("vendor/pkg/docs/readme.md"))
}
