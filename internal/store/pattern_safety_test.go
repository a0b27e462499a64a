package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePattern_AcceptsOrdinaryRegex(t *testing.T) {
	assert.NoError(t, ValidatePattern(`^func\s+\w+\(`))
}

func TestValidatePattern_RejectsTooLong(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern(strings.Repeat("a", MaxPatternLength+1)), errPatternTooLong)
}

func TestValidatePattern_RejectsUnbalancedParens(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern("(foo(bar)"), errUnbalancedParens)
	assert.ErrorIs(t, ValidatePattern("foo)bar"), errUnbalancedParens)
}

func TestValidatePattern_RejectsExcessiveNesting(t *testing.T) {
	pattern := strings.Repeat("(", MaxRegexNestingDepth+1) + "a" + strings.Repeat(")", MaxRegexNestingDepth+1)
	assert.ErrorIs(t, ValidatePattern(pattern), errNestingTooDeep)
}

func TestValidatePattern_RejectsNestedQuantifierGroups(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern("(a+)+"), errNestedQuantifier)
	assert.ErrorIs(t, ValidatePattern("(a*)*"), errNestedQuantifier)
}

func TestValidatePattern_RejectsTooManyAlternations(t *testing.T) {
	var b strings.Builder
	b.WriteString("a")
	for i := 0; i < MaxRegexAlternations+1; i++ {
		b.WriteString("|a")
	}
	assert.ErrorIs(t, ValidatePattern(b.String()), errTooManyAlternations)
}

func TestValidatePattern_RejectsTooManyGroupAlternatives(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern("(a|b|c|d|e|f)"), errTooManyAlternatives)
}

func TestValidatePattern_RejectsConsecutiveQuantifiers(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern(".* .* .*"), errConsecutiveQuantifier)
}

func TestValidatePattern_RejectsExcessiveBackreferences(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern(`(a)(b)(c)(d)\1\2\3\4`), errTooManyBackrefs)
}

func TestValidatePattern_RejectsShellMetacharacters(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern("foo; rm -rf /"), errShellMetacharacter)
	assert.ErrorIs(t, ValidatePattern("foo $(bar)"), errShellMetacharacter)
	assert.ErrorIs(t, ValidatePattern("foo`bar`"), errShellMetacharacter)
}

func TestValidatePattern_RejectsPathTraversal(t *testing.T) {
	assert.ErrorIs(t, ValidatePattern("../../etc/passwd"), errPathTraversal)
}

func TestValidatePattern_AcceptsBoundedAlternation(t *testing.T) {
	assert.NoError(t, ValidatePattern("foo|bar|baz"))
}

func TestValidateSubprocessPattern_RejectsAlternationValidatePatternAccepts(t *testing.T) {
	assert.NoError(t, ValidatePattern("foo|bar"))
	assert.ErrorIs(t, ValidateSubprocessPattern("foo|bar"), errShellMetacharacter)
}

func TestValidateSubprocessPattern_AppliesValidatePatternRulesToo(t *testing.T) {
	assert.ErrorIs(t, ValidateSubprocessPattern("foo; rm -rf /"), errShellMetacharacter)
	assert.ErrorIs(t, ValidateSubprocessPattern("../../etc/passwd"), errPathTraversal)
}

func TestValidateSubprocessPattern_AcceptsOrdinaryRegexWithoutAlternation(t *testing.T) {
	assert.NoError(t, ValidateSubprocessPattern(`^func\s+\w+\(`))
}
