package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplanwebsites/repomd/internal/identity"
)

func TestSplitFrontmatter(t *testing.T) {
	header, body, err := splitFrontmatter("---\ntitle: Hello\n---\n\nBody text\n")
	require.NoError(t, err)
	assert.Equal(t, "title: Hello", header)
	assert.Equal(t, "\nBody text\n", body)
}

func TestSplitFrontmatter_None(t *testing.T) {
	header, body, err := splitFrontmatter("# Just a heading\n")
	require.NoError(t, err)
	assert.Empty(t, header)
	assert.Equal(t, "# Just a heading\n", body)
}

func TestSplitFrontmatter_Unterminated(t *testing.T) {
	_, _, err := splitFrontmatter("---\ntitle: Broken\n\nno closing delimiter\n")
	assert.Error(t, err)
}

func TestParseFrontmatter_PreservesOrder(t *testing.T) {
	fm, err := parseFrontmatter("zebra: 1\napple: two\nmango:\n  - a\n  - b\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, fm.Keys())

	v, ok := fm.GetString("apple")
	require.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestParseFrontmatter_Malformed(t *testing.T) {
	_, err := parseFrontmatter(": [unbalanced\n")
	assert.Error(t, err)
}

func TestParseFrontmatter_NonMapping(t *testing.T) {
	_, err := parseFrontmatter("- just\n- a\n- list\n")
	assert.Error(t, err)
}

func TestStripMarkdown(t *testing.T) {
	body := "# Heading\n\nSome **bold** and `code` with a [link](other.md) and [[wiki|label]].\n\n```go\nfunc ignored() {}\n```\n"
	plain := stripMarkdown(body)
	assert.Equal(t, "Heading Some bold and with a link and label.", plain)
}

func TestRenderMarkdown(t *testing.T) {
	out := renderMarkdown("# Title\n\nFirst paragraph with <angle> brackets.\n\n## Sub\n\nSecond.")
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<h2>Sub</h2>")
	assert.Contains(t, out, "<p>First paragraph with &lt;angle&gt; brackets.</p>")
	assert.Contains(t, out, "<p>Second.</p>")
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "From Heading", extractTitle("intro\n# From Heading\n", "notes/some-file.md"))
	assert.Equal(t, "some file", extractTitle("no heading here", "notes/some-file.md"))
}

func TestParseDocument(t *testing.T) {
	raw := []byte("---\ntitle: Custom Title\ntags:\n  - go\n---\n# Ignored Heading\n\nHello world body.\n")
	hash := identity.Compute(raw)

	doc, err := parseDocument(raw, "notes/hello.md", hash)
	require.NoError(t, err)

	assert.Equal(t, hash, doc.Hash)
	assert.Equal(t, "notes/hello.md", doc.Path)
	assert.Equal(t, "notes/hello", doc.Slug)
	assert.Equal(t, "Custom Title", doc.Title, "frontmatter title wins over heading")
	assert.Equal(t, []string{"title", "tags"}, doc.Frontmatter.Keys())
	assert.Equal(t, 5, doc.WordCount)
	assert.NotEmpty(t, doc.Rendered)
	require.NoError(t, doc.Validate())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "notes/go-concurrency", slugify("notes/Go-Concurrency.md"))
	assert.Equal(t, "readme", slugify("README.md"))
}
