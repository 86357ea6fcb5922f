package vault

import (
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iplanwebsites/repomd/pkg/types"
)

const frontmatterDelimiter = "---"

// splitFrontmatter separates a leading YAML header from the markdown body.
// A document without a header returns an empty frontmatter block.
func splitFrontmatter(source string) (header, body string, err error) {
	if !strings.HasPrefix(source, frontmatterDelimiter+"\n") && source != frontmatterDelimiter {
		return "", source, nil
	}
	rest := strings.TrimPrefix(source, frontmatterDelimiter+"\n")
	end := strings.Index(rest, "\n"+frontmatterDelimiter)
	if end < 0 {
		return "", "", fmt.Errorf("unterminated frontmatter block")
	}
	header = rest[:end]
	body = rest[end+len("\n"+frontmatterDelimiter):]
	body = strings.TrimPrefix(body, "\n")
	return header, body, nil
}

// parseFrontmatter decodes a YAML header preserving key order.
func parseFrontmatter(header string) (*types.Frontmatter, error) {
	fm := types.NewFrontmatter()
	if strings.TrimSpace(header) == "" {
		return fm, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(header), &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return fm, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter must be a mapping")
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valNode := mapping.Content[i], mapping.Content[i+1]
		var value any
		if err := valNode.Decode(&value); err != nil {
			return nil, err
		}
		fm.Set(keyNode.Value, value)
	}
	return fm, nil
}

var (
	codeBlockRe  = regexp.MustCompile("(?s)```[^`]*```")
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	wikiLinkRe   = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRe   = regexp.MustCompile(`(\*\*|__|\*|_|~~)`)
)

// stripMarkdown reduces a body to plain text for word counts and embedding
// input. Formatting markers go away; link and wikilink labels survive.
func stripMarkdown(body string) string {
	text := codeBlockRe.ReplaceAllString(body, "")
	text = imageRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = wikiLinkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := wikiLinkRe.FindStringSubmatch(match)
		if parts[2] != "" {
			return parts[2]
		}
		return parts[1]
	})
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	return strings.Join(strings.Fields(text), " ")
}

// renderMarkdown produces the rendered output for a body: headings and
// paragraphs only, escaped for safe embedding in downstream pages. The
// dashboard renders the full body itself; this output exists so artifacts
// are self-contained.
func renderMarkdown(body string) string {
	var sb strings.Builder
	blocks := strings.Split(body, "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if level := headingLevel(block); level > 0 {
			text := strings.TrimSpace(strings.TrimLeft(block, "#"))
			fmt.Fprintf(&sb, "<h%d>%s</h%d>\n", level, html.EscapeString(text), level)
			continue
		}
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(stripMarkdown(block)))
	}
	return sb.String()
}

func headingLevel(block string) int {
	if strings.Contains(block, "\n") {
		return 0
	}
	level := 0
	for level < len(block) && block[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(block) || block[level] != ' ' {
		return 0
	}
	return level
}

// extractTitle returns the first H1 heading, falling back to the filename.
func extractTitle(body, relPath string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	name := filepath.Base(relPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// slugify converts a vault-relative path to its link-resolution slug.
func slugify(relPath string) string {
	slug := filepath.ToSlash(relPath)
	slug = strings.TrimSuffix(slug, filepath.Ext(slug))
	return strings.ToLower(slug)
}

// parseDocument builds a Document from raw markdown bytes. The hash must be
// computed by the caller from the same bytes.
func parseDocument(raw []byte, relPath string, hash types.Hash) (*types.Document, error) {
	header, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}
	fm, err := parseFrontmatter(header)
	if err != nil {
		return nil, fmt.Errorf("malformed frontmatter: %w", err)
	}

	plain := stripMarkdown(body)
	doc := &types.Document{
		Hash:        hash,
		Path:        filepath.ToSlash(relPath),
		Slug:        slugify(relPath),
		Title:       extractTitle(body, relPath),
		Frontmatter: fm,
		Body:        body,
		Rendered:    renderMarkdown(body),
		PlainText:   plain,
		WordCount:   len(strings.Fields(plain)),
	}
	if title, ok := fm.GetString("title"); ok && title != "" {
		doc.Title = title
	}
	return doc, nil
}
