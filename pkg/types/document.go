package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Frontmatter is an ordered key→value map parsed from a document's YAML
// header. Key order is preserved from the source file so rendered output
// and hashes stay deterministic.
type Frontmatter struct {
	keys   []string
	values map[string]any
}

// NewFrontmatter returns an empty ordered frontmatter map.
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{values: make(map[string]any)}
}

// Set stores a value, appending the key on first insertion.
func (f *Frontmatter) Set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it was present.
func (f *Frontmatter) Get(key string) (any, bool) {
	if f == nil || f.values == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// GetString returns the value for key if it is a string.
func (f *Frontmatter) GetString(key string) (string, bool) {
	v, ok := f.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Keys returns the keys in insertion order.
func (f *Frontmatter) Keys() []string {
	if f == nil {
		return nil
	}
	return f.keys
}

// Len returns the number of keys.
func (f *Frontmatter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// MarshalJSON emits the map as a JSON object in insertion order.
func (f *Frontmatter) MarshalJSON() ([]byte, error) {
	if f == nil || len(f.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores the map. Key order follows the JSON document.
func (f *Frontmatter) UnmarshalJSON(data []byte) error {
	f.keys = nil
	f.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return errors.New("frontmatter: expected JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("frontmatter: expected string key")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		f.Set(key, value)
	}
	_, err = dec.Token() // closing brace
	return err
}

// Document is the parsed, immutable form of one markdown file. It is created
// during ingest; only the Embedding field is attached later, by the
// embedding pipeline.
type Document struct {
	// Hash is the digest of the raw file bytes and the document's
	// primary key across every downstream stage.
	Hash Hash `json:"hash"`

	// Path is the vault-relative source path.
	Path string `json:"path"`

	// Slug is the extension-less path used for link resolution.
	Slug string `json:"slug"`

	// Title comes from the first H1 heading or the filename.
	Title string `json:"title"`

	// Frontmatter preserves the YAML header in source order.
	Frontmatter *Frontmatter `json:"frontmatter"`

	// Body is the markdown source after the frontmatter block.
	Body string `json:"body"`

	// Rendered is the rendered output of the body.
	Rendered string `json:"rendered"`

	// PlainText is the body with markdown formatting stripped. It is the
	// embedding input and drives the word count.
	PlainText string `json:"plainText"`

	WordCount int `json:"wordCount"`

	// OutgoingLinks holds the hashes of documents this one links to,
	// sorted and de-duplicated.
	OutgoingLinks []Hash `json:"outgoingLinks,omitempty"`

	// Backlinks is derived by inverting OutgoingLinks across the vault.
	Backlinks []Hash `json:"backlinks,omitempty"`

	// Embedding is attached by the embedding pipeline when a text
	// embedder is configured; nil otherwise.
	Embedding *EmbeddingVector `json:"embedding,omitempty"`
}

// Validate checks the invariants every ingested document must satisfy.
func (d *Document) Validate() error {
	if d.Hash.IsZero() {
		return errors.New("document hash must be computed")
	}
	if d.Path == "" {
		return errors.New("document path cannot be empty")
	}
	if d.Slug == "" {
		return errors.New("document slug cannot be empty")
	}
	return nil
}
