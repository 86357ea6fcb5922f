package integration

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// MockImageProcessor provides a fake image processor for testing. It
// "resizes" by writing a small marker file and counts generation calls, so
// tests can verify deduplication by content hash.
type MockImageProcessor struct {
	width  int
	height int

	ProcessCalls atomic.Int32
}

// NewMockImageProcessor creates a processor that reports every source as
// width x height.
func NewMockImageProcessor(width, height int) *MockImageProcessor {
	return &MockImageProcessor{width: width, height: height}
}

func (m *MockImageProcessor) Name() string { return plugin.CapImageProcessor }

func (m *MockImageProcessor) Requires() []string { return nil }

func (m *MockImageProcessor) Optional() []string { return nil }

func (m *MockImageProcessor) Init(context.Context, *plugin.InitContext) error { return nil }

func (m *MockImageProcessor) CanProcess(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

func (m *MockImageProcessor) Metadata(path string) (plugin.ImageMetadata, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return plugin.ImageMetadata{Width: m.width, Height: m.height, Format: format}, nil
}

func (m *MockImageProcessor) Process(ctx context.Context, input, output string, opts plugin.ProcessOptions) (types.Variant, error) {
	if err := ctx.Err(); err != nil {
		return types.Variant{}, err
	}
	m.ProcessCalls.Add(1)

	data := fmt.Sprintf("variant %dx%d %s q%d\n", opts.Width, opts.Height, opts.Format, opts.Quality)
	if err := os.WriteFile(output, []byte(data), 0o644); err != nil {
		return types.Variant{}, err
	}
	return types.Variant{
		Format: opts.Format,
		Width:  opts.Width,
		Height: opts.Height,
		Size:   int64(len(data)),
	}, nil
}

func (m *MockImageProcessor) Copy(ctx context.Context, input, output string) (types.Variant, error) {
	if err := ctx.Err(); err != nil {
		return types.Variant{}, err
	}
	src, err := os.Open(input)
	if err != nil {
		return types.Variant{}, err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(output)
	if err != nil {
		return types.Variant{}, err
	}
	defer func() { _ = dst.Close() }()

	n, err := io.Copy(dst, src)
	if err != nil {
		return types.Variant{}, err
	}
	return types.Variant{Size: n, Copied: true}, nil
}
