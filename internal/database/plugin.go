package database

import (
	"context"

	"github.com/iplanwebsites/repomd/internal/plugin"
)

var _ plugin.Database = (*Plugin)(nil)

// Plugin exposes database assembly as the database capability. It soft-
// depends on textEmbedder: when one is configured the artifact carries the
// vector index tables, otherwise they are omitted.
type Plugin struct{}

// NewPlugin returns the database plugin.
func NewPlugin() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return plugin.CapDatabase }

func (p *Plugin) Requires() []string { return nil }

func (p *Plugin) Optional() []string { return []string{plugin.CapTextEmbedder} }

func (p *Plugin) Init(ctx context.Context, ic *plugin.InitContext) error { return nil }

// Build assembles the SQLite artifact for req.
func (p *Plugin) Build(ctx context.Context, req plugin.DatabaseRequest) (plugin.DatabaseResult, error) {
	return Build(ctx, req)
}
