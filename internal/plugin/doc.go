// Package plugin manages the pipeline's pluggable capabilities.
//
// Each plugin implements one named capability (text embedding, image
// processing, similarity, database assembly) and declares the capabilities
// it depends on. The Manager validates the whole dependency graph before
// any build work starts and initializes plugins in deterministic
// topological order.
//
// # Lifecycle
//
// A plugin moves through Registered → Resolved → Initialized, or Failed if
// its init hook returns an error. A Failed plugin is treated as absent for
// the rest of the run; a hard dependent of a Failed plugin aborts the build.
//
// # Usage
//
//	mgr := plugin.NewManager()
//	if err := mgr.Register(local.New()); err != nil { ... }
//	if err := mgr.Register(similarity.NewPlugin()); err != nil { ... }
//
//	ordered, err := mgr.Resolve()        // Missing/Cyclic errors happen here
//	err = mgr.Initialize(ctx, initCtx)   // strictly in resolved order
//
//	embedder, ok := plugin.Lookup[plugin.TextEmbedder](mgr, plugin.CapTextEmbedder)
//
// # Hard vs soft dependencies
//
// Requires() lists hard dependencies: Resolve fails with
// MissingDependencyError when one is absent. Optional() lists soft
// dependencies that only influence ordering when both ends are configured;
// their absence degrades functionality instead of failing the build.
//
// After Initialize returns, the registry is read-only. Lookup is safe from
// concurrent workers.
package plugin
