// Package media transforms vault media files into output variants.
//
// When an image processor plugin is configured and can handle a file, the
// pipeline generates the configured width variants plus a target format,
// never upscaling beyond the source width. Otherwise the file is copied
// verbatim. Per-item failures fall back to copy and record an issue; they
// never abort the stage.
//
// Variants are content-addressed: output files are named by the source
// hash, so two vault files with identical bytes share one generated
// variant set. The cache also primes from a previously published build,
// making incremental rebuilds skip regeneration entirely for unchanged
// media.
package media
