// Package transform holds the named unit transformations the shardpool
// command runs inside a pool: document filters, text preprocessors and
// the per-topic keyphrase extractor.
//
// Every transformation is registered under a short name and built from a
// configuration string of the form "NAME ARG...", for example
//
//	fn, err := transform.Filters.Build("wordcount 10 500")
//
// A built transformation is a pool.TransformFunc and can be handed straight
// to pool.New. Units a transformation rejects come back as errors wrapping
// ErrRejected, so the pool logs and drops them.
package transform
