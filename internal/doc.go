// Package internal provides the core of cxxlink: it finds extern "C" and
// extern "C++" declaration blocks in source text and turns every declaration
// into a binding carrying its linkage name.
//
// Key components:
//
// Engine: coordinates a run. It locates blocks in the token tree, hands each
// block to the extractor and mangles the resulting descriptors once the whole
// block is extracted.
//
// Extractor (package extract): the per-block state machine that matches
// declarations and arguments with codematch patterns and builds
// FunctionDescriptors.
//
// Registries (package registry): class hints and type strategies shared by
// every block an engine processes. Both are safe for concurrent use.
//
// Diagnostic: a failed block located by file, line and column. A failing
// block does not stop the blocks after it.
//
// SourceCode: a simple structure to represent the content of a source file as a collection of lines.
//
// Usage:
//
//	engine, err := internal.NewEngine(internal.Options{Scheme: mangle.SchemeItanium})
//	if err != nil {
//	    // handle error
//	}
//
//	blocks, err := engine.Run("src/bridge.rs")
//	for _, d := range internal.Diagnostics(err) {
//	    fmt.Println(d)
//	}
//	for _, b := range blocks {
//	    for _, binding := range b.Bindings {
//	        fmt.Println(binding.Function.Name, binding.LinkName)
//	    }
//	}
//
// This package is intended for internal use within cxxlink and should not be
// imported by external packages.
package internal
