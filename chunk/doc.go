// Package chunk turns record streams into size-capped sets of files and
// reads such file sets back as a single lazy sequence.
//
// The two halves are Writer and Reader. A Writer accepts records one at a
// time, buffers them in memory and spreads them over as many files as its
// per-file record cap requires:
//
//	w, err := chunk.NewWriter("corpus",
//	    chunk.WithDir(outDir),
//	    chunk.WithExtension("filtered"),
//	    chunk.WithMaxRecords(50000),
//	)
//	if err != nil {
//	    return err
//	}
//	err = chunk.Use(w, func(w *chunk.Writer) error {
//	    for _, doc := range docs {
//	        if err := w.Write(doc); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
//
// Capped writers name their files <prefix>.part<N>.<extension>; uncapped
// writers produce a single <prefix>.<extension>. Use closes the writer when
// the callback succeeds and deletes every file it created when it fails.
//
// A Reader replays one or more files in order:
//
//	r, err := chunk.NewReader[Document](w.Files())
//	for doc := range r.Records() {
//	    // ...
//	}
//
// Files are either a JSON array of records or newline-delimited JSON; the
// reader sniffs which one it got. Paths ending in .gz or .zst are gzip or
// zstd compressed on both sides. A file that cannot be opened or parsed is
// logged and skipped so one bad shard never hides the rest of the set.
package chunk
