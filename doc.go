// Package dedup implements a bounded-memory, duplicate-eliminating set of
// fixed-width keys for relational executors that need to collect row
// identifiers for multi-table deletion and hand them back in sorted,
// disk-layout order.
//
// A Deduper has two phases: accumulation, then extraction, with no
// rewind. During accumulation, Put inserts keys into an in-memory ordered
// set; once that set would exceed the configured memory budget, it is
// spilled to a scratch file as one sorted run and cleared. During
// extraction, ExtractInto either walks the (never-spilled) in-memory set
// directly into a buffer, or externally merges all spilled runs — via
// bounded fan-in reduction followed by one final k-way merge — dropping
// duplicate keys as they collide across runs.
//
// Basic usage:
//
//	d, err := dedup.New(cmp, 8, 64*1024*1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	for _, key := range rowIDs {
//	    if err := d.Put(key); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	sink := &dedup.BufferSink{}
//	if err := d.ExtractInto(sink); err != nil {
//	    log.Fatal(err)
//	}
//	for i := 0; i < sink.Len(); i++ {
//	    process(sink.Key(i))
//	}
//
// The planner-facing cost model can be consulted without ever
// constructing a Deduper:
//
//	cost := dedup.EstimateCost(rowCount, keyWidth, memBudget, costCfg)
package dedup
