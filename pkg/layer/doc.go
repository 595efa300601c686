/*
Package layer tracks which byte ranges of an object each storage layer holds.

A CompositeLayer keeps two extent sets, one for reads and one for writes.
Entries are added (optionally coalescing with their neighbors), matched against
requests, subtracted, and retired through a two-step protocol: operations mark
entries for deletion and DeleteMarkedExtents sweeps them. Between the two steps
marked entries are ignored by matching but still reported by HasReadExtents and
HasWriteExtents.

MatchExtent classifies a request as MatchNone, MatchPartial or MatchFull, or
MatchError for invalid input and corrupted sets:

	m, err := l.MatchExtent(extent.New(4096, 8192), layer.MatchIntersect, false, false)
	if err != nil {
		return err
	}
	for _, gap := range m.Gaps() {
		// fetch gap from the next layer
	}

Layers are scanned in ascending Priority. Stack keeps a set of layers in that
order behind a read/write lock and answers which layer holds each byte of a
request with Locate.
*/
package layer
