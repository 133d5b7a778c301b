package table

// Clock is the table's logical revision counter.
//
// Every committed mutation advances it by one. Comparing revisions tells a
// caller whether anything changed between two points, without diffing rows
// or columns. Revisions never decrease and are not wall-clock based.
//
// The table has exactly one owner, so Clock needs no synchronisation.
type Clock struct {
	seq int64
}

// Next advances the clock and returns the new revision.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the current revision without advancing.
func (c *Clock) Current() int64 {
	return c.seq
}
