package dataset

import "database/sql"

// Cursor iterates over a streamed record query without materializing the
// whole result set.
type Cursor struct {
	rows    *sql.Rows
	current AudioRecord
	err     error
}

// Next advances the cursor. It returns false when the result set is
// exhausted or an error occurred; check Err after the loop.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	record, err := scanRecord(c.rows)
	if err != nil {
		c.err = err
		return false
	}
	c.current = record
	return true
}

// Record returns the record at the current cursor position.
func (c *Cursor) Record() AudioRecord {
	return c.current
}

// Err reports any error encountered during iteration.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the underlying query resources.
func (c *Cursor) Close() error {
	return c.rows.Close()
}
