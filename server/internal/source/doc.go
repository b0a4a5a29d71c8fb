// Package source reads the ordered list of funnel stages that the metrics are
// derived from.
//
// Two implementations exist:
//   - File   - a JSON array (or YAML list for .yaml/.yml paths) read in full on
//     every call
//   - SQLite - a `stages` table queried on every call, ordered by `position`
//
// Neither caches: every Stages call reflects the current contents of the
// backing store. All read and decode failures wrap ErrSourceUnavailable.
package source
