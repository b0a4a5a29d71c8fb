// Package types defines the shared Go types used by the funnelstack server and
// CLI. These are the canonical in-memory and JSON representations of funnel
// stages, both as read from a data source and after metric derivation.
package types
