// Package render turns a derived pipeline into its presentation forms: a bar
// chart (SVG or PNG) and a table (tab-separated, Markdown or HTML).
//
// Every renderer works on one Measure at a time, either stage counts or ACV,
// the same way the dashboard shows the two side by side.
package render
