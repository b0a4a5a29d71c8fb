// Package exposition publishes the derived funnel metrics in the Prometheus
// text exposition format so that the pipeline can be scraped and graphed
// alongside other dashboards.
//
// Per-stage gauges carry a `stage` label; summary gauges carry none. Win rates
// that have no numeric value (zero-volume stages) are omitted.
package exposition
