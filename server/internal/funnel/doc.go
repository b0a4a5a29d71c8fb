// Package funnel derives sales-pipeline metrics from an ordered list of stages.
//
// The last stage of the list is treated as the terminal ("Won") stage and is the
// numerator of every win rate. For each stage:
//
//	winRate = round(terminal / stage * 100)    formatted "<int>%"
//	lost    = stage - next                     0 for the terminal stage
//	moved   = next                             0 for the terminal stage
//
// Both the count and the ACV (annual contract value) measures are derived.
// Everything is a pure transformation; nothing is cached between calls.
package funnel
