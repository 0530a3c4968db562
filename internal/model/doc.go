// Package model defines the core data types shared across the feed:
// ticker records, klines, and their JSON wire shapes.
//
// TickerRecord is the unit of the feed. A full set of records for all
// configured symbols is a snapshot; push and pull surfaces both deliver
// complete snapshots, never deltas.
package model
