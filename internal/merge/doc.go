// Package merge combines the four category node outputs into one canonical
// property record, scores its quality, and diffs it against a competitor's
// record. Merging is deterministic: identical inputs produce byte-identical
// records.
package merge
