// Package crawler turns a seed listing URL into a bounded extraction context
// per category: it discovers and scores outbound links, traverses the best
// ones breadth-first under page and depth caps, classifies every content
// block into priority buckets, and allocates a fixed character budget across
// the buckets.
package crawler
