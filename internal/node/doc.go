// Package node implements the execution unit of the pipeline: one (job,
// category) run through crawl, extract, and post-processing, with a bounded
// retry loop around transient failures.
package node
