// Package onboarding defines the core types and interfaces shared across the
// extraction pipeline: jobs, category node runs, progress events, context
// bundles, merged records, and the contracts implemented by sibling packages.
package onboarding
