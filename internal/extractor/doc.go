// Package extractor wraps the text-to-structured-data capability behind the
// onboarding.Extractor interface. The Anthropic-backed implementation builds
// a category prompt from the schema, parses the model's JSON reply, and
// classifies failures for the retry loop.
package extractor
