// Package api exposes the HTTP interface for the onboarding service: job
// submission, status and event polling, result retrieval, competitor
// comparison, export, and the operational endpoints.
package api
