// Package scheduler admits onboarding jobs from a priority queue and drives
// each one through its four category nodes under the selected execution
// strategy. Global semaphores bound concurrent jobs and concurrent nodes;
// the tenancy node always waits for the configuration node's terminal state.
package scheduler
