// Package actions is the session-scoped action execution engine: it drives
// one session through one action (Executor), fans a request out over every
// registered session with pacing (Orchestrator), sequences independent
// batches with per-item isolation (Bulk), and keeps the bounded in-memory
// log of completed requests (History).
package actions
