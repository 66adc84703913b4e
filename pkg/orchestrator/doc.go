// Package orchestrator drives several forms through one request/response
// cycle. Read requests render every form unbound. Write requests (POST, and
// PUT as a synonym) bind and validate every form; only when all of them are
// valid are the model-backed forms saved, the success hooks run and the
// client redirected. Otherwise every form is re-rendered with its errors.
package orchestrator
