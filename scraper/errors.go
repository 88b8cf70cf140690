package scraper

import "errors"

// Error taxonomy. Field-level parse failures never surface as errors; they
// collapse to the absent sentinel. Everything below except ErrAgentUnresolved
// is absorbed into partial results by the orchestrator.
var (
	// ErrAgentUnresolved means the agent's listing index did not yield an
	// identity. Fatal for that agent's run only.
	ErrAgentUnresolved = errors.New("agent could not be resolved")

	// ErrPageLoadTimeout marks a navigation that exhausted its retries or
	// its ready-selector wait. The caller gets whatever markup was present.
	ErrPageLoadTimeout = errors.New("page load timed out")

	// ErrInvalidPropertyPage means the page has no recognizable listing
	// layout at all. The record is kept as partial and skipped for counts.
	ErrInvalidPropertyPage = errors.New("not a recognizable property page")

	// ErrPaginationLoop is returned with the links gathered so far when the
	// site's next control cycles back onto an already-seen page.
	ErrPaginationLoop = errors.New("pagination loop detected")
)
