package scheduler

import "sync/atomic"

// RequestState tracks whether a submitted request has been replied to,
// guaranteeing exactly-once reply when both worker completion and the
// lane deadline timer can fire (§4.4, testable property #10).
type RequestState struct {
	replied   atomic.Bool
	cancelled atomic.Bool
}

// NewRequestState returns a fresh, unreplied, uncancelled state.
func NewRequestState() *RequestState {
	return &RequestState{}
}

// ClaimReply atomically claims the right to reply; it returns true for
// exactly one caller even under concurrent attempts.
func (s *RequestState) ClaimReply() bool {
	return !s.replied.Swap(true)
}

// HasReplied reports whether a reply has already been claimed.
func (s *RequestState) HasReplied() bool {
	return s.replied.Load()
}

// MarkCancelled records that the request was cancelled (e.g. its deadline
// elapsed before a worker reached it).
func (s *RequestState) MarkCancelled() {
	s.cancelled.Store(true)
}

// IsCancelled reports whether the request was cancelled.
func (s *RequestState) IsCancelled() bool {
	return s.cancelled.Load()
}
