package viewer

import "remoteplay/native/internal/domain"

// candidateQueue holds remote candidates that arrive before the remote
// description is applied. It is flushed exactly once.
type candidateQueue struct {
	pending []domain.Candidate
	flushed bool
	closed  bool
}

// add applies c immediately once the queue is drained, otherwise queues it.
func (q *candidateQueue) add(c domain.Candidate, apply func(domain.Candidate)) {
	if q.closed {
		return
	}
	if q.flushed {
		apply(c)
		return
	}
	q.pending = append(q.pending, c)
}

// flush applies every queued candidate in arrival order. Later calls are
// no-ops.
func (q *candidateQueue) flush(apply func(domain.Candidate)) {
	if q.flushed || q.closed {
		return
	}
	q.flushed = true
	pending := q.pending
	q.pending = nil
	for _, c := range pending {
		apply(c)
	}
}

func (q *candidateQueue) drained() bool { return q.flushed }

// discard drops queued candidates on teardown.
func (q *candidateQueue) discard() {
	q.pending = nil
	q.closed = true
}
