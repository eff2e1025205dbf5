package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/domain"
)

// ResultPusher sends a finished attempt to the remote quiz-result store.
type ResultPusher interface {
	Submit(ctx context.Context, submission domain.Submission) (domain.SubmitReceipt, error)
}

// PushTask is a one-shot remote push. It is never retried.
type PushTask struct {
	done    chan struct{}
	err     error
	receipt domain.SubmitReceipt
}

// Done is closed once the push attempt has completed, successfully or not.
func (t *PushTask) Done() <-chan struct{} { return t.done }

// Err reports the push failure, if any. Only meaningful after Done is closed.
func (t *PushTask) Err() error {
	<-t.done
	return t.err
}

// Receipt returns the remote acknowledgement after a successful push.
func (t *PushTask) Receipt() domain.SubmitReceipt {
	<-t.done
	return t.receipt
}

// Reconciler commits results locally first, then pushes them remotely on a best-effort basis.
// The local ledger is the source of truth; the remote store is an eventually-updated replica.
type Reconciler struct {
	ledger  *Ledger
	pusher  ResultPusher
	timeout time.Duration
}

func NewReconciler(ledger *Ledger, pusher ResultPusher, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{ledger: ledger, pusher: pusher, timeout: timeout}
}

// Commit appends the result to the ledger. An identity failure aborts the commit:
// anonymous results are not persisted anywhere.
func (r *Reconciler) Commit(ctx context.Context, result SessionResult) (domain.AttemptRecord, error) {
	return r.ledger.Append(ctx, domain.AttemptCandidate{
		StudentID:   result.Identity.StudentID,
		StudentName: result.Identity.StudentName,
		QuizID:      result.QuizID,
		Score:       result.Score,
		Total:       result.Total,
		Answers:     result.Answers,
	})
}

// PushRemote starts one asynchronous push of an already committed record.
// The push outlives the caller's cancellation but is bounded by the reconciler timeout.
// Failures are logged and surfaced only through the task.
func (r *Reconciler) PushRemote(ctx context.Context, record domain.AttemptRecord) *PushTask {
	task := &PushTask{done: make(chan struct{})}
	if r.pusher == nil {
		task.err = domain.ErrRemoteUnavailable
		close(task.done)
		return task
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	go func() {
		defer close(task.done)
		defer cancel()

		receipt, err := r.pusher.Submit(pushCtx, domain.SubmissionFor(record))
		if err != nil {
			task.err = err
			logrus.WithFields(logrus.Fields{
				"recordId":  record.ID,
				"quizId":    record.QuizID,
				"studentId": record.StudentID,
				"error":     err,
			}).Warn("remote result push failed; local record kept")
			return
		}
		task.receipt = receipt
		logrus.WithFields(logrus.Fields{
			"recordId": record.ID,
			"remoteId": receipt.ID,
		}).Debug("remote result push accepted")
	}()
	return task
}

// Finalize is Commit followed by PushRemote; the push never starts before the commit returns.
func (r *Reconciler) Finalize(ctx context.Context, result SessionResult) (domain.AttemptRecord, *PushTask, error) {
	record, err := r.Commit(ctx, result)
	if err != nil {
		return domain.AttemptRecord{}, nil, err
	}
	return record, r.PushRemote(ctx, record), nil
}
