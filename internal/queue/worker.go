package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/postflowhq/autopost/internal/dispatcher"
)

type Worker struct {
	d *dispatcher.Dispatcher
}

func NewWorker(d *dispatcher.Dispatcher) *Worker {
	return &Worker{d: d}
}

// HandlePublishPostTask is the exact-time fast path. It funnels into the
// same claim-then-publish pipeline as the sweep, so a task firing while a
// sweep holds the post simply loses the claim and drops out.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := w.d.ProcessPost(ctx, payload.PostID, time.Now()); err != nil {
		slog.Info("deferred publish skipped", "post_id", payload.PostID, "reason", err.Error())
	}

	return nil
}
