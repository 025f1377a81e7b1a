// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// Worker owns one task type's job subscription so the manager can stop
// polling before the Zeebe client itself is torn down. The client is
// shared across workers and is closed by its owner, never here.
type Worker struct {
	jobWorker worker.JobWorker
	taskType  string
	log       *zap.Logger
}

// StartWorker opens a job subscription for taskType on the shared
// Zeebe client. maxJobsActive bounds how many jobs this subscription
// holds at once; timeout is how long the broker waits before handing
// an unfinished job to another worker.
func StartWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handlerFunc func(worker.JobClient, entities.Job),
	log *zap.Logger,
) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobsActive),
		zap.Duration("timeout", timeout),
	)

	return &Worker{
		jobWorker: jobWorker,
		taskType:  taskType,
		log:       log,
	}
}

// Close drains the subscription; jobs already handed to the handler
// run to completion.
func (w *Worker) Close() {
	w.log.Info("stopping worker", zap.String("taskType", w.taskType))
	w.jobWorker.Close()
}
