package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
)

/**
 * @brief A unit of work for the job system. OnStart runs on a worker; on
 * success OnComplete receives its result, otherwise OnFailure the error.
 * OnCompletionCallback always runs last.
 */
type JobTask struct {
	Name                 string
	InputParams          interface{}
	OnStart              func(params interface{}) (interface{}, error)
	OnComplete           func(result interface{})
	OnFailure            func(err error)
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer func() {
		// Call the completion callback if set
		if job.OnCompletionCallback != nil {
			job.OnCompletionCallback()
		}
	}()

	result, err := js.execute(job)
	if err != nil {
		core.LogError("job '%s' failed: %s", job.Name, err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(result)
	}
}

func (js *JobSystem) execute(job JobTask) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	if job.OnStart == nil {
		return nil, nil
	}
	return job.OnStart(job.InputParams)
}

/**
 * @brief Shuts the job system down, waiting for queued jobs to finish.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full, unless ctx is done first.
 */
func (js *JobSystem) Submit(ctx context.Context, jt JobTask) error {
	select {
	case js.jobQueue <- jt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
