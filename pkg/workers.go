package timeconst

import (
	"errors"
	"fmt"
	"sync"
)

type fitJob struct {
	Channel int
	Index   int
	Profile *Profile
}

type fitOutcome struct {
	Job    fitJob
	Result FitResult
	Err    error
}

func worker(id int, fitter *StagedDecayFitter, jobs <-chan fitJob, results chan<- fitOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		if fitter.Verbosity > 1 {
			logger.Info(fmt.Sprintf("Worker %d fitting %s", id, job.Profile.Name()), "workers")
		}
		results <- fitOne(id, fitter, job)
	}
}

// fitOne runs the staged fit of a single job, turning a panic into a failed
// result so the rest of the series is still fitted.
func fitOne(id int, fitter *StagedDecayFitter, job fitJob) (out fitOutcome) {
	out.Job = job
	defer func() {
		if r := recover(); r != nil {
			out.Result = FitResult{
				SeriesID: job.Profile.SeriesID,
				Channel:  job.Channel,
				Position: job.Profile.Position,
				Status:   StatusPanic,
			}
			out.Err = fmt.Errorf("worker %d recovered from panic fitting %s: %v", id, job.Profile.Name(), r)
		}
		out.Result.Index = job.Index
	}()
	out.Result, out.Err = fitter.Fit(job.Profile)
	return out
}

// runFits fits every job in a pool of numWorkers goroutines and stores each
// result in its (channel, index) slot. It returns after all jobs finished.
func runFits(fitter *StagedDecayFitter, numWorkers int, jobList []fitJob, slots *[2][]FitResult) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	jobs := make(chan fitJob, numWorkers)
	results := make(chan fitOutcome, numWorkers)

	var wg sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go worker(w, fitter, jobs, results, &wg)
	}
	go func() {
		for _, job := range jobList {
			jobs <- job
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		if out.Err != nil {
			var werr *ErrWindow
			if errors.As(out.Err, &werr) {
				logger.Error(fmt.Sprintf("%s: %v", out.Job.Profile.Name(), out.Err))
			} else {
				logger.Error(out.Err.Error())
			}
		}
		slots[out.Job.Channel][out.Job.Index] = out.Result
	}
}
