package report

import (
	"context"
	"sync"
)

// Result pairs one batch entry with its outcome. A failed entry never
// aborts the batch; Err is set per pattern.
type Result struct {
	Index  int     `json:"index"`
	Report *Report `json:"report,omitempty"`
	Err    error   `json:"-"`
	// Error carries the failure text for serialization.
	Error string `json:"error,omitempty"`
}

// AnalyzeBatch runs the pipeline for every request in parallel across the
// configured worker count. Results are returned in input order. Requests
// are independent: a parse failure or deadline on one entry is recorded in
// its Result while the rest of the batch completes.
func (s *Service) AnalyzeBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	workers := s.cfg.Batch.Workers
	if workers > len(reqs) {
		workers = len(reqs)
	}
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				rep, err := s.Analyze(ctx, reqs[i])
				results[i] = Result{Index: i, Report: rep, Err: err}
				if err != nil {
					results[i].Error = err.Error()
				}
			}
		}()
	}
	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
