package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-parser/internal/share"
	"video-parser/pkg/models"
)

// ParserSource picks a parser for a link or share text
type ParserSource interface {
	GetParserForText(text string) (models.Parser, models.Platform, error)
}

// BatchManager parses lists of share links with a bounded worker pool
type BatchManager struct {
	source        ParserSource
	observer      ParseRecorder
	logger        zerolog.Logger
	maxConcurrent int
	ctx           context.Context
	cancel        context.CancelFunc
	workers       sync.WaitGroup
}

// ParseRecorder receives one call per finished parse
type ParseRecorder interface {
	ParseStarted()
	RecordParse(platform models.Platform, err error, duration time.Duration)
}

// BatchJob represents a batch parse job
type BatchJob struct {
	ID          string
	URLs        []string
	Status      JobStatus
	Progress    BatchProgress
	Results     []BatchResult
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error

	mu   sync.Mutex
	done chan struct{}
}

// JobStatus represents the status of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusPartial   JobStatus = "partial"
)

// Result statuses
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// BatchProgress tracks progress of a batch job
type BatchProgress struct {
	Total      int
	Completed  int
	Failed     int
	Skipped    int
	Percentage float64
}

// BatchResult is the outcome for one input line. Results keep input order.
type BatchResult struct {
	Index    int
	Input    string
	URL      string
	Platform models.Platform
	Data     interface{}
	Response *models.APIResponse
	Status   string
	Error    error
	Duration time.Duration
}

// NewBatchManager creates a manager running at most maxConcurrent parses at once
func NewBatchManager(source ParserSource, maxConcurrent int) *BatchManager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &BatchManager{
		source:        source,
		logger:        zerolog.New(os.Stdout).With().Timestamp().Str("component", "batch_manager").Logger(),
		maxConcurrent: maxConcurrent,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetLogger sets the logger
func (bm *BatchManager) SetLogger(logger zerolog.Logger) {
	bm.logger = logger.With().Str("component", "batch_manager").Logger()
}

// SetRecorder reports every parse to r
func (bm *BatchManager) SetRecorder(r ParseRecorder) {
	bm.observer = r
}

// NewJob creates a pending job for the given inputs
func NewJob(inputs []string) *BatchJob {
	return &BatchJob{
		ID:       fmt.Sprintf("batch_%d", time.Now().UnixNano()),
		URLs:     inputs,
		Status:   JobStatusPending,
		Progress: BatchProgress{Total: len(inputs)},
		Results:  make([]BatchResult, len(inputs)),
		done:     make(chan struct{}),
	}
}

// Start runs the job in the background; Wait blocks until it finishes
func (bm *BatchManager) Start(inputs []string) *BatchJob {
	job := NewJob(inputs)
	bm.workers.Add(1)
	go func() {
		defer bm.workers.Done()
		bm.Run(bm.ctx, job)
	}()
	return job
}

// Run parses every input of job and returns when all are done
func (bm *BatchManager) Run(ctx context.Context, job *BatchJob) {
	bm.logger.Info().Str("job_id", job.ID).Int("total", len(job.URLs)).Msg("Starting batch job")

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.StartedAt = time.Now()
	job.mu.Unlock()

	defer func() {
		job.mu.Lock()
		now := time.Now()
		job.CompletedAt = &now
		updateJobStatus(job, ctx.Err() != nil)
		status := job.Status
		job.mu.Unlock()
		close(job.done)
		bm.logger.Info().Str("job_id", job.ID).Str("status", string(status)).Msg("Batch job completed")
	}()

	semaphore := make(chan struct{}, bm.maxConcurrent)
	var wg sync.WaitGroup

	for i, input := range job.URLs {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			bm.skip(job, i, input)
			continue
		}

		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				bm.skip(job, i, input)
				return
			}
			bm.record(job, i, bm.ParseOne(ctx, i, input))
		}(i, input)
	}

	wg.Wait()
}

// Wait blocks until the job has finished
func (j *BatchJob) Wait() {
	<-j.done
}

// Snapshot returns a copy of the job's progress and results
func (j *BatchJob) Snapshot() (JobStatus, BatchProgress, []BatchResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]BatchResult, len(j.Results))
	copy(results, j.Results)
	return j.Status, j.Progress, results
}

// ParseOne detects the platform of input and runs its parser. index is
// copied into the result.
func (bm *BatchManager) ParseOne(ctx context.Context, index int, input string) BatchResult {
	result := BatchResult{Index: index, Input: input, URL: share.ExtractURL(input)}
	start := time.Now()

	parser, p, err := bm.source.GetParserForText(input)
	if err != nil {
		result.Status = ResultFailed
		result.Error = fmt.Errorf("no parser for %q: %w", input, err)
		result.Duration = time.Since(start)
		return result
	}
	result.Platform = p

	if bm.observer != nil {
		bm.observer.ParseStarted()
	}
	data, err := safeParse(ctx, parser, result.URL)
	result.Duration = time.Since(start)
	if bm.observer != nil {
		bm.observer.RecordParse(p, err, result.Duration)
	}

	_, result.Response = parser.Codes().Respond(data, err)
	if err != nil {
		result.Status = ResultFailed
		result.Error = err
		bm.logger.Warn().Err(err).Str("url", result.URL).Msg("Parse failed")
		return result
	}

	result.Status = ResultCompleted
	result.Data = data
	bm.logger.Debug().Str("url", result.URL).Str("platform", string(p)).Msg("Parse completed")
	return result
}

func safeParse(ctx context.Context, parser models.Parser, rawURL string) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = models.NewParseError(models.KindInternal, parser.Platform(), rawURL, fmt.Sprint(r))
		}
	}()
	return parser.Parse(ctx, rawURL)
}

func (bm *BatchManager) skip(job *BatchJob, index int, input string) {
	bm.record(job, index, BatchResult{
		Index:  index,
		Input:  input,
		URL:    share.ExtractURL(input),
		Status: ResultSkipped,
		Error:  context.Canceled,
	})
}

func (bm *BatchManager) record(job *BatchJob, index int, result BatchResult) {
	job.mu.Lock()
	defer job.mu.Unlock()

	job.Results[index] = result
	switch result.Status {
	case ResultCompleted:
		job.Progress.Completed++
	case ResultFailed:
		job.Progress.Failed++
	case ResultSkipped:
		job.Progress.Skipped++
	}
	updateProgress(job)
}

// updateProgress updates job progress
func updateProgress(job *BatchJob) {
	total := float64(job.Progress.Total)
	if total > 0 {
		job.Progress.Percentage = float64(job.Progress.Completed+job.Progress.Failed+job.Progress.Skipped) / total * 100
	}
}

// updateJobStatus sets the final job status
func updateJobStatus(job *BatchJob, cancelled bool) {
	switch {
	case cancelled:
		job.Status = JobStatusCancelled
	case job.Progress.Failed > 0 && job.Progress.Completed > 0:
		job.Status = JobStatusPartial
	case job.Progress.Failed == job.Progress.Total && job.Progress.Total > 0:
		job.Status = JobStatusFailed
	default:
		job.Status = JobStatusCompleted
	}
}

// Close cancels running jobs and waits for them
func (bm *BatchManager) Close() error {
	bm.cancel()
	bm.workers.Wait()
	return nil
}

// ReadInputs reads one link or share text per line, skipping blanks and # comments
func ReadInputs(r io.Reader) ([]string, error) {
	var inputs []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading inputs: %w", err)
	}
	return inputs, nil
}
