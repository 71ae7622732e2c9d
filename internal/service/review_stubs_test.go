package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/repository"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

type judgeStub struct {
	chunks  []string
	failErr error
	openErr error
	// hold keeps the stream open after the chunks until the context ends.
	hold bool
	// finished is closed once Recv reports io.EOF; closeGate delays Close until closed.
	finished  chan struct{}
	closeGate chan struct{}

	mu     sync.Mutex
	prompt ai.Prompt
}

func (j *judgeStub) Name() string { return "stub" }

func (j *judgeStub) Stream(ctx context.Context, prompt ai.Prompt) (ai.ChunkStream, error) {
	j.mu.Lock()
	j.prompt = prompt
	j.mu.Unlock()
	if j.openErr != nil {
		return nil, j.openErr
	}
	return &chunkStreamStub{
		ctx:       ctx,
		chunks:    append([]string(nil), j.chunks...),
		failErr:   j.failErr,
		hold:      j.hold,
		finished:  j.finished,
		closeGate: j.closeGate,
	}, nil
}

func (j *judgeStub) lastPrompt() ai.Prompt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.prompt
}

type chunkStreamStub struct {
	ctx       context.Context
	chunks    []string
	failErr   error
	hold      bool
	closed    bool
	finished  chan struct{}
	closeGate chan struct{}
	eofOnce   sync.Once
}

func (c *chunkStreamStub) Recv() (string, error) {
	if err := c.ctx.Err(); err != nil {
		return "", err
	}
	if len(c.chunks) > 0 {
		chunk := c.chunks[0]
		c.chunks = c.chunks[1:]
		return chunk, nil
	}
	if c.hold {
		<-c.ctx.Done()
		return "", c.ctx.Err()
	}
	if c.failErr != nil {
		return "", c.failErr
	}
	if c.finished != nil {
		c.eofOnce.Do(func() { close(c.finished) })
	}
	return "", io.EOF
}

func (c *chunkStreamStub) Close() error {
	if c.closeGate != nil {
		<-c.closeGate
	}
	c.closed = true
	return nil
}

// countingStore wraps a SelectionStore and records every write.
type countingStore struct {
	inner SelectionStore

	mu       sync.Mutex
	resets   int
	applies  []string
	resetErr error
	applyErr map[string]error
}

func (c *countingStore) ResetSelections(ctx context.Context, bountyID string) (int64, error) {
	c.mu.Lock()
	c.resets++
	c.mu.Unlock()
	if c.resetErr != nil {
		return 0, c.resetErr
	}
	return c.inner.ResetSelections(ctx, bountyID)
}

func (c *countingStore) ApplySelection(ctx context.Context, bountyID, submissionID, feedback string) (int64, error) {
	c.mu.Lock()
	c.applies = append(c.applies, submissionID)
	err := c.applyErr[submissionID]
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.inner.ApplySelection(ctx, bountyID, submissionID, feedback)
}

func (c *countingStore) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets + len(c.applies)
}

// fetcherStub serves canned resources, optionally delaying some urls.
type fetcherStub struct {
	resources map[string]Resource
	delays    map[string]time.Duration

	mu        sync.Mutex
	completed []string
}

func (f *fetcherStub) Fetch(ctx context.Context, rawURL string) (Resource, error) {
	if delay := f.delays[rawURL]; delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	f.completed = append(f.completed, rawURL)
	f.mu.Unlock()

	resource, ok := f.resources[rawURL]
	if !ok {
		return Resource{}, errors.New("not found")
	}
	return resource, nil
}

type reviewFixture struct {
	db          *gorm.DB
	bounties    repository.BountyRepository
	submissions repository.SubmissionRepository
	runs        repository.ReviewRunRepository
	store       *countingStore
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	db := setupServiceDB(t)
	submissions := repository.NewSubmissionRepository(db)
	return &reviewFixture{
		db:          db,
		bounties:    repository.NewBountyRepository(db),
		submissions: submissions,
		runs:        repository.NewReviewRunRepository(db),
		store:       &countingStore{inner: submissions},
	}
}

func (f *reviewFixture) seed(t *testing.T, contents ...string) (models.Bounty, []models.Submission) {
	t.Helper()
	bounty := models.Bounty{Title: "Design a logo", Description: "Purple and bold", Prize: "1.5", CreatorAddress: "0xcreator"}
	require.NoError(t, f.bounties.Create(context.Background(), &bounty))

	out := make([]models.Submission, 0, len(contents))
	base := time.Now().Add(-time.Hour)
	for i, content := range contents {
		submission := models.Submission{
			BountyID:      bounty.ID,
			HunterAddress: "0xhunter",
			Content:       content,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.submissions.Create(context.Background(), &submission))
		out = append(out, submission)
	}
	return bounty, out
}

func (f *reviewFixture) service(judge ai.Judge, opts ReviewOptions, locker ReviewLocker) ReviewService {
	return NewReviewService(ReviewServiceConfig{
		Judge:       judge,
		Bounties:    f.bounties,
		Submissions: f.submissions,
		Runs:        f.runs,
		Prompts:     NewPromptBuilder(NewAttachmentExtractor(&fetcherStub{}, 2, testLogger())),
		Applier:     NewSelectionApplier(f.store, 2, testLogger()),
		Locker:      locker,
		Options:     opts,
		Logger:      testLogger(),
	})
}

func (f *reviewFixture) reload(t *testing.T, id string) models.Submission {
	t.Helper()
	var submission models.Submission
	require.NoError(t, f.db.First(&submission, "id = ?", id).Error)
	return submission
}

// drain reads the whole stream the way the HTTP handler does.
func drain(t *testing.T, stream *ReviewStream) []string {
	t.Helper()
	var out []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				select {
				case <-stream.Done():
				case <-timeout:
					t.Fatal("review did not finish")
				}
				return out
			}
			out = append(out, chunk)
		case <-timeout:
			t.Fatal("review stream did not close")
		}
	}
}
