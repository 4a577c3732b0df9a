package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
)

// memStore backs both repository fakes so post and target writes see each
// other like they would in Postgres.
type memStore struct {
	mu      sync.Mutex
	posts   map[int64]*models.Post
	targets map[int64]*models.Target
	err     error
}

func newMemStore() *memStore {
	return &memStore{posts: map[int64]*models.Post{}, targets: map[int64]*models.Target{}}
}

func (s *memStore) addPost(p *models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

func (s *memStore) addTarget(t *models.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = models.TargetStatusPending
	}
	s.targets[t.ID] = t
}

func (s *memStore) post(id int64) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.posts[id]
}

func (s *memStore) target(id int64) models.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.targets[id]
}

type memPosts struct{ *memStore }

func (r memPosts) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r memPosts) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (r memPosts) MarkPublished(ctx context.Context, postID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Status = models.PostStatusPublished
		if p.PublishedAt == nil {
			p.PublishedAt = &at
		}
	}
	return nil
}

func (r memPosts) MarkFailedIfScheduled(ctx context.Context, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusFailed
	return true, nil
}

func (r memPosts) BumpScheduleVersion(ctx context.Context, postID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return 0, nil
	}
	p.ScheduleVersion++
	return p.ScheduleVersion, nil
}

func (r memPosts) ListOverdueScheduled(ctx context.Context, before time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, p := range r.posts {
		if p.Status == models.PostStatusScheduled && p.ScheduledTime != nil && p.ScheduledTime.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memPosts) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	for tid, t := range r.targets {
		if t.PostID == id {
			delete(r.targets, tid)
		}
	}
	return nil
}

type memTargets struct{ *memStore }

func (r memTargets) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok {
		return nil, nil
	}
	return r.withVersion(t), nil
}

func (r memTargets) ListByPostID(ctx context.Context, postID int64) ([]*models.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Target
	for _, t := range r.targets {
		if t.PostID == postID {
			out = append(out, r.withVersion(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// withVersion copies t the way the joined select does. Callers hold mu.
func (r memTargets) withVersion(t *models.Target) *models.Target {
	cp := *t
	if p, ok := r.posts[t.PostID]; ok {
		cp.ScheduleVersion = p.ScheduleVersion
	}
	return &cp
}

func (r memTargets) transition(id int64, apply func(t *models.Target)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok || t.Status != models.TargetStatusPending {
		return false
	}
	apply(t)
	return true
}

func (r memTargets) MarkPublished(ctx context.Context, id int64, externalPostID string, at time.Time) (bool, error) {
	return r.transition(id, func(t *models.Target) {
		t.Status = models.TargetStatusPublished
		t.ExternalPostID = externalPostID
		t.PublishedAt = &at
	}), nil
}

func (r memTargets) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	return r.transition(id, func(t *models.Target) {
		t.Status = models.TargetStatusFailed
		t.ErrorMessage = reason
	}), nil
}

func (r memTargets) ResetFailed(ctx context.Context, postID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.targets {
		if t.PostID == postID && t.Status == models.TargetStatusFailed {
			t.Status = models.TargetStatusPending
			t.ErrorMessage = ""
			n++
		}
	}
	return n, nil
}

func (r memTargets) FailPending(ctx context.Context, postID int64, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.targets {
		if t.PostID == postID && t.Status == models.TargetStatusPending {
			t.Status = models.TargetStatusFailed
			t.ErrorMessage = reason
			n++
		}
	}
	return n, nil
}

type memJob struct {
	id      int
	payload queue.PublishPayload
	delay   time.Duration
}

// memQueue keeps not-yet-started jobs and an ordered log of calls.
type memQueue struct {
	mu         sync.Mutex
	seq        int
	jobs       []memJob
	ops        []string
	cancelErr  error
	enqueueErr error
}

func (q *memQueue) Enqueue(ctx context.Context, payload queue.PublishPayload, delay time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.seq++
	q.jobs = append(q.jobs, memJob{id: q.seq, payload: payload, delay: delay})
	q.ops = append(q.ops, "enqueue")
	return "job", nil
}

func (q *memQueue) CancelByPost(ctx context.Context, postID int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelErr != nil {
		return 0, q.cancelErr
	}
	kept := q.jobs[:0]
	removed := 0
	for _, j := range q.jobs {
		if j.payload.PostID == postID {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	q.jobs = kept
	q.ops = append(q.ops, "cancel")
	return removed, nil
}

func (q *memQueue) jobsFor(postID int64) []memJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []memJob
	for _, j := range q.jobs {
		if j.payload.PostID == postID {
			out = append(out, j)
		}
	}
	return out
}

// take removes and returns every queued job, as workers claiming them would.
func (q *memQueue) take() []memJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.jobs
	q.jobs = nil
	return jobs
}

type mutexLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *mutexLocker) WithPostLock(ctx context.Context, postID int64, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[int64]*sync.Mutex{}
	}
	m, ok := l.locks[postID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[postID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

var errLockBusy = errors.New("lock busy")

type busyLocker struct{}

func (busyLocker) WithPostLock(ctx context.Context, postID int64, fn func(ctx context.Context) error) error {
	return errLockBusy
}

func timePtr(t time.Time) *time.Time {
	return &t
}
