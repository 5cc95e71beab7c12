package pipeline

import (
	"context"
	"database/sql"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/store"
)

// fakePhotoStore mirrors the conditional-update semantics of the SQL
// store: BeginAttempt only transitions from the allowed statuses outside
// the rate window, and FailAttempt applies the attempt-cap decision.
type fakePhotoStore struct {
	mu           sync.Mutex
	photos       map[uuid.UUID]*models.Photo
	incrementErr error
	markDoneErr  error
}

func newFakePhotoStore(photos ...*models.Photo) *fakePhotoStore {
	s := &fakePhotoStore{photos: make(map[uuid.UUID]*models.Photo)}
	for _, p := range photos {
		copied := *p
		s.photos[p.ID] = &copied
	}
	return s
}

func (s *fakePhotoStore) get(photoID uuid.UUID) (*models.Photo, error) {
	p, ok := s.photos[photoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakePhotoStore) GetPhotoByID(photoID uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(photoID)
}

func (s *fakePhotoStore) GetPhoto(photoID, userID uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(photoID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *fakePhotoStore) BeginAttempt(photoID uuid.UUID, minInterval time.Duration, fromStatuses []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[photoID]
	if !ok {
		return false, nil
	}
	if !slices.Contains(fromStatuses, p.Status) {
		return false, nil
	}
	if p.LastAttemptAt.Valid && time.Since(p.LastAttemptAt.Time) < minInterval {
		return false, nil
	}
	p.Status = models.StatusProcessing
	p.LastAttemptAt = sql.NullTime{Time: time.Now(), Valid: true}
	return true, nil
}

func (s *fakePhotoStore) SetClassification(photoID uuid.UUID, classification string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photoID].Classification = sql.NullString{String: classification, Valid: true}
	return nil
}

func (s *fakePhotoStore) IncrementAttempt(photoID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrementErr != nil {
		return 0, s.incrementErr
	}
	p := s.photos[photoID]
	p.AttemptCount++
	return p.AttemptCount, nil
}

func (s *fakePhotoStore) MarkDone(photoID uuid.UUID, enhancedPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markDoneErr != nil {
		return s.markDoneErr
	}
	p := s.photos[photoID]
	p.Status = models.StatusDone
	p.EnhancedPath = sql.NullString{String: enhancedPath, Valid: true}
	return nil
}

func (s *fakePhotoStore) FailAttempt(photoID uuid.UUID, maxAttempts int, fallbackStatus string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.photos[photoID]
	if p.AttemptCount >= maxAttempts {
		p.Status = models.StatusError
	} else {
		p.Status = fallbackStatus
	}
	return p.Status, p.AttemptCount, nil
}

func (s *fakePhotoStore) ListRetryable(minInterval time.Duration, maxAttempts, limit int) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.Status != models.StatusPending || p.AttemptCount >= maxAttempts {
			continue
		}
		last := p.CreatedAt
		if p.LastAttemptAt.Valid {
			last = p.LastAttemptAt.Time
		}
		if time.Since(last) < minInterval {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakePhotoStore) RecoverStalled(staleAfter time.Duration, maxAttempts int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recovered int64
	for _, p := range s.photos {
		if p.Status != models.StatusProcessing {
			continue
		}
		if !p.LastAttemptAt.Valid || time.Since(p.LastAttemptAt.Time) < staleAfter {
			continue
		}
		if p.AttemptCount >= maxAttempts {
			p.Status = models.StatusError
		} else {
			p.Status = models.StatusPending
		}
		recovered++
	}
	return recovered, nil
}

type fakeCreditStore struct {
	mu        sync.Mutex
	allowance int
	consumed  int
	unlimited bool
}

func (s *fakeCreditStore) Ledger(userID uuid.UUID) (*models.CreditLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.CreditLedger{UserID: userID, Allowance: s.allowance, Consumed: s.consumed, Unlimited: s.unlimited}, nil
}

func (s *fakeCreditStore) Authorize(userID uuid.UUID, count int) (*models.CreditDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.allowance - s.consumed
	return &models.CreditDecision{
		Allowed:    s.unlimited || count <= remaining,
		Unlimited:  s.unlimited,
		Allowance:  s.allowance,
		Consumed:   s.consumed,
		Remaining:  remaining,
		Requested:  count,
		Affordable: remaining,
	}, nil
}

func (s *fakeCreditStore) Consume(userID uuid.UUID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlimited {
		return nil
	}
	if s.consumed+count > s.allowance {
		return store.ErrInsufficientCredit
	}
	s.consumed += count
	return nil
}

type fakeBlobStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploadErr   error
	downloadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Upload(storagePath string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[storagePath] = data
	return nil
}

func (s *fakeBlobStore) Download(storagePath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.objects[storagePath]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

type fakeClassifier struct {
	label string
	err   error
	calls int
}

func (c *fakeClassifier) Classify(ctx context.Context, imageData []byte) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.label, nil
}

type fakeEnhancer struct {
	mu             sync.Mutex
	output         []byte
	err            error
	calls          int
	lastInput      []byte
	lastClass      string
	lastRoomHint   string
	lastCustomText string
}

func (e *fakeEnhancer) Enhance(ctx context.Context, imageData []byte, classification, roomHint, customPrompt string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastInput = imageData
	e.lastClass = classification
	e.lastRoomHint = roomHint
	e.lastCustomText = customPrompt
	if e.err != nil {
		return nil, e.err
	}
	return e.output, nil
}

type publishedEvent struct {
	userID  uuid.UUID
	photoID uuid.UUID
	name    string
	payload map[string]interface{}
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakeEventPublisher) PublishPhotoEvent(userID, photoID uuid.UUID, event string, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, photoID: photoID, name: event, payload: payload})
	return nil
}

func (p *fakeEventPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

// testFixture bundles a runner with its fakes for one test.
type testFixture struct {
	runner     *Runner
	photos     *fakePhotoStore
	credits    *fakeCreditStore
	blobs      *fakeBlobStore
	classifier *fakeClassifier
	enhancer   *fakeEnhancer
	events     *fakeEventPublisher
}

func newTestFixture(photos ...*models.Photo) *testFixture {
	f := &testFixture{
		photos:     newFakePhotoStore(photos...),
		credits:    &fakeCreditStore{allowance: 10},
		blobs:      newFakeBlobStore(),
		classifier: &fakeClassifier{label: models.ClassificationEmptyInterior},
		enhancer:   &fakeEnhancer{output: []byte("enhanced-bytes")},
		events:     &fakeEventPublisher{},
	}
	f.runner = NewRunner(f.photos, f.credits, f.blobs, f.classifier, f.enhancer, f.events, Policy{
		MinAttemptInterval: 30 * time.Second,
		MaxAttempts:        3,
	})
	return f
}

func pendingPhoto(userID uuid.UUID) *models.Photo {
	return &models.Photo{
		ID:           uuid.New(),
		UserID:       userID,
		OriginalPath: "user/users/" + userID.String() + "/photos/originals/house.jpg",
		Status:       models.StatusPending,
		ImageHash:    "abc123",
		FileSize:     1024,
		OriginalName: "house.jpg",
		CreatedAt:    time.Now().Add(-time.Minute),
	}
}
