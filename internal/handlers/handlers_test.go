package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/config"
	"github.com/majicagent/photo-pipeline/internal/fingerprint"
	"github.com/majicagent/photo-pipeline/internal/middleware"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/pipeline"
	"github.com/majicagent/photo-pipeline/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePhotoStore keeps records in memory keyed by the upload dedup key.
type fakePhotoStore struct {
	photos        map[uuid.UUID]*models.Photo
	duplicateHits map[uuid.UUID]int
	createErr     error
	stats         *models.StatsResponse
	addresses     []string
	rooms         []string
	tagged        int64
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{
		photos:        make(map[uuid.UUID]*models.Photo),
		duplicateHits: make(map[uuid.UUID]int),
	}
}

func (s *fakePhotoStore) CreatePhoto(photo *models.Photo) error {
	if s.createErr != nil {
		return s.createErr
	}
	photo.ID = uuid.New()
	photo.CreatedAt = time.Now()
	photo.UpdatedAt = photo.CreatedAt
	copied := *photo
	s.photos[photo.ID] = &copied
	return nil
}

func (s *fakePhotoStore) GetPhoto(photoID, userID uuid.UUID) (*models.Photo, error) {
	p, ok := s.photos[photoID]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakePhotoStore) FindDuplicate(userID uuid.UUID, imageHash string, fileSize int64) (*models.Photo, error) {
	for _, p := range s.photos {
		if p.UserID == userID && p.ImageHash == imageHash && p.FileSize == fileSize {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakePhotoStore) RecordDuplicateHit(photoID uuid.UUID) error {
	s.duplicateHits[photoID]++
	return nil
}

func (s *fakePhotoStore) ListPhotos(userID uuid.UUID) ([]models.Photo, error) {
	var out []models.Photo
	for _, p := range s.photos {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePhotoStore) Stats(userID uuid.UUID) (*models.StatsResponse, error) {
	return s.stats, nil
}

func (s *fakePhotoStore) UpdateTags(userID uuid.UUID, photoIDs []uuid.UUID, propertyAddress, roomName sql.NullString, tags []string) (int64, error) {
	return s.tagged, nil
}

func (s *fakePhotoStore) Addresses(userID uuid.UUID) ([]string, error) {
	return s.addresses, nil
}

func (s *fakePhotoStore) Rooms(userID uuid.UUID, propertyAddress string) ([]string, error) {
	return s.rooms, nil
}

type fakeCreditStore struct {
	allowance int
	consumed  int
	unlimited bool
}

func (s *fakeCreditStore) Ledger(userID uuid.UUID) (*models.CreditLedger, error) {
	return &models.CreditLedger{UserID: userID, Allowance: s.allowance, Consumed: s.consumed, Unlimited: s.unlimited}, nil
}

func (s *fakeCreditStore) Authorize(userID uuid.UUID, count int) (*models.CreditDecision, error) {
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

type fakeBlobStore struct {
	objects   map[string][]byte
	uploadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Upload(storagePath string, data []byte, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[storagePath] = data
	return nil
}

func (s *fakeBlobStore) SignedURL(storagePath string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + storagePath, nil
}

type fakePipeline struct {
	enqueued       []pipeline.Job
	reprocessed    *models.Photo
	reprocessErr   error
	lastPrompt     string
	lastSource     string
	reprocessCalls int
}

func (p *fakePipeline) Enqueue(job pipeline.Job) bool {
	p.enqueued = append(p.enqueued, job)
	return true
}

func (p *fakePipeline) Reprocess(ctx context.Context, userID, photoID uuid.UUID, customPrompt, sourceChoice string) (*models.Photo, error) {
	p.reprocessCalls++
	p.lastPrompt = customPrompt
	p.lastSource = sourceChoice
	if p.reprocessErr != nil {
		return nil, p.reprocessErr
	}
	return p.reprocessed, nil
}

type fakeEventPublisher struct {
	events []string
}

func (p *fakeEventPublisher) PublishPhotoEvent(userID, photoID uuid.UUID, event string, payload map[string]interface{}) error {
	p.events = append(p.events, event)
	return nil
}

type handlerFixture struct {
	handler  *PhotosHandler
	store    *fakePhotoStore
	credits  *fakeCreditStore
	blobs    *fakeBlobStore
	pipeline *fakePipeline
	events   *fakeEventPublisher
	router   *gin.Engine
	userID   uuid.UUID
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		store:    newFakePhotoStore(),
		credits:  &fakeCreditStore{allowance: 10},
		blobs:    newFakeBlobStore(),
		pipeline: &fakePipeline{},
		events:   &fakeEventPublisher{},
		userID:   uuid.New(),
	}
	cfg := &config.Config{
		MaxUploadBytes: 10 << 20,
		SignedURLTTL:   time.Hour,
	}
	f.handler = NewPhotosHandler(f.store, f.credits, f.blobs, f.pipeline, f.events, cfg)

	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, f.userID.String())
	})
	f.router.POST("/photos/upload", f.handler.Upload)
	f.router.GET("/photos", f.handler.List)
	f.router.GET("/photos/stats", f.handler.Stats)
	f.router.GET("/photos/addresses", f.handler.Addresses)
	f.router.GET("/photos/rooms", f.handler.Rooms)
	f.router.GET("/photos/credits", f.handler.Credits)
	f.router.PUT("/photos/tags", f.handler.UpdateTags)
	f.router.POST("/photos/reprocess/:photo_id", f.handler.Reprocess)
	return f
}

// seedPhoto inserts an existing record the way a prior upload would have.
func (f *handlerFixture) seedPhoto(status string, data []byte) *models.Photo {
	fp := fingerprint.Compute(data)
	photo := &models.Photo{
		UserID:       f.userID,
		OriginalPath: "user/users/" + f.userID.String() + "/photos/originals/seed.jpg",
		Status:       status,
		ImageHash:    fp.Hash,
		FileSize:     fp.Size,
		OriginalName: "seed.jpg",
	}
	if err := f.store.CreatePhoto(photo); err != nil {
		panic(err)
	}
	return photo
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type uploadPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, parts ...uploadPart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		header.Set("Content-Type", p.contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jpegPart(filename string, data []byte) uploadPart {
	return uploadPart{field: "photos", filename: filename, contentType: "image/jpeg", data: data}
}
