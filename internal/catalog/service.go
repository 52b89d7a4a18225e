package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/campusbooks/spinescan/internal/extraction"
)

// IDGenerator generates unique IDs for listings
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// AnalyzeResult is the outcome of one extraction request. On recognition
// or extraction failure Success is false and RawText carries whatever was
// recognized, so the caller can fall back to manual entry.
type AnalyzeResult struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	RawText  string   `json:"ocr_text"`
	Books    []*Book  `json:"books"`
	SavedIDs []string `json:"saved_ids,omitempty"`
}

// Service orchestrates the extraction pipeline and catalog operations
type Service struct {
	db          DB
	images      ImageStore
	recognizer  extraction.Recognizer
	extractor   extraction.Extractor
	taxonomy    *Taxonomy
	extractSem  *semaphore.Weighted
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, images ImageStore, recognizer extraction.Recognizer, extractor extraction.Extractor, taxonomy *Taxonomy, maxInflightExtractions int64) *Service {
	return NewServiceWithDeps(db, images, recognizer, extractor, taxonomy, maxInflightExtractions, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, images ImageStore, recognizer extraction.Recognizer, extractor extraction.Extractor, taxonomy *Taxonomy, maxInflightExtractions int64, idGen IDGenerator, timeSrc TimeSource) *Service {
	if maxInflightExtractions <= 0 {
		maxInflightExtractions = 4
	}
	return &Service{
		db:          db,
		images:      images,
		recognizer:  recognizer,
		extractor:   extractor,
		taxonomy:    taxonomy,
		extractSem:  semaphore.NewWeighted(maxInflightExtractions),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Upload validates and stores a spine photo
func (s *Service) Upload(data []byte, filename string, owner Principal) (*UploadedImage, error) {
	return s.images.Put(data, filename, string(owner))
}

// GetImage returns the stored bytes and metadata of an uploaded photo
func (s *Service) GetImage(fileID string) ([]byte, *UploadedImage, error) {
	return s.images.Get(fileID)
}

// Analyze runs the full pipeline for one uploaded photo: recognition,
// extraction, normalization and, when save is set, an atomic batch write
// of every surviving candidate attributed to owner. Recognition and
// extraction failures are terminal for the request but still return the
// best available partial data alongside the error.
func (s *Service) Analyze(ctx context.Context, fileID string, save bool, owner Principal, contact string) (*AnalyzeResult, error) {
	if save && owner == "" {
		return nil, ErrNoIdentity
	}

	data, img, err := s.images.Get(fileID)
	if err != nil {
		return nil, err
	}

	// External calls run to completion even if the client goes away;
	// their cost is already sunk and nothing is persisted until the end.
	callCtx := context.WithoutCancel(ctx)

	rawText, err := s.recognizer.Recognize(callCtx, data, img.ContentType)
	if err != nil {
		slog.Error("Failed to recognize spine text", "file_id", fileID, "error", err)
		var recErr *extraction.RecognitionError
		if !errors.As(err, &recErr) {
			err = &extraction.RecognitionError{Err: err}
		}
		return &AnalyzeResult{Success: false, Message: "图片识别失败，请重试", Books: []*Book{}}, err
	}

	if strings.TrimSpace(rawText) == "" {
		return &AnalyzeResult{Success: false, Message: "未能从图片中识别出文字", Books: []*Book{}}, nil
	}

	// Structuring calls are rate- and cost-limited upstream; admission
	// waits rather than rejecting.
	if err := s.extractSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for extraction slot: %w", err)
	}
	candidates, err := func() ([]extraction.Candidate, error) {
		// Released on panic too, or the slot would leak forever
		defer s.extractSem.Release(1)
		return s.extractor.Extract(callCtx, rawText, s.taxonomy.Categories())
	}()
	if err != nil {
		slog.Error("Failed to extract book candidates", "file_id", fileID, "error", err)
		var extErr *extraction.ExtractionError
		if !errors.As(err, &extErr) {
			err = &extraction.ExtractionError{RawText: rawText, Err: err}
		}
		return &AnalyzeResult{
			Success: false,
			Message: "书籍信息提取失败，可使用识别文本手动录入",
			RawText: rawText,
			Books:   []*Book{},
		}, err
	}

	now := s.timeSource.Now()
	books := make([]*Book, 0, len(candidates))
	for _, c := range candidates {
		draft, ok := NormalizeCandidate(c, s.taxonomy)
		if !ok {
			continue
		}
		draft.ID = s.idGenerator.Generate()
		draft.Owner = string(owner)
		draft.Contact = strings.TrimSpace(contact)
		draft.SourceImageID = fileID
		draft.RecognizedText = rawText
		draft.Status = StatusForSale
		draft.CreatedAt = now
		draft.UpdatedAt = now
		books = append(books, draft)
	}

	result := &AnalyzeResult{
		Success: true,
		Message: fmt.Sprintf("成功识别 %d 本书籍", len(books)),
		RawText: rawText,
		Books:   books,
	}

	if save && len(books) > 0 {
		if err := s.db.SaveBooks(books); err != nil {
			slog.Error("Failed to persist extracted books", "file_id", fileID, "count", len(books), "error", err)
			result.Success = false
			result.Message = "识别成功，但保存失败"
			return result, err
		}
		for _, b := range books {
			result.SavedIDs = append(result.SavedIDs, b.ID)
		}
		result.Message += "，已保存"
	}

	return result, nil
}

// CreateBook manually creates a listing owned by owner
func (s *Service) CreateBook(draft *Book, owner Principal) (*Book, error) {
	if owner == "" {
		return nil, ErrNoIdentity
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return nil, &ValidationError{Reason: "title is required"}
	}
	if draft.Price != nil && *draft.Price < 0 {
		return nil, &ValidationError{Reason: "price must be non-negative"}
	}

	now := s.timeSource.Now()
	book := &Book{
		ID:          s.idGenerator.Generate(),
		Title:       draft.Title,
		Author:      strings.TrimSpace(draft.Author),
		Publisher:   strings.TrimSpace(draft.Publisher),
		Edition:     strings.TrimSpace(draft.Edition),
		Category:    s.taxonomy.Canonical(draft.Category),
		Condition:   strings.TrimSpace(draft.Condition),
		Price:       draft.Price,
		Description: strings.TrimSpace(draft.Description),
		Contact:     strings.TrimSpace(draft.Contact),
		Status:      StatusForSale,
		Owner:       string(owner),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if book.Condition == "" {
		book.Condition = defaultCondition
	}

	if err := s.db.SaveBook(book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetBook retrieves a listing by ID
func (s *Service) GetBook(id string) (*Book, error) {
	return s.db.GetBook(id)
}

// UpdateBook edits a listing; only its owner may do so. Unknown category
// values are coerced onto the taxonomy rather than rejected.
func (s *Service) UpdateBook(id string, update BookUpdate, requester Principal) (*Book, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, &ValidationError{Reason: "title cannot be empty"}
	}
	if update.Price != nil && *update.Price < 0 {
		return nil, &ValidationError{Reason: "price must be non-negative"}
	}
	if update.Category != nil {
		canonical := s.taxonomy.Canonical(*update.Category)
		update.Category = &canonical
	}
	if update.Status != nil && *update.Status != StatusForSale && *update.Status != StatusSold {
		return nil, &ValidationError{Reason: "status must be 0 (for sale) or 1 (sold)"}
	}

	return s.db.UpdateBook(id, update, string(requester), s.timeSource.Now())
}

// DeleteBook removes a listing; only its owner may do so
func (s *Service) DeleteBook(id string, requester Principal) error {
	return s.db.DeleteBook(id, requester.String())
}

// SearchBooks returns listings matching the query, most recent first.
// The category filter is an exact match; a value outside the taxonomy
// simply matches nothing.
func (s *Service) SearchBooks(q SearchQuery) ([]*Book, error) {
	return s.db.SearchBooks(q)
}

// Stats returns total and per-category counts
func (s *Service) Stats() (*Stats, error) {
	return s.db.Stats()
}

// Categories returns the fixed taxonomy including the fallback
func (s *Service) Categories() []string {
	return s.taxonomy.Categories()
}
