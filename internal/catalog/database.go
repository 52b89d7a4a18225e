package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	booksBucketName  = "books"
	imagesBucketName = "images"
)

// SearchQuery filters a catalog search. Keyword matches title and author
// case-insensitively as a substring; Category, Owner and Status match
// exactly, with nil Status matching any sale state. All given filters
// are ANDed.
type SearchQuery struct {
	Keyword  string
	Category string
	Owner    string
	Status   *int
	Limit    int
	Offset   int
}

// Stats partitions the whole catalog by canonical category
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
}

// DB defines the interface for catalog persistence
type DB interface {
	// SaveBook saves a single listing
	SaveBook(book *Book) error

	// SaveBooks saves a whole extraction batch atomically: either every
	// listing is written or none are
	SaveBooks(books []*Book) error

	// GetBook retrieves a listing by ID
	GetBook(id string) (*Book, error)

	// UpdateBook applies the update when requester owns the listing
	UpdateBook(id string, update BookUpdate, requester string, now time.Time) (*Book, error)

	// DeleteBook removes a listing when requester owns it
	DeleteBook(id string, requester string) error

	// SearchBooks returns matching listings, most recent first
	SearchBooks(q SearchQuery) ([]*Book, error)

	// Stats returns total and per-category counts
	Stats() (*Stats, error)

	// SaveImage records uploaded image metadata
	SaveImage(img *UploadedImage) error

	// GetImage retrieves image metadata by file ID
	GetImage(id string) (*UploadedImage, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(booksBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(imagesBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBook saves a single listing
func (b *BoltDB) SaveBook(book *Book) error {
	return b.SaveBooks([]*Book{book})
}

// SaveBooks writes a batch of listings in one transaction
func (b *BoltDB) SaveBooks(books []*Book) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		for _, book := range books {
			data, err := json.Marshal(book)
			if err != nil {
				return fmt.Errorf("marshaling book %s: %w", book.ID, err)
			}
			if err := bucket.Put([]byte(book.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// GetBook retrieves a listing by ID
func (b *BoltDB) GetBook(id string) (*Book, error) {
	var book *Book
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBook merges the non-nil update fields into the listing after
// checking ownership. The read, the check and the write share one
// transaction so a failed check changes nothing.
func (b *BoltDB) UpdateBook(id string, update BookUpdate, requester string, now time.Time) (*Book, error) {
	var updated *Book
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var book Book
		if err := json.Unmarshal(data, &book); err != nil {
			return fmt.Errorf("unmarshaling book: %w", err)
		}
		if book.Owner != requester {
			return ErrForbidden
		}

		applyUpdate(&book, update)
		book.UpdatedAt = now

		out, err := json.Marshal(&book)
		if err != nil {
			return fmt.Errorf("marshaling book: %w", err)
		}
		if err := bucket.Put([]byte(id), out); err != nil {
			return err
		}
		updated = &book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyUpdate(book *Book, update BookUpdate) {
	if update.Title != nil {
		book.Title = *update.Title
	}
	if update.Author != nil {
		book.Author = *update.Author
	}
	if update.Publisher != nil {
		book.Publisher = *update.Publisher
	}
	if update.Edition != nil {
		book.Edition = *update.Edition
	}
	if update.Category != nil {
		book.Category = *update.Category
	}
	if update.Condition != nil {
		book.Condition = *update.Condition
	}
	if update.Price != nil {
		price := *update.Price
		book.Price = &price
	}
	if update.Description != nil {
		book.Description = *update.Description
	}
	if update.Contact != nil {
		book.Contact = *update.Contact
	}
	if update.Status != nil {
		book.Status = *update.Status
	}
}

// DeleteBook removes a listing after checking ownership
func (b *BoltDB) DeleteBook(id string, requester string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var book Book
		if err := json.Unmarshal(data, &book); err != nil {
			return fmt.Errorf("unmarshaling book: %w", err)
		}
		if book.Owner != requester {
			return ErrForbidden
		}

		return bucket.Delete([]byte(id))
	})
}

// SearchBooks returns matching listings, most recent first
func (b *BoltDB) SearchBooks(q SearchQuery) ([]*Book, error) {
	books := make([]*Book, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var book Book
			if err := json.Unmarshal(v, &book); err != nil {
				return fmt.Errorf("unmarshaling book: %w", err)
			}
			if matchesQuery(&book, q) {
				books = append(books, &book)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(books) {
			return []*Book{}, nil
		}
		books = books[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(books) {
		books = books[:q.Limit]
	}
	return books, nil
}

func matchesQuery(book *Book, q SearchQuery) bool {
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(book.Title), kw) &&
			!strings.Contains(strings.ToLower(book.Author), kw) {
			return false
		}
	}
	if q.Category != "" && book.Category != q.Category {
		return false
	}
	if q.Owner != "" && book.Owner != q.Owner {
		return false
	}
	if q.Status != nil && book.Status != *q.Status {
		return false
	}
	return true
}

// Stats returns total and per-category counts over the whole catalog
func (b *BoltDB) Stats() (*Stats, error) {
	stats := &Stats{ByCategory: make(map[string]int)}
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(booksBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var book Book
			if err := json.Unmarshal(v, &book); err != nil {
				return fmt.Errorf("unmarshaling book: %w", err)
			}
			stats.Total++
			category := book.Category
			if category == "" {
				category = CategoryOther
			}
			stats.ByCategory[category]++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SaveImage records uploaded image metadata
func (b *BoltDB) SaveImage(img *UploadedImage) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(imagesBucketName))
		data, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshaling image metadata: %w", err)
		}
		return bucket.Put([]byte(img.ID), data)
	})
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// GetImage retrieves image metadata by file ID
func (b *BoltDB) GetImage(id string) (*UploadedImage, error) {
	var img *UploadedImage
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(imagesBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &img)
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
