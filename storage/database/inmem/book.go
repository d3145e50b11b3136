package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/aaronlou/innergrow.ai/core/book"
)

type bookRepository struct {
	db *DB
}

var _ book.Repository = (*bookRepository)(nil) // interface compliance check

func NewBookRepository(db *DB) book.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) CreateBook(_ context.Context, b book.Book) (book.Book, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b.Images = nil
	repo.db.books[b.ID] = &b
	return repo.load(b), nil
}

// load attaches the images of the book, ordered by position.
func (repo *bookRepository) load(b book.Book) book.Book {
	b.Images = make([]book.Image, 0)
	for _, img := range repo.db.images {
		if img.BookID == b.ID {
			b.Images = append(b.Images, *img)
		}
	}
	sort.SliceStable(b.Images, func(i, j int) bool { return b.Images[i].Position < b.Images[j].Position })
	return b
}

func (repo *bookRepository) GetBookByID(_ context.Context, id string) (book.Book, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	b, ok := repo.db.books[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	return repo.load(*b), nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (repo *bookRepository) SearchBooks(_ context.Context, q book.Query) ([]book.Book, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	books := make([]book.Book, 0)
	for _, b := range repo.db.books {
		if b.Status != book.StatusAvailable {
			continue
		}
		if q.Keyword != "" && !containsFold(b.Title, q.Keyword) && !containsFold(b.Author, q.Keyword) && !containsFold(b.Description, q.Keyword) {
			continue
		}
		if (q.Category != "" && b.Category != q.Category) || (q.Condition != "" && b.Condition != q.Condition) {
			continue
		}
		if q.MinPrice.Valid && b.Price.LessThan(q.MinPrice.Decimal) {
			continue
		}
		if q.MaxPrice.Valid && b.Price.GreaterThan(q.MaxPrice.Decimal) {
			continue
		}
		if q.Location != "" && !containsFold(b.Location, q.Location) {
			continue
		}
		books = append(books, *b)
	}

	newest := func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) }
	var less func(i, j int) bool
	switch q.SortBy {
	case book.SortPriceLow:
		less = func(i, j int) bool {
			if !books[i].Price.Equal(books[j].Price) {
				return books[i].Price.LessThan(books[j].Price)
			}
			return newest(i, j)
		}
	case book.SortPriceHigh:
		less = func(i, j int) bool {
			if !books[i].Price.Equal(books[j].Price) {
				return books[i].Price.GreaterThan(books[j].Price)
			}
			return newest(i, j)
		}
	case book.SortCondition:
		less = func(i, j int) bool {
			ri, rj := book.ConditionRank(books[i].Condition), book.ConditionRank(books[j].Condition)
			if ri != rj {
				return ri < rj
			}
			return newest(i, j)
		}
	default:
		less = newest
	}
	sort.SliceStable(books, less)

	start, end := q.Page.Window(len(books))
	page := make([]book.Book, 0, end-start)
	for _, b := range books[start:end] {
		page = append(page, repo.load(b))
	}
	return page, len(books), nil
}

func (repo *bookRepository) QuerySellerBooks(_ context.Context, sellerID string) ([]book.Book, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	books := make([]book.Book, 0)
	for _, b := range repo.db.books {
		if b.SellerID == sellerID {
			books = append(books, repo.load(*b))
		}
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) })
	return books, nil
}

func (repo *bookRepository) UpdateBook(_ context.Context, b book.Book) (book.Book, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.books[b.ID]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	b.SellerID = old.SellerID
	b.CreatedAt = old.CreatedAt
	b.Images = nil
	repo.db.books[b.ID] = &b
	return repo.load(b), nil
}

func (repo *bookRepository) DeleteBook(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.books[id]; !ok {
		return book.ErrNotFound
	}
	repo.db.deleteBook(id)
	return nil
}

// deleteBook cascades to the images and the orders of the book.
func (db *DB) deleteBook(id string) {
	delete(db.books, id)
	for imgID, img := range db.images {
		if img.BookID == id {
			delete(db.images, imgID)
		}
	}
	for oID, o := range db.orders {
		if o.BookID == id {
			delete(db.orders, oID)
			delete(db.addresses, oID)
		}
	}
}

func (repo *bookRepository) AddImages(_ context.Context, images ...book.Image) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range images {
		img := images[i]
		if _, ok := repo.db.books[img.BookID]; !ok {
			return book.ErrNotFound
		}
		repo.db.images[img.ID] = &img
	}
	return nil
}

func (repo *bookRepository) DeleteImage(_ context.Context, bookID, imageID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	img, ok := repo.db.images[imageID]
	if !ok || img.BookID != bookID {
		return book.ErrImageNotFound
	}
	delete(repo.db.images, imageID)
	return nil
}

func (repo *bookRepository) HasActiveOrders(_ context.Context, bookID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, o := range repo.db.orders {
		if o.BookID != bookID {
			continue
		}
		for _, s := range book.ActiveOrderStatuses {
			if o.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (repo *bookRepository) CreateOrder(_ context.Context, o book.Order) (book.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b, ok := repo.db.books[o.BookID]
	if !ok {
		return book.Order{}, book.ErrNotFound
	}
	if b.Status != book.StatusAvailable {
		return book.Order{}, book.ErrBookUnavailable
	}
	b.Status = book.StatusReserved
	b.UpdatedAt = o.CreatedAt

	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		repo.db.addresses[o.ID] = &addr
	}
	o.Book = nil
	repo.db.orders[o.ID] = &o
	return repo.loadOrder(o), nil
}

func (repo *bookRepository) loadOrder(o book.Order) book.Order {
	o.ShippingAddress = nil
	if addr, ok := repo.db.addresses[o.ID]; ok {
		a := *addr
		o.ShippingAddress = &a
	}
	return o
}

func (repo *bookRepository) GetOrderByID(_ context.Context, id string) (book.Order, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	o, ok := repo.db.orders[id]
	if !ok {
		return book.Order{}, book.ErrOrderNotFound
	}
	return repo.loadOrder(*o), nil
}

func (repo *bookRepository) QueryUserOrders(_ context.Context, userID, typ string) ([]book.Order, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	orders := make([]book.Order, 0)
	for _, o := range repo.db.orders {
		buyer, seller := o.BuyerID == userID, o.SellerID == userID
		if (typ == book.OrdersPurchases && buyer) || (typ == book.OrdersSales && seller) || (typ == book.OrdersAll && (buyer || seller)) {
			orders = append(orders, repo.loadOrder(*o))
		}
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (repo *bookRepository) UpdateOrder(_ context.Context, o book.Order, bookStatus string) (book.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.orders[o.ID]; !ok {
		return book.Order{}, book.ErrOrderNotFound
	}
	if bookStatus != "" {
		if b, ok := repo.db.books[o.BookID]; ok {
			b.Status = bookStatus
			b.UpdatedAt = o.UpdatedAt
		}
	}
	o.Book = nil
	repo.db.orders[o.ID] = &o
	return repo.loadOrder(o), nil
}
