package book

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

// Image upload rules
const (
	ImageMaxSize      = 5 << 20
	imageKeyPrefix    = "books"
	uploadConcurrency = 4
)

var ImageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("book not found")
	ErrImageNotFound    = core.NewNotFoundError("image not found")
	ErrOrderNotFound    = core.NewNotFoundError("order not found")
	ErrBookUnavailable  = errors.New("this book is not available for purchase")
	errBookNotExist     = errors.New("book does not exist")
	errOwnBook          = errors.New("you cannot buy your own book")
	errHasActiveOrders  = errors.New("this book has unfinished orders and cannot be deleted")
	errNoImagesUploaded = errors.New("no images uploaded")
)

// permission messages
const (
	msgEditForbidden   = "you can only edit your own books"
	msgDeleteForbidden = "you can only delete your own books"
	msgOrderForbidden  = "you do not have permission to view this order"
	msgOrderSellerOnly = "only the seller can update the order status"
)

type (
	Repository interface {
		CreateBook(ctx context.Context, b Book) (Book, error)
		// GetBookByID returns the book with its images.
		GetBookByID(ctx context.Context, id string) (Book, error)
		// SearchBooks returns the requested page of available books and the total count.
		SearchBooks(ctx context.Context, q Query) ([]Book, int, error)
		QuerySellerBooks(ctx context.Context, sellerID string) ([]Book, error)
		UpdateBook(ctx context.Context, b Book) (Book, error)
		DeleteBook(ctx context.Context, id string) error
		AddImages(ctx context.Context, images ...Image) error
		DeleteImage(ctx context.Context, bookID, imageID string) error
		HasActiveOrders(ctx context.Context, bookID string) (bool, error)
		// CreateOrder stores the order and reserves the book atomically.
		// ErrBookUnavailable is returned when the book is no longer available.
		CreateOrder(ctx context.Context, o Order) (Order, error)
		GetOrderByID(ctx context.Context, id string) (Order, error)
		QueryUserOrders(ctx context.Context, userID, typ string) ([]Order, error)
		// UpdateOrder stores the order and sets the book status when not empty.
		UpdateOrder(ctx context.Context, o Order, bookStatus string) (Order, error)
	}

	// UserFinder resolves user summaries for sellers and buyers.
	UserFinder interface {
		GetManyByID(ctx context.Context, ids ...string) (map[string]user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		storage core.FileStorage
	}
)

func NewService(repo Repository, users UserFinder, storage core.FileStorage) *Service {
	return &Service{repo: repo, users: users, storage: storage}
}

func (svc *Service) withSellers(ctx context.Context, books []Book) ([]Book, error) {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.SellerID)
	}
	users, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "finding sellers")
	}
	for i := range books {
		if usr, ok := users[books[i].SellerID]; ok {
			books[i].SellerName = usr.DisplayName()
			books[i].SellerAvatar = usr.Avatar
		}
		if books[i].Images == nil {
			books[i].Images = []Image{}
		}
	}
	return books, nil
}

func (svc *Service) withSeller(ctx context.Context, b Book) (Book, error) {
	books, err := svc.withSellers(ctx, []Book{b})
	if err != nil {
		return Book{}, err
	}
	return books[0], nil
}

// Search lists the available books matching the filter.
func (svc *Service) Search(ctx context.Context, filter SearchFilter) ([]Book, int, error) {
	books, count, err := svc.repo.SearchBooks(ctx, filter.Clean())
	if err != nil {
		return nil, 0, errors.Wrap(err, "searching books")
	}
	books, err = svc.withSellers(ctx, books)
	return books, count, err
}

func (svc *Service) Create(ctx context.Context, seller user.User, nb NewBook) (Book, error) {
	now := time.Now().UTC()
	b := Book{
		ID:            uuid.NewString(),
		Title:         nb.Title,
		Author:        nb.Author,
		ISBN:          nb.ISBN,
		Publisher:     nb.Publisher,
		Category:      nb.Category,
		Condition:     nb.Condition,
		Status:        StatusAvailable,
		Description:   nb.Description,
		Price:         nb.Price,
		OriginalPrice: nb.OriginalPrice,
		Location:      nb.Location,
		Tags:          core.StringList(nb.Tags),
		SellerID:      seller.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nb.PublishYear != nil {
		b.PublishYear = null.IntFrom(*nb.PublishYear)
	}
	if b.Tags == nil {
		b.Tags = core.StringList{}
	}
	b, err := svc.repo.CreateBook(ctx, b)
	if err != nil {
		return Book{}, err
	}
	return svc.withSeller(ctx, b)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Book, error) {
	b, err := svc.repo.GetBookByID(ctx, id)
	if err != nil {
		return Book{}, err
	}
	return svc.withSeller(ctx, b)
}

// SellerBooks lists every book of the user whatever its status.
func (svc *Service) SellerBooks(ctx context.Context, seller user.User) ([]Book, error) {
	books, err := svc.repo.QuerySellerBooks(ctx, seller.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying seller books")
	}
	return svc.withSellers(ctx, books)
}

func (svc *Service) Update(ctx context.Context, usr user.User, b Book, ub UpdateBook) (Book, error) {
	if b.SellerID != usr.ID {
		return Book{}, core.NewPermissionError(msgEditForbidden)
	}
	ub.apply(&b)
	b.UpdatedAt = time.Now().UTC()
	b, err := svc.repo.UpdateBook(ctx, b)
	if err != nil {
		return Book{}, err
	}
	return svc.GetByID(ctx, b.ID)
}

// Delete removes the book and its images unless an order is still in progress.
func (svc *Service) Delete(ctx context.Context, usr user.User, b Book) error {
	if b.SellerID != usr.ID {
		return core.NewPermissionError(msgDeleteForbidden)
	}
	active, err := svc.repo.HasActiveOrders(ctx, b.ID)
	if err != nil {
		return errors.Wrap(err, "checking active orders")
	}
	if active {
		return core.NewValidationError(errHasActiveOrders)
	}
	if err := svc.repo.DeleteBook(ctx, b.ID); err != nil {
		return err
	}
	for _, img := range b.Images {
		if err := svc.storage.Delete(ctx, img.ObjectKey); err != nil && errors.Cause(err) != core.ErrObjectNotFound {
			return errors.Wrap(err, "deleting book image")
		}
	}
	return nil
}

// AddImages uploads the images; the first image of a book becomes its cover.
func (svc *Service) AddImages(ctx context.Context, usr user.User, b Book, files []core.File) (Book, error) {
	if b.SellerID != usr.ID {
		return Book{}, core.NewPermissionError(msgEditForbidden)
	}
	if len(files) == 0 {
		return Book{}, core.NewValidationError(errNoImagesUploaded, core.FieldError{Field: "images", Error: errNoImagesUploaded.Error()})
	}
	for _, f := range files {
		if err := core.CheckUpload("images", f, ImageMaxSize, ImageExts...); err != nil {
			return Book{}, err
		}
	}

	now := time.Now().UTC()
	images := make([]Image, len(files))
	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			key := core.ObjectKey(imageKeyPrefix+"/"+b.ID, f.Name)
			if _, err := svc.storage.Upload(gctx, key, f); err != nil {
				return core.NewProviderError("uploading book image", err)
			}
			keys[i] = key
			images[i] = Image{
				ID:        uuid.NewString(),
				BookID:    b.ID,
				URL:       svc.storage.PublicURL(key),
				ObjectKey: key,
				IsCover:   len(b.Images) == 0 && i == 0,
				Position:  len(b.Images) + i,
				CreatedAt: now,
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = svc.repo.AddImages(ctx, images...)
	}
	if err != nil {
		_ = core.RemoveObjects(ctx, svc.storage, keys...)
		return Book{}, err
	}
	return svc.GetByID(ctx, b.ID)
}

func (svc *Service) DeleteImage(ctx context.Context, usr user.User, b Book, imageID string) (Book, error) {
	if b.SellerID != usr.ID {
		return Book{}, core.NewPermissionError(msgEditForbidden)
	}
	var img *Image
	for i := range b.Images {
		if b.Images[i].ID == imageID {
			img = &b.Images[i]
			break
		}
	}
	if img == nil {
		return Book{}, ErrImageNotFound
	}
	if err := svc.repo.DeleteImage(ctx, b.ID, img.ID); err != nil {
		return Book{}, err
	}
	if err := svc.storage.Delete(ctx, img.ObjectKey); err != nil && errors.Cause(err) != core.ErrObjectNotFound {
		return Book{}, errors.Wrap(err, "deleting book image")
	}
	return svc.GetByID(ctx, b.ID)
}

func (svc *Service) withOrderDetails(ctx context.Context, orders []Order) ([]Order, error) {
	for i := range orders {
		b, err := svc.repo.GetBookByID(ctx, orders[i].BookID)
		if err != nil {
			return nil, errors.Wrap(err, "finding order book")
		}
		orders[i].Book = &b
	}
	ids := make([]string, 0, len(orders)*2)
	for _, o := range orders {
		ids = append(ids, o.BuyerID, o.Book.SellerID)
	}
	users, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "finding order users")
	}
	for i := range orders {
		if usr, ok := users[orders[i].BuyerID]; ok {
			orders[i].BuyerName = usr.DisplayName()
		}
		if usr, ok := users[orders[i].Book.SellerID]; ok {
			orders[i].Book.SellerName = usr.DisplayName()
			orders[i].Book.SellerAvatar = usr.Avatar
		}
		if orders[i].Book.Images == nil {
			orders[i].Book.Images = []Image{}
		}
	}
	return orders, nil
}

func (svc *Service) withOrderDetail(ctx context.Context, o Order) (Order, error) {
	orders, err := svc.withOrderDetails(ctx, []Order{o})
	if err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

// Orders lists the user's purchases, sales or both.
func (svc *Service) Orders(ctx context.Context, usr user.User, typ string) ([]Order, error) {
	switch typ {
	case OrdersPurchases, OrdersSales:
	default:
		typ = OrdersAll
	}
	orders, err := svc.repo.QueryUserOrders(ctx, usr.ID, typ)
	if err != nil {
		return nil, errors.Wrap(err, "querying orders")
	}
	return svc.withOrderDetails(ctx, orders)
}

// PlaceOrder orders an available book of another user at its current price and reserves it.
func (svc *Service) PlaceOrder(ctx context.Context, buyer user.User, no NewOrder) (Order, error) {
	bookErr := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "book_id", Error: err.Error()})
	}
	b, err := svc.repo.GetBookByID(ctx, no.BookID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Order{}, bookErr(errBookNotExist)
		}
		return Order{}, errors.Wrap(err, "finding book")
	}
	if b.Status != StatusAvailable {
		return Order{}, bookErr(ErrBookUnavailable)
	}
	if b.SellerID == buyer.ID {
		return Order{}, bookErr(errOwnBook)
	}

	now := time.Now().UTC()
	o := Order{
		ID:            uuid.NewString(),
		BookID:        b.ID,
		BuyerID:       buyer.ID,
		SellerID:      b.SellerID,
		Amount:        b.Price,
		Status:        OrderPending,
		Message:       core.CleanString(no.Message),
		PaymentMethod: no.PaymentMethod,
		BuyerContact:  no.BuyerContact,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if no.ShippingAddress != nil {
		addr := *no.ShippingAddress
		addr.OrderID = o.ID
		addr.CreatedAt = now
		o.ShippingAddress = &addr
	}
	o, err = svc.repo.CreateOrder(ctx, o)
	if err != nil {
		if errors.Cause(err) == ErrBookUnavailable {
			return Order{}, bookErr(ErrBookUnavailable)
		}
		return Order{}, err
	}
	return svc.withOrderDetail(ctx, o)
}

// GetOrder returns the order if the user is its buyer or seller.
func (svc *Service) GetOrder(ctx context.Context, usr user.User, id string) (Order, error) {
	o, err := svc.repo.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != usr.ID && o.SellerID != usr.ID {
		return Order{}, core.NewPermissionError(msgOrderForbidden)
	}
	return svc.withOrderDetail(ctx, o)
}

// UpdateOrder lets the seller move the order status; completing sells the book and cancelling releases it.
func (svc *Service) UpdateOrder(ctx context.Context, usr user.User, o Order, uo UpdateOrder) (Order, error) {
	if o.SellerID != usr.ID {
		return Order{}, core.NewPermissionError(msgOrderSellerOnly)
	}
	if uo.Status == "" {
		return svc.withOrderDetail(ctx, o)
	}

	now := time.Now().UTC()
	var bookStatus string
	o.Status = uo.Status
	o.UpdatedAt = now
	switch uo.Status {
	case OrderCompleted:
		bookStatus = StatusSold
		o.CompletedAt = null.TimeFrom(now)
	case OrderCancelled:
		bookStatus = StatusAvailable
	}
	o, err := svc.repo.UpdateOrder(ctx, o, bookStatus)
	if err != nil {
		return Order{}, err
	}
	return svc.withOrderDetail(ctx, o)
}
