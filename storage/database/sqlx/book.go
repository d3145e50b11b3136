package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/book"
)

const (
	bookColumns = `id, title, author, isbn, publisher, publish_year, category, condition, status, description,
		price, original_price, location, tags, seller_id, created_at, updated_at`
	imageColumns = `id, book_id, url, object_key, is_cover, position, created_at`
	orderColumns = `id, book_id, buyer_id, seller_id, amount, status, message, payment_method, buyer_contact,
		created_at, updated_at, completed_at`
	addressColumns = `order_id, name, phone, province, city, district, address, zip_code, created_at`
)

// conditionRank orders conditions from best to worst in SQL.
var conditionRank = func() string {
	var sb strings.Builder
	sb.WriteString("CASE condition")
	for i, c := range book.Conditions {
		sb.WriteString(" WHEN '" + c.Value + "' THEN ")
		sb.WriteString(string(rune('0' + i)))
	}
	sb.WriteString(" ELSE 9 END")
	return sb.String()
}()

type bookRepository struct {
	db core.DB
}

var _ book.Repository = (*bookRepository)(nil) // interface compliance check

func NewBookRepository(db core.DB) book.Repository {
	return &bookRepository{db: db}
}

// withImages loads the images of the books in one query.
func (repo bookRepository) withImages(ctx context.Context, books []book.Book) ([]book.Book, error) {
	if len(books) == 0 {
		return books, nil
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	q, args, err := in(repo.db, `SELECT `+imageColumns+` FROM book_images WHERE book_id IN (?) ORDER BY position, created_at`, ids)
	if err != nil {
		return nil, err
	}
	var images []book.Image
	if err = repo.db.SelectContext(ctx, &images, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting book images")
	}
	byBook := make(map[string][]book.Image, len(books))
	for _, img := range images {
		byBook[img.BookID] = append(byBook[img.BookID], img)
	}
	for i := range books {
		books[i].Images = byBook[books[i].ID]
		if books[i].Images == nil {
			books[i].Images = []book.Image{}
		}
	}
	return books, nil
}

func (repo bookRepository) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (:id, :title, :author, :isbn, :publisher, :publish_year, :category, :condition, :status, :description,
			:price, :original_price, :location, :tags, :seller_id, :created_at, :updated_at)`, b)
	if err != nil {
		return book.Book{}, errors.Wrap(err, "inserting book")
	}
	b.Images = []book.Image{}
	return b, nil
}

func (repo bookRepository) GetBookByID(ctx context.Context, id string) (book.Book, error) {
	var b book.Book
	if err := repo.db.GetContext(ctx, &b, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id); err != nil {
		return book.Book{}, trapNoRowsErr(err, book.ErrNotFound, "selecting book")
	}
	books, err := repo.withImages(ctx, []book.Book{b})
	if err != nil {
		return book.Book{}, err
	}
	return books[0], nil
}

func (repo bookRepository) SearchBooks(ctx context.Context, q book.Query) ([]book.Book, int, error) {
	where := []string{"status = ?"}
	args := []interface{}{book.StatusAvailable}
	if q.Keyword != "" {
		kw := "%" + q.Keyword + "%"
		where = append(where, "(title ILIKE ? OR author ILIKE ? OR description ILIKE ?)")
		args = append(args, kw, kw, kw)
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.Condition != "" {
		where = append(where, "condition = ?")
		args = append(args, q.Condition)
	}
	if q.MinPrice.Valid {
		where = append(where, "price >= ?")
		args = append(args, q.MinPrice.Decimal)
	}
	if q.MaxPrice.Valid {
		where = append(where, "price <= ?")
		args = append(args, q.MaxPrice.Decimal)
	}
	if q.Location != "" {
		where = append(where, "location ILIKE ?")
		args = append(args, "%"+q.Location+"%")
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(`SELECT COUNT(*) FROM books`+cond), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting books")
	}

	orderBy := "created_at DESC"
	switch q.SortBy {
	case book.SortPriceLow:
		orderBy = "price ASC, created_at DESC"
	case book.SortPriceHigh:
		orderBy = "price DESC, created_at DESC"
	case book.SortCondition:
		orderBy = conditionRank + ", created_at DESC"
	}
	query := `SELECT ` + bookColumns + ` FROM books` + cond + ` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	args = append(args, q.Page.Size, q.Page.Offset())

	books := make([]book.Book, 0)
	if err := repo.db.SelectContext(ctx, &books, repo.db.Rebind(query), args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting books")
	}
	books, err := repo.withImages(ctx, books)
	return books, count, err
}

func (repo bookRepository) QuerySellerBooks(ctx context.Context, sellerID string) ([]book.Book, error) {
	books := make([]book.Book, 0)
	err := repo.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting seller books")
	}
	return repo.withImages(ctx, books)
}

func (repo bookRepository) UpdateBook(ctx context.Context, b book.Book) (book.Book, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE books SET
			title = :title, author = :author, isbn = :isbn, publisher = :publisher, publish_year = :publish_year,
			category = :category, condition = :condition, status = :status, description = :description,
			price = :price, original_price = :original_price, location = :location, tags = :tags,
			updated_at = :updated_at
		WHERE id = :id`, b)
	if err != nil {
		return book.Book{}, errors.Wrap(err, "updating book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return book.Book{}, book.ErrNotFound
	}
	return b, nil
}

func (repo bookRepository) DeleteBook(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return book.ErrNotFound
	}
	return nil
}

func (repo bookRepository) AddImages(ctx context.Context, images ...book.Image) error {
	if len(images) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO book_images (`+imageColumns+`)
		VALUES (:id, :book_id, :url, :object_key, :is_cover, :position, :created_at)`, images)
	return errors.Wrap(err, "inserting book images")
}

func (repo bookRepository) DeleteImage(ctx context.Context, bookID, imageID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM book_images WHERE id = $1 AND book_id = $2`, imageID, bookID)
	if err != nil {
		return errors.Wrap(err, "deleting book image")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return book.ErrImageNotFound
	}
	return nil
}

func (repo bookRepository) HasActiveOrders(ctx context.Context, bookID string) (bool, error) {
	q, args, err := in(repo.db, `SELECT EXISTS(SELECT 1 FROM book_orders WHERE book_id = ? AND status IN (?))`,
		bookID, book.ActiveOrderStatuses)
	if err != nil {
		return false, err
	}
	var exists bool
	err = repo.db.GetContext(ctx, &exists, q, args...)
	return exists, errors.Wrap(err, "checking active orders")
}

func (repo bookRepository) CreateOrder(ctx context.Context, o book.Order) (book.Order, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// only an available book can be reserved
		res, err := tx.ExecContext(ctx, `UPDATE books SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			book.StatusReserved, o.CreatedAt, o.BookID, book.StatusAvailable)
		if err != nil {
			return errors.Wrap(err, "reserving book")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return book.ErrBookUnavailable
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO book_orders (`+orderColumns+`)
			VALUES (:id, :book_id, :buyer_id, :seller_id, :amount, :status, :message, :payment_method, :buyer_contact,
				:created_at, :updated_at, :completed_at)`, o)
		if err != nil {
			return errors.Wrap(err, "inserting order")
		}
		if o.ShippingAddress != nil {
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO shipping_addresses (`+addressColumns+`)
				VALUES (:order_id, :name, :phone, :province, :city, :district, :address, :zip_code, :created_at)`,
				o.ShippingAddress)
			return errors.Wrap(err, "inserting shipping address")
		}
		return nil
	})
	if err != nil {
		return book.Order{}, err
	}
	return o, nil
}

// withAddresses loads the shipping addresses of the orders in one query.
func (repo bookRepository) withAddresses(ctx context.Context, orders []book.Order) ([]book.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	q, args, err := in(repo.db, `SELECT `+addressColumns+` FROM shipping_addresses WHERE order_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var addrs []book.ShippingAddress
	if err = repo.db.SelectContext(ctx, &addrs, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting shipping addresses")
	}
	byOrder := make(map[string]book.ShippingAddress, len(addrs))
	for _, a := range addrs {
		byOrder[a.OrderID] = a
	}
	for i := range orders {
		if a, ok := byOrder[orders[i].ID]; ok {
			orders[i].ShippingAddress = &a
		}
	}
	return orders, nil
}

func (repo bookRepository) GetOrderByID(ctx context.Context, id string) (book.Order, error) {
	var o book.Order
	if err := repo.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM book_orders WHERE id = $1`, id); err != nil {
		return book.Order{}, trapNoRowsErr(err, book.ErrOrderNotFound, "selecting order")
	}
	orders, err := repo.withAddresses(ctx, []book.Order{o})
	if err != nil {
		return book.Order{}, err
	}
	return orders[0], nil
}

func (repo bookRepository) QueryUserOrders(ctx context.Context, userID, typ string) ([]book.Order, error) {
	var cond string
	args := []interface{}{userID}
	switch typ {
	case book.OrdersPurchases:
		cond = "buyer_id = $1"
	case book.OrdersSales:
		cond = "seller_id = $1"
	default:
		cond = "buyer_id = $1 OR seller_id = $1"
	}
	orders := make([]book.Order, 0)
	err := repo.db.SelectContext(ctx, &orders, `SELECT `+orderColumns+` FROM book_orders WHERE `+cond+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "selecting orders")
	}
	return repo.withAddresses(ctx, orders)
}

func (repo bookRepository) UpdateOrder(ctx context.Context, o book.Order, bookStatus string) (book.Order, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE book_orders SET status = $1, updated_at = $2, completed_at = $3 WHERE id = $4`,
			o.Status, o.UpdatedAt, o.CompletedAt, o.ID)
		if err != nil {
			return errors.Wrap(err, "updating order")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return book.ErrOrderNotFound
		}
		if bookStatus != "" {
			_, err = tx.ExecContext(ctx, `UPDATE books SET status = $1, updated_at = $2 WHERE id = $3`, bookStatus, o.UpdatedAt, o.BookID)
			return errors.Wrap(err, "updating book status")
		}
		return nil
	})
	if err != nil {
		return book.Order{}, err
	}
	return o, nil
}
