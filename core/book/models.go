package book

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
)

// Book statuses
const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusReserved  = "reserved"
	StatusRemoved   = "removed"
)

// Order statuses
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order list types
const (
	OrdersPurchases = "purchases"
	OrdersSales     = "sales"
	OrdersAll       = "all"
)

// Sort modes
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortCondition = "condition"
)

// Choice is a selectable value with its display label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	Categories = []Choice{
		{"literature", "文学"},
		{"science", "科学"},
		{"technology", "技术"},
		{"history", "历史"},
		{"philosophy", "哲学"},
		{"art", "艺术"},
		{"education", "教育"},
		{"children", "儿童"},
		{"other", "其他"},
	}

	Conditions = []Choice{
		{"new", "全新"},
		{"like-new", "几乎全新"},
		{"good", "良好"},
		{"fair", "一般"},
		{"poor", "较差"},
	}

	// ActiveOrderStatuses block the deletion of a book.
	ActiveOrderStatuses = []string{OrderPending, OrderConfirmed, OrderPaid, OrderShipped}

	minPrice = decimal.New(1, -2)
)

// ConditionRank orders conditions from best (0) to worst; unknown conditions rank last.
func ConditionRank(condition string) int {
	for i, c := range Conditions {
		if c.Value == condition {
			return i
		}
	}
	return len(Conditions)
}

func isChoice(choices []Choice, v string) bool {
	for _, c := range choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

type Book struct {
	ID            string              `json:"id" db:"id"`
	Title         string              `json:"title" db:"title"`
	Author        string              `json:"author" db:"author"`
	ISBN          string              `json:"isbn" db:"isbn"`
	Publisher     string              `json:"publisher" db:"publisher"`
	PublishYear   null.Int            `json:"publish_year" db:"publish_year"`
	Category      string              `json:"category" db:"category"`
	Condition     string              `json:"condition" db:"condition"`
	Status        string              `json:"status" db:"status"`
	Description   string              `json:"description" db:"description"`
	Price         decimal.Decimal     `json:"price" db:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price" db:"original_price"`
	Location      string              `json:"location" db:"location"`
	Tags          core.StringList     `json:"tags" db:"tags"`
	SellerID      string              `json:"seller_id" db:"seller_id"`
	SellerName    string              `json:"seller_name" db:"-"`
	SellerAvatar  string              `json:"seller_avatar" db:"-"`
	Images        []Image             `json:"images" db:"-"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"` // UTC
}

type Image struct {
	ID        string    `json:"id" db:"id"`
	BookID    string    `json:"-" db:"book_id"`
	URL       string    `json:"url" db:"url"`
	ObjectKey string    `json:"-" db:"object_key"`
	IsCover   bool      `json:"is_cover" db:"is_cover"`
	Position  int       `json:"order" db:"position"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

type ShippingAddress struct {
	OrderID   string    `json:"-" db:"order_id"`
	Name      string    `json:"name" db:"name" validate:"required,max=50"`
	Phone     string    `json:"phone" db:"phone" validate:"required,max=20"`
	Province  string    `json:"province" db:"province" validate:"required,max=20"`
	City      string    `json:"city" db:"city" validate:"required,max=20"`
	District  string    `json:"district" db:"district" validate:"required,max=20"`
	Address   string    `json:"address" db:"address" validate:"required,max=200"`
	ZipCode   string    `json:"zip_code" db:"zip_code" validate:"max=10"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

type Order struct {
	ID              string           `json:"id" db:"id"`
	BookID          string           `json:"book_id" db:"book_id"`
	BuyerID         string           `json:"buyer_id" db:"buyer_id"`
	SellerID        string           `json:"seller_id" db:"seller_id"`
	BuyerName       string           `json:"buyer_name" db:"-"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	Status          string           `json:"status" db:"status"`
	Message         string           `json:"message" db:"message"`
	PaymentMethod   string           `json:"payment_method" db:"payment_method"`
	BuyerContact    string           `json:"buyer_contact" db:"buyer_contact"`
	ShippingAddress *ShippingAddress `json:"shipping_address" db:"-"`
	Book            *Book            `json:"book" db:"-"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`     // UTC
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`     // UTC
	CompletedAt     null.Time        `json:"completed_at" db:"completed_at"` // UTC
}

// NewBook contains information needed to list a new Book.
type NewBook struct {
	Title         string              `json:"title" validate:"required,notblank,max=200"`
	Author        string              `json:"author" validate:"required,notblank,max=100"`
	ISBN          string              `json:"isbn" validate:"max=20"`
	Publisher     string              `json:"publisher" validate:"max=100"`
	PublishYear   *int                `json:"publish_year" validate:"omitempty,min=1900,max=2030"`
	Category      string              `json:"category" validate:"omitempty,oneof=literature science technology history philosophy art education children other"`
	Condition     string              `json:"condition" validate:"omitempty,oneof=new like-new good fair poor"`
	Description   string              `json:"description" validate:"required,notblank"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Location      string              `json:"location" validate:"max=100"`
	Tags          []string            `json:"tags" validate:"omitempty,dive,max=50"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Author = core.CleanString(nb.Author)
	nb.ISBN = core.CleanString(nb.ISBN)
	nb.Publisher = core.CleanString(nb.Publisher)
	nb.Location = core.CleanString(nb.Location)
	if nb.Category == "" {
		nb.Category = "other"
	}
	if nb.Condition == "" {
		nb.Condition = "good"
	}
	if err := validate.Struct(nb); err != nil {
		return err
	}
	return validatePrices(&nb.Price, &nb.OriginalPrice)
}

// UpdateBook defines what information may be provided to modify an existing Book.
type UpdateBook struct {
	Title         *string             `json:"title" validate:"omitempty,notblank,max=200"`
	Author        *string             `json:"author" validate:"omitempty,notblank,max=100"`
	ISBN          *string             `json:"isbn" validate:"omitempty,max=20"`
	Publisher     *string             `json:"publisher" validate:"omitempty,max=100"`
	PublishYear   *int                `json:"publish_year" validate:"omitempty,min=1900,max=2030"`
	Category      *string             `json:"category" validate:"omitempty,oneof=literature science technology history philosophy art education children other"`
	Condition     *string             `json:"condition" validate:"omitempty,oneof=new like-new good fair poor"`
	Status        *string             `json:"status" validate:"omitempty,oneof=available sold reserved removed"`
	Description   *string             `json:"description" validate:"omitempty,notblank"`
	Price         *decimal.Decimal    `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Location      *string             `json:"location" validate:"omitempty,max=100"`
	Tags          []string            `json:"tags" validate:"omitempty,dive,max=50"`
}

func (ub *UpdateBook) Validate(validate *validator.Validate) error {
	if err := validate.Struct(ub); err != nil {
		return err
	}
	if ub.Price != nil {
		return validatePrices(ub.Price, &ub.OriginalPrice)
	}
	return validatePrices(nil, &ub.OriginalPrice)
}

func (ub UpdateBook) apply(b *Book) {
	str := func(dst *string, src *string) {
		if src != nil {
			*dst = core.CleanString(*src)
		}
	}
	str(&b.Title, ub.Title)
	str(&b.Author, ub.Author)
	str(&b.ISBN, ub.ISBN)
	str(&b.Publisher, ub.Publisher)
	str(&b.Category, ub.Category)
	str(&b.Condition, ub.Condition)
	str(&b.Status, ub.Status)
	str(&b.Description, ub.Description)
	str(&b.Location, ub.Location)
	if ub.PublishYear != nil {
		b.PublishYear = null.IntFrom(*ub.PublishYear)
	}
	if ub.Price != nil {
		b.Price = *ub.Price
	}
	if ub.OriginalPrice.Valid {
		b.OriginalPrice = ub.OriginalPrice
	}
	if ub.Tags != nil {
		b.Tags = ub.Tags
	}
}

func validatePrices(price *decimal.Decimal, original *decimal.NullDecimal) error {
	var flds []core.FieldError
	if price != nil {
		if price.LessThan(minPrice) {
			flds = append(flds, core.FieldError{Field: "price", Error: "price must be at least 0.01"})
		} else {
			*price = price.Round(2)
		}
	}
	if original.Valid {
		if original.Decimal.IsNegative() {
			flds = append(flds, core.FieldError{Field: "original_price", Error: "original_price cannot be negative"})
		} else {
			original.Decimal = original.Decimal.Round(2)
		}
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid price"), flds...)
	}
	return nil
}

// NewOrder contains information needed to place an Order.
type NewOrder struct {
	BookID          string           `json:"book_id" validate:"required"`
	Message         string           `json:"message"`
	PaymentMethod   string           `json:"payment_method" validate:"omitempty,oneof=wechat alipay cash bank-transfer"`
	BuyerContact    string           `json:"buyer_contact" validate:"required,notblank,max=100"`
	ShippingAddress *ShippingAddress `json:"shipping_address"`
}

func (no *NewOrder) Validate(validate *validator.Validate) error {
	no.BookID = core.CleanString(no.BookID)
	no.BuyerContact = core.CleanString(no.BuyerContact)
	return validate.Struct(no)
}

type UpdateOrder struct {
	Status string `json:"status" validate:"omitempty,oneof=pending confirmed paid shipped completed cancelled"`
}

func (uo UpdateOrder) Validate(validate *validator.Validate) error {
	return validate.Struct(uo)
}

// SearchFilter holds the query parameters of the book listing.
type SearchFilter struct {
	Keyword   string `query:"keyword"`
	Category  string `query:"category"`
	Condition string `query:"condition"`
	MinPrice  string `query:"min_price"`
	MaxPrice  string `query:"max_price"`
	Location  string `query:"location"`
	SortBy    string `query:"sort_by"`
	Page      int    `query:"page"`
	PageSize  int    `query:"page_size"`
}

// Query is a cleaned SearchFilter.
type Query struct {
	Keyword   string
	Category  string
	Condition string
	MinPrice  decimal.NullDecimal
	MaxPrice  decimal.NullDecimal
	Location  string
	SortBy    string
	Page      core.Page
}

// Clean drops the values that cannot be applied.
func (sf SearchFilter) Clean() Query {
	q := Query{
		Keyword:  core.CleanString(sf.Keyword),
		Location: core.CleanString(sf.Location),
		SortBy:   SortNewest,
		Page:     core.NewPage(sf.Page, sf.PageSize),
	}
	if isChoice(Categories, sf.Category) {
		q.Category = sf.Category
	}
	if isChoice(Conditions, sf.Condition) {
		q.Condition = sf.Condition
	}
	parsePrice := func(s string) decimal.NullDecimal {
		d, err := decimal.NewFromString(core.CleanString(s))
		if err != nil || d.IsNegative() {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}
	q.MinPrice = parsePrice(sf.MinPrice)
	q.MaxPrice = parsePrice(sf.MaxPrice)
	switch sf.SortBy {
	case SortPriceLow, SortPriceHigh, SortCondition:
		q.SortBy = sf.SortBy
	}
	return q
}
