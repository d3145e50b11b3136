package tests

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core/book"
)

func (app testApp) createBook(t *testing.T, token, title, price string) book.Book {
	t.Helper()
	rec, resp := app.do(t, http.MethodPost, "/api/books", token, map[string]interface{}{
		"title":       title,
		"author":      "Jane Doe",
		"description": "Barely used, no highlights",
		"category":    "science",
		"price":       price,
		"location":    "Shanghai",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b book.Book
	resp.decode(t, &b)
	return b
}

func TestBooksApi_Create(t *testing.T) {
	app := setup(t)
	seller, token := app.createUser(t, "Seller", "seller@example.com")

	tests := []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodPost,
			path:     "/api/books",
			body:     []byte(`{}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/books",
			body:     []byte(`{"price":"10"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error: "invalid input",
				Details: map[string]string{
					"title":       "this field is required",
					"author":      "this field is required",
					"description": "this field is required",
				},
			}),
		},
		{
			name:     "price too low",
			method:   http.MethodPost,
			path:     "/api/books",
			body:     []byte(`{"title":"Physics","author":"Jane","description":"Good","price":"0"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error:   "invalid price",
				Details: map[string]string{"price": "price must be at least 0.01"},
			}),
		},
		{
			name:     "defaults",
			method:   http.MethodPost,
			path:     "/api/books",
			body:     []byte(`{"title":" Physics ","author":"Jane","description":"Good","price":"12.345"}`),
			token:    token,
			wantCode: http.StatusCreated,
			check: func(t *testing.T, resp apiResponse) {
				var got book.Book
				resp.decode(t, &got)
				assert.Equal(t, "Book published", resp.Message)
				assert.Equal(t, "Physics", got.Title)
				assert.Equal(t, "other", got.Category)
				assert.Equal(t, "good", got.Condition)
				assert.Equal(t, book.StatusAvailable, got.Status)
				assert.Equal(t, "12.35", got.Price.StringFixed(2))
				assert.Equal(t, seller.ID, got.SellerID)
				assert.Equal(t, "Seller", got.SellerName)
			},
		},
	}
	app.run(t, tests)
}

func TestBooksApi_Search(t *testing.T) {
	app := setup(t)
	_, token := app.createUser(t, "Seller", "seller@example.com")
	app.createBook(t, token, "Organic Chemistry", "30")
	app.createBook(t, token, "Linear Algebra", "10")
	app.createBook(t, token, "Calculus", "20")

	titles := func(t *testing.T, resp apiResponse) []string {
		var books []book.Book
		resp.decode(t, &books)
		res := make([]string, 0, len(books))
		for _, b := range books {
			res = append(res, b.Title)
		}
		return res
	}

	tests := []httpTest{
		{
			name:     "price low first",
			method:   http.MethodGet,
			path:     "/api/books?sort_by=price-low",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				assert.Equal(t, []string{"Linear Algebra", "Calculus", "Organic Chemistry"}, titles(t, resp))
				require.NotNil(t, resp.Count)
				assert.Equal(t, 3, *resp.Count)
			},
		},
		{
			name:     "keyword",
			method:   http.MethodGet,
			path:     "/api/books?keyword=algebra",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				assert.Equal(t, []string{"Linear Algebra"}, titles(t, resp))
			},
		},
		{
			name:     "price range",
			method:   http.MethodGet,
			path:     "/api/books?min_price=15&max_price=25",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				assert.Equal(t, []string{"Calculus"}, titles(t, resp))
			},
		},
		{
			name:     "invalid price range is ignored",
			method:   http.MethodGet,
			path:     "/api/books?min_price=abc",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				assert.Len(t, titles(t, resp), 3)
			},
		},
		{
			name:     "pagination",
			method:   http.MethodGet,
			path:     "/api/books?sort_by=price-high&page=2&page_size=2",
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				assert.Equal(t, []string{"Linear Algebra"}, titles(t, resp))
				assert.Equal(t, 3, *resp.Count)
			},
		},
		{
			name:     "no match",
			method:   http.MethodGet,
			path:     "/api/books?keyword=poetry",
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":true,"data":[],"count":0}`),
		},
	}
	app.run(t, tests)
}

func TestBooksApi_Choices(t *testing.T) {
	app := setup(t)

	rec, resp := app.do(t, http.MethodGet, "/api/books/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []book.Choice
	resp.decode(t, &cats)
	assert.Equal(t, len(book.Categories), len(cats))

	rec, resp = app.do(t, http.MethodGet, "/api/books/conditions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conds []book.Choice
	resp.decode(t, &conds)
	assert.Equal(t, len(book.Conditions), len(conds))
}

func TestBooksApi_Detail(t *testing.T) {
	app := setup(t)
	_, sellerToken := app.createUser(t, "Seller", "seller@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	b := app.createBook(t, sellerToken, "Physics", "15")
	path := "/api/books/" + b.ID

	tests := []httpTest{
		{
			name:     "retrieve anonymously",
			method:   http.MethodGet,
			path:     path,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got book.Book
				resp.decode(t, &got)
				assert.Equal(t, b.ID, got.ID)
			},
		},
		{
			name:     "unknown book",
			method:   http.MethodGet,
			path:     "/api/books/7b1c5a8e-2f0b-4a55-9f1f-3d4cc2e0a001",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, Response{Error: "book not found"}),
		},
		{
			name:     "update someone else's book",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"price":"1"}`),
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "you can only edit your own books"}),
		},
		{
			name:     "partial update",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"price":"9.5","condition":"like-new"}`),
			token:    sellerToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got book.Book
				resp.decode(t, &got)
				assert.Equal(t, "Book updated", resp.Message)
				assert.Equal(t, "Physics", got.Title)
				assert.Equal(t, "like-new", got.Condition)
				assert.True(t, decimal.RequireFromString("9.5").Equal(got.Price))
			},
		},
		{
			name:     "delete someone else's book",
			method:   http.MethodDelete,
			path:     path,
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "you can only delete your own books"}),
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     path,
			token:    sellerToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			method:   http.MethodGet,
			path:     path,
			wantCode: http.StatusNotFound,
		},
	}
	app.run(t, tests)
}

func TestBooksApi_Images(t *testing.T) {
	app := setup(t)
	_, token := app.createUser(t, "Seller", "seller@example.com")
	b := app.createBook(t, token, "Physics", "15")
	path := "/api/books/" + b.ID + "/images"

	req, rec := newMultipartRequest(t, http.MethodPost, path, token, "images",
		upload{name: "cover.jpg", content: []byte("jpg")},
		upload{name: "back.png", content: []byte("png")},
	)
	app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got book.Book
	decodeResponse(t, rec).decode(t, &got)
	require.Len(t, got.Images, 2)
	assert.True(t, got.Images[0].IsCover)
	assert.Equal(t, 2, app.storage.Len())

	rec, _ = app.do(t, http.MethodDelete, path+"/"+got.Images[0].ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, app.storage.Len())

	req, rec = newMultipartRequest(t, http.MethodPost, path, token, "images")
	app.serve(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"images": "no images uploaded"}, decodeResponse(t, rec).Details)
}

func TestBooksApi_Orders(t *testing.T) {
	app := setup(t)
	_, sellerToken := app.createUser(t, "Seller", "seller@example.com")
	buyer, buyerToken := app.createUser(t, "Buyer", "buyer@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	b := app.createBook(t, sellerToken, "Physics", "15")

	bookErr := func(msg string) []byte {
		return marchallObj(t, Response{Error: msg, Details: map[string]string{"book_id": msg}})
	}

	var order book.Order
	tests := []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/books/orders",
			body:     []byte(`{}`),
			token:    buyerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error: "invalid input",
				Details: map[string]string{
					"book_id":       "this field is required",
					"buyer_contact": "this field is required",
				},
			}),
		},
		{
			name:     "own book",
			method:   http.MethodPost,
			path:     "/api/books/orders",
			body:     marchallObj(t, book.NewOrder{BookID: b.ID, BuyerContact: "wechat: seller"}),
			token:    sellerToken,
			wantCode: http.StatusBadRequest,
			wantData: bookErr("you cannot buy your own book"),
		},
		{
			name:     "unknown book",
			method:   http.MethodPost,
			path:     "/api/books/orders",
			body:     marchallObj(t, book.NewOrder{BookID: "7b1c5a8e-2f0b-4a55-9f1f-3d4cc2e0a001", BuyerContact: "wechat: buyer"}),
			token:    buyerToken,
			wantCode: http.StatusBadRequest,
			wantData: bookErr("book does not exist"),
		},
		{
			name:     "place",
			method:   http.MethodPost,
			path:     "/api/books/orders",
			body:     marchallObj(t, book.NewOrder{BookID: b.ID, BuyerContact: "wechat: buyer", PaymentMethod: "alipay"}),
			token:    buyerToken,
			wantCode: http.StatusCreated,
			check: func(t *testing.T, resp apiResponse) {
				resp.decode(t, &order)
				assert.Equal(t, "Order placed", resp.Message)
				assert.Equal(t, book.OrderPending, order.Status)
				assert.Equal(t, buyer.ID, order.BuyerID)
				assert.True(t, decimal.NewFromInt(15).Equal(order.Amount))
				require.NotNil(t, order.Book)
				assert.Equal(t, book.StatusReserved, order.Book.Status)
			},
		},
		{
			name:     "reserved book",
			method:   http.MethodPost,
			path:     "/api/books/orders",
			body:     marchallObj(t, book.NewOrder{BookID: b.ID, BuyerContact: "wechat: other"}),
			token:    otherToken,
			wantCode: http.StatusBadRequest,
			wantData: bookErr("this book is not available for purchase"),
		},
	}
	app.run(t, tests)
	require.NotEmpty(t, order.ID)
	orderPath := "/api/books/orders/" + order.ID

	tests = []httpTest{
		{
			name:     "purchases",
			method:   http.MethodGet,
			path:     "/api/books/orders?type=purchases",
			token:    buyerToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var orders []book.Order
				resp.decode(t, &orders)
				require.Len(t, orders, 1)
				assert.Equal(t, order.ID, orders[0].ID)
			},
		},
		{
			name:     "no sales",
			method:   http.MethodGet,
			path:     "/api/books/orders?type=sales",
			token:    buyerToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":true,"data":[]}`),
		},
		{
			name:     "retrieve as stranger",
			method:   http.MethodGet,
			path:     orderPath,
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "you do not have permission to view this order"}),
		},
		{
			name:     "update as buyer",
			method:   http.MethodPatch,
			path:     orderPath,
			body:     []byte(`{"status":"completed"}`),
			token:    buyerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "only the seller can update the order status"}),
		},
		{
			name:     "invalid status",
			method:   http.MethodPatch,
			path:     orderPath,
			body:     []byte(`{"status":"lost"}`),
			token:    sellerToken,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, resp apiResponse) {
				assert.Contains(t, resp.Details, "status")
			},
		},
		{
			name:     "complete",
			method:   http.MethodPut,
			path:     orderPath,
			body:     []byte(`{"status":"completed"}`),
			token:    sellerToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got book.Order
				resp.decode(t, &got)
				assert.Equal(t, "Order updated", resp.Message)
				assert.Equal(t, book.OrderCompleted, got.Status)
				assert.True(t, got.CompletedAt.Valid)
				require.NotNil(t, got.Book)
				assert.Equal(t, book.StatusSold, got.Book.Status)
			},
		},
	}
	app.run(t, tests)
}
