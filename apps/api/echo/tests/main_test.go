package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	. "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/book"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
	emailsvc "github.com/aaronlou/innergrow.ai/services/email"
	storagesvc "github.com/aaronlou/innergrow.ai/services/storage"
	inmemdb "github.com/aaronlou/innergrow.ai/storage/database/inmem"
	testutil "github.com/aaronlou/innergrow.ai/tests"
)

const testPassword = "Str0ng-Passw0rd!"

var (
	errMissingToken = Response{Error: "missing or malformed jwt"}
	errNotFound     = Response{Error: "not found"}
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("os/signal.signal_recv"))
}

type completerMock struct {
	resp  string
	err   error
	calls int
}

func (m *completerMock) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.resp, m.err
}

type testApp struct {
	server    *Server
	usrRepo   user.Repository
	usrSvc    *user.Service
	examRepo  exam.Repository
	goalSvc   *goal.Service
	storage   *storagesvc.MemoryStorage
	completer *completerMock
	logger    *testutil.Logger
}

type setupOptions struct {
	conf  *core.Config
	noAI  bool
	aiRes string
}

type setupOption func(*setupOptions)

// withoutAI leaves the AI provider unconfigured.
func withoutAI() setupOption {
	return func(o *setupOptions) { o.noAI = true }
}

// withAIRateLimit overrides the per user AI rate limit.
func withAIRateLimit(perMinute float64, burst int) setupOption {
	return func(o *setupOptions) {
		conf := *core.Conf
		conf.AI.RateLimit = perMinute
		conf.AI.RateBurst = burst
		o.conf = &conf
	}
}

func setup(t *testing.T, opts ...setupOption) testApp {
	t.Helper()
	o := setupOptions{
		conf:  core.Conf,
		aiRes: "1. Plan your week\nBlock two evenings for practice\n2. Track progress\n3. Review mistakes",
	}
	for _, opt := range opts {
		opt(&o)
	}

	// set up DB & repos
	db := inmemdb.Open()
	t.Cleanup(func() { _ = db.Close() })
	usrRepo := inmemdb.NewUserRepository(db)
	examRepo := inmemdb.NewExamRepository(db)

	// set up services
	logger := testutil.NewLogger()
	storage := storagesvc.NewMemoryStorage("http://" + o.conf.Server.Host + "/media/")
	mailSvc := emailsvc.NewConsoleServiceMock(o.conf, logger)
	completer := &completerMock{resp: o.aiRes}
	aiSvc := ai.NewService(completer)
	if o.noAI {
		aiSvc = ai.NewService(nil)
	}

	usrSvc := user.NewService(usrRepo, mailSvc, storage, nil)
	goalSvc := goal.NewService(inmemdb.NewGoalRepository(db), usrSvc, aiSvc)
	waitlistSvc := waitlist.NewService(inmemdb.NewWaitlistRepository(db))
	require.NoError(t, goalSvc.SeedDefaults(context.Background()))
	require.NoError(t, waitlistSvc.SeedDefaults(context.Background()))

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:           o.conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Storage:        storage,
		ServeMedia:     true,
		UserSvc:        usrSvc,
		BookSvc:        book.NewService(inmemdb.NewBookRepository(db), usrSvc, storage),
		ExamSvc:        exam.NewService(examRepo, storage, aiSvc, o.conf.Storage.SignedURLExpiry),
		DiscussionSvc:  discussion.NewService(inmemdb.NewDiscussionRepository(db), examRepo, usrSvc, storage),
		GoalSvc:        goalSvc,
		WaitlistSvc:    waitlistSvc,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return testApp{
		server:    srv,
		usrRepo:   usrRepo,
		usrSvc:    usrSvc,
		examRepo:  examRepo,
		goalSvc:   goalSvc,
		storage:   storage,
		completer: completer,
		logger:    logger,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// createUser stores an active user and returns it along with a valid API token.
func (app testApp) createUser(t *testing.T, name, email string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, app.usrRepo, name, email, testPassword, false)
	return usr, app.getToken(t, usr)
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	tok, err := app.usrSvc.IssueToken(context.Background(), usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	token, err := GenerateToken(GetUserClaims(usr, tok))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (app testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

// do sends a JSON request and decodes the response envelope.
func (app testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	rec := app.serve(newAuthRequest(method, path, token, data))
	return rec, decodeResponse(t, rec)
}

func (app testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	check    func(t *testing.T, resp apiResponse)
}

// apiResponse is the decoded form of the Response envelope.
type apiResponse struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
	Count   *int              `json:"count"`
}

// decode unmarshals the response data into v.
func (resp apiResponse) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NotEmpty(t, resp.Data, "response has no data")
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if rec.Body.Len() == 0 {
		return resp
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

type upload struct {
	name    string
	content []byte
}

// newMultipartRequest builds a multipart/form-data request with the uploads under field.
func newMultipartRequest(t *testing.T, method, path, token, field string, uploads ...upload) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := w.CreateFormFile(field, u.name)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData != nil {
		ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
		if err != nil {
			t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
		}
		if !ok {
			t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
		}
	}
	if tt.check != nil {
		tt.check(t, decodeResponse(t, rec))
	}
}

func TestServer_Home(t *testing.T) {
	app := setup(t)
	rec := app.serve(newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+core.Conf.AppName+" API!", rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	app := setup(t)
	app.serve(newRequest(http.MethodGet, "/api/books"))

	rec := app.serve(newRequest(http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_Auth(t *testing.T) {
	app := setup(t)
	usr, token := app.createUser(t, "Alice", "alice@example.com")

	inactive, inactiveToken := app.createUser(t, "Inactive", "inactive@example.com")
	inactive.IsActive = false
	_, err := app.usrRepo.UpdateUser(context.Background(), inactive)
	require.NoError(t, err)

	revoked, revokedToken := app.createUser(t, "Revoked", "revoked@example.com")
	require.NoError(t, app.usrSvc.Logout(context.Background(), revoked))

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/api/accounts/profile",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "malformed token",
			method:   http.MethodGet,
			path:     "/api/accounts/profile",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, Response{Error: "invalid or expired jwt"}),
		},
		{
			name:     "revoked token",
			method:   http.MethodGet,
			path:     "/api/accounts/profile",
			token:    revokedToken,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, Response{Error: "invalid token"}),
		},
		{
			name:     "inactive user",
			method:   http.MethodGet,
			path:     "/api/accounts/profile",
			token:    inactiveToken,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, Response{Error: "user inactive or deleted"}),
		},
		{
			name:     "valid token",
			method:   http.MethodGet,
			path:     "/api/accounts/profile",
			token:    token,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got user.User
				resp.decode(t, &got)
				assert.Equal(t, usr.ID, got.ID)
			},
		},
	}
	app.run(t, tests)
}

func TestServer_InvalidIDs(t *testing.T) {
	app := setup(t)
	_, token := app.createUser(t, "Alice", "alice@example.com")

	paths := []string{
		"/api/books/123",
		"/api/books/orders/abc",
		"/api/exams/abc",
		"/api/exams/abc/discussion-room",
		"/api/discussion-rooms/abc/posts",
		"/api/posts/abc",
		"/api/goals/abc",
		"/api/goals/public/abc",
	}
	var tests []httpTest
	for _, p := range paths {
		tests = append(tests, httpTest{
			name:     p,
			method:   http.MethodGet,
			path:     p,
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		})
	}
	app.run(t, tests)
}

func TestServer_Media(t *testing.T) {
	app := setup(t)
	_, err := app.storage.Upload(context.Background(), "docs/notes.txt", core.File{
		Name:        "notes.txt",
		Size:        5,
		ContentType: "text/plain",
		Content:     bytes.NewReader([]byte("hello")),
	})
	require.NoError(t, err)

	rec := app.serve(newRequest(http.MethodGet, "/media/docs/notes.txt"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	rec = app.serve(newRequest(http.MethodGet, "/media/docs/missing.txt"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
