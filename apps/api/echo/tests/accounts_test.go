package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core/user"
	emailsvc "github.com/aaronlou/innergrow.ai/services/email"
)

func TestAccountsApi_Register(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Existing", "existing@example.com")
	emailsvc.ResetSentMessages()

	tests := []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/accounts/auth/register",
			body:     []byte(`{"email":"bob@example.com"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error: "invalid input",
				Details: map[string]string{
					"name":             "this field is required",
					"password":         "this field is required",
					"confirm_password": "this field is required",
				},
			}),
		},
		{
			name:   "numeric password",
			method: http.MethodPost,
			path:   "/api/accounts/auth/register",
			body: marchallObj(t, user.NewUser{
				Email: "bob@example.com", Name: "Bob", Password: "123456", ConfirmPassword: "123456",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error:   "invalid input",
				Details: map[string]string{"password": "password cannot be entirely numeric"},
			}),
		},
		{
			name:   "existing email",
			method: http.MethodPost,
			path:   "/api/accounts/auth/register",
			body: marchallObj(t, user.NewUser{
				Email: "Existing@Example.com", Name: "Bob", Password: testPassword, ConfirmPassword: testPassword,
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error:   user.ErrEmailExists.Error(),
				Details: map[string]string{"email": user.ErrEmailExists.Error()},
			}),
		},
		{
			name:   "success",
			method: http.MethodPost,
			path:   "/api/accounts/auth/register",
			body: marchallObj(t, user.NewUser{
				Email: " Bob@Example.com ", Name: "Bob", Password: testPassword, ConfirmPassword: testPassword,
			}),
			wantCode: http.StatusCreated,
			check: func(t *testing.T, resp apiResponse) {
				var got AuthResponse
				resp.decode(t, &got)
				assert.Equal(t, "Registration successful", resp.Message)
				assert.Equal(t, "bob@example.com", got.User.Email)
				assert.Equal(t, "Bob", got.User.Name)
				assert.True(t, got.User.IsActive)
				assert.NotEmpty(t, got.Token)
			},
		},
	}
	app.run(t, tests)

	sent := emailsvc.GetSentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "bob@example.com", sent[0].To[0].Address)
	}
}

func TestAccountsApi_Login(t *testing.T) {
	app := setup(t)
	usr, _ := app.createUser(t, "Alice", "alice@example.com")

	tests := []httpTest{
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/api/accounts/auth/login",
			body:     []byte(`{"email":"alice@example.com"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error:   "invalid input",
				Details: map[string]string{"password": "this field is required"},
			}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/accounts/auth/login",
			body:     marchallObj(t, user.LoginCredentials{Email: "alice@example.com", Password: "nope-nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/accounts/auth/login",
			body:     marchallObj(t, user.LoginCredentials{Email: "ghost@example.com", Password: testPassword}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/api/accounts/auth/login",
			body:     marchallObj(t, user.LoginCredentials{Email: "ALICE@example.com", Password: testPassword}),
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got AuthResponse
				resp.decode(t, &got)
				assert.Equal(t, "Login successful", resp.Message)
				assert.Equal(t, usr.ID, got.User.ID)
				assert.True(t, got.User.LastLogin.Valid)
				assert.NotEmpty(t, got.Token)
			},
		},
	}
	app.run(t, tests)
}

func TestAccountsApi_Logout(t *testing.T) {
	app := setup(t)
	_, token := app.createUser(t, "Alice", "alice@example.com")

	rec, resp := app.do(t, http.MethodPost, "/api/accounts/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", resp.Message)

	// the token is revoked server side
	rec, resp = app.do(t, http.MethodGet, "/api/accounts/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", resp.Error)
}

func TestAccountsApi_CheckEmail(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Alice", "alice@example.com")

	tests := []httpTest{
		{
			name:     "missing email",
			method:   http.MethodGet,
			path:     "/api/accounts/auth/check-email",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error:   "email is required",
				Details: map[string]string{"email": "this field is required"},
			}),
		},
		{
			name:     "taken",
			method:   http.MethodGet,
			path:     "/api/accounts/auth/check-email?email=Alice@Example.com",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, Response{Success: true, Data: CheckEmailResponse{Exists: true, Available: false}}),
		},
		{
			name:     "available",
			method:   http.MethodGet,
			path:     "/api/accounts/auth/check-email?email=bob@example.com",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, Response{Success: true, Data: CheckEmailResponse{Exists: false, Available: true}}),
		},
	}
	app.run(t, tests)
}

func TestAccountsApi_Profile(t *testing.T) {
	app := setup(t)
	usr, token := app.createUser(t, "Alice", "alice@example.com")

	rec, resp := app.do(t, http.MethodGet, "/api/accounts/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	resp.decode(t, &got)
	assert.Equal(t, usr.Email, got.Email)
	require.NotNil(t, got.Preferences)
	assert.Equal(t, user.DefaultPreferences(usr.ID).Theme, got.Preferences.Theme)

	tests := []httpTest{
		{
			name:     "name too short",
			method:   http.MethodPatch,
			path:     "/api/accounts/profile/update",
			body:     []byte(`{"name":"A"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, resp apiResponse) {
				assert.Equal(t, "invalid input", resp.Error)
				assert.Contains(t, resp.Details, "name")
			},
		},
		{
			name:     "partial update",
			method:   http.MethodPut,
			path:     "/api/accounts/profile/update",
			body:     []byte(`{"bio":"Lifelong learner"}`),
			token:    token,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got user.User
				resp.decode(t, &got)
				assert.Equal(t, "Profile updated", resp.Message)
				assert.Equal(t, "Alice", got.Name)
				assert.Equal(t, "Lifelong learner", got.Bio)
			},
		},
	}
	app.run(t, tests)
}

func TestAccountsApi_Avatar(t *testing.T) {
	app := setup(t)
	_, token := app.createUser(t, "Alice", "alice@example.com")

	req, rec := newMultipartRequest(t, http.MethodPost, "/api/accounts/profile/avatar", token, "avatar")
	app.serve(req, rec)
	resp := decodeResponse(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"avatar": "no avatar uploaded"}, resp.Details)

	req, rec = newMultipartRequest(t, http.MethodPost, "/api/accounts/profile/avatar", token, "avatar",
		upload{name: "me.exe", content: []byte("MZ")})
	app.serve(req, rec)
	resp = decodeResponse(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported file type", resp.Error)

	req, rec = newMultipartRequest(t, http.MethodPost, "/api/accounts/profile/avatar", token, "avatar",
		upload{name: "me.png", content: []byte("\x89PNG\r\n\x1a\n")})
	app.serve(req, rec)
	resp = decodeResponse(t, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got user.User
	resp.decode(t, &got)
	assert.NotEmpty(t, got.Avatar)
	assert.Equal(t, 1, app.storage.Len())

	// replacing the avatar drops the previous object
	req, rec = newMultipartRequest(t, http.MethodPost, "/api/accounts/profile/avatar", token, "avatar",
		upload{name: "me2.png", content: []byte("\x89PNG\r\n\x1a\n")})
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, app.storage.Len())
}

func TestAccountsApi_Preferences(t *testing.T) {
	app := setup(t)
	usr, token := app.createUser(t, "Alice", "alice@example.com")

	tests := []httpTest{
		{
			name:     "get",
			method:   http.MethodGet,
			path:     "/api/accounts/preferences",
			token:    token,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got user.Preferences
				resp.decode(t, &got)
				assert.Equal(t, user.DefaultPreferences(usr.ID).Language, got.Language)
			},
		},
		{
			name:     "invalid theme",
			method:   http.MethodPatch,
			path:     "/api/accounts/preferences",
			body:     []byte(`{"theme":"neon"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, resp apiResponse) {
				assert.Contains(t, resp.Details, "theme")
			},
		},
		{
			name:     "update",
			method:   http.MethodPut,
			path:     "/api/accounts/preferences",
			body:     []byte(`{"theme":"dark","language":"zh"}`),
			token:    token,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got user.Preferences
				resp.decode(t, &got)
				assert.Equal(t, "Preferences updated", resp.Message)
				assert.Equal(t, "dark", got.Theme)
				assert.Equal(t, "zh", got.Language)
			},
		},
	}
	app.run(t, tests)

	prefs, err := app.usrSvc.GetPreferences(context.Background(), usr)
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Theme)
}
