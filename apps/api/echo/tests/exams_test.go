package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/aaronlou/innergrow.ai/apps/api/echo"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/exam"
)

func (app testApp) createExam(t *testing.T, token, title string) exam.Exam {
	t.Helper()
	rec, resp := app.do(t, http.MethodPost, "/api/exams", token, map[string]string{
		"title":     title,
		"summary":   "Chapters 1 to 5",
		"exam_time": "2030-06-07T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e exam.Exam
	resp.decode(t, &e)
	return e
}

func TestExamsApi_Create(t *testing.T) {
	app := setup(t)
	creator, token := app.createUser(t, "Creator", "creator@example.com")

	tests := []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodPost,
			path:     "/api/exams",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/exams",
			body:     []byte(`{"title":"Gaokao"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{
				Error: "invalid input",
				Details: map[string]string{
					"summary":   "this field is required",
					"exam_time": "this field is required",
				},
			}),
		},
		{
			name:     "success",
			method:   http.MethodPost,
			path:     "/api/exams",
			body:     []byte(`{"title":"Gaokao","summary":"Math & physics","exam_time":"2030-06-07T09:00:00+08:00"}`),
			token:    token,
			wantCode: http.StatusCreated,
			check: func(t *testing.T, resp apiResponse) {
				var got exam.Exam
				resp.decode(t, &got)
				assert.Equal(t, "Exam created", resp.Message)
				assert.Equal(t, creator.ID, got.CreatorID)
				assert.True(t, got.IsCreator)
				assert.False(t, got.IsParticipant)
				assert.Equal(t, "2030-06-07T01:00:00Z", got.ExamTime.Format("2006-01-02T15:04:05Z07:00"))
			},
		},
	}
	app.run(t, tests)
}

func TestExamsApi_Membership(t *testing.T) {
	app := setup(t)
	_, creatorToken := app.createUser(t, "Creator", "creator@example.com")
	_, memberToken := app.createUser(t, "Member", "member@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	e := app.createExam(t, creatorToken, "Gaokao")
	path := "/api/exams/" + e.ID

	tests := []httpTest{
		{
			name:     "join as creator",
			method:   http.MethodPost,
			path:     path + "/join",
			token:    creatorToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: "You are the creator of this exam"}),
		},
		{
			name:     "join",
			method:   http.MethodPost,
			path:     path + "/join",
			token:    memberToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got exam.Exam
				resp.decode(t, &got)
				assert.Equal(t, "Successfully joined the exam group", resp.Message)
				assert.True(t, got.IsParticipant)
				assert.Equal(t, 1, got.ParticipantsCount)
			},
		},
		{
			name:     "join twice",
			method:   http.MethodPost,
			path:     path + "/join",
			token:    memberToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: "You have already joined this exam group"}),
		},
		{
			name:     "update as stranger",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"title":"Hijacked"}`),
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "Only the creator and participants can update this exam"}),
		},
		{
			name:     "update as participant",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"summary":"Chapters 1 to 8"}`),
			token:    memberToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got exam.Exam
				resp.decode(t, &got)
				assert.Equal(t, "Exam updated", resp.Message)
				assert.Equal(t, "Gaokao", got.Title)
				assert.Equal(t, "Chapters 1 to 8", got.Summary)
			},
		},
		{
			name:     "leave as creator",
			method:   http.MethodPost,
			path:     path + "/leave",
			token:    creatorToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: "Exam creator cannot leave the group"}),
		},
		{
			name:     "leave",
			method:   http.MethodPost,
			path:     path + "/leave",
			token:    memberToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got exam.Exam
				resp.decode(t, &got)
				assert.False(t, got.IsParticipant)
				assert.Equal(t, 0, got.ParticipantsCount)
			},
		},
		{
			name:     "leave without joining",
			method:   http.MethodPost,
			path:     path + "/leave",
			token:    otherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, Response{Error: "You are not a participant of this exam group"}),
		},
		{
			name:     "delete as member",
			method:   http.MethodDelete,
			path:     path,
			token:    memberToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "Only the creator can delete this exam"}),
		},
		{
			name:     "list",
			method:   http.MethodGet,
			path:     "/api/exams",
			token:    otherToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var got []exam.Exam
				resp.decode(t, &got)
				require.Len(t, got, 1)
				assert.False(t, got[0].IsCreator)
			},
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     path,
			token:    creatorToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			method:   http.MethodGet,
			path:     path,
			token:    creatorToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, Response{Error: "exam not found"}),
		},
	}
	app.run(t, tests)
}

func TestExamsApi_Material(t *testing.T) {
	app := setup(t)
	_, creatorToken := app.createUser(t, "Creator", "creator@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	e := app.createExam(t, creatorToken, "Gaokao")
	path := "/api/exams/" + e.ID + "/material"

	rec, resp := app.do(t, http.MethodGet, path, creatorToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no material uploaded for this exam", resp.Error)

	req, rec := newMultipartRequest(t, http.MethodPut, path, otherToken, "material", upload{name: "notes.pdf", content: []byte("%PDF")})
	app.serve(req, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newMultipartRequest(t, http.MethodPut, path, creatorToken, "material")
	app.serve(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"material": "this field is required"}, decodeResponse(t, rec).Details)

	req, rec = newMultipartRequest(t, http.MethodPut, path, creatorToken, "material", upload{name: "notes.txt", content: []byte("notes")})
	app.serve(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"material": "unsupported file type, allowed: .pdf, .doc, .docx"}, decodeResponse(t, rec).Details)

	req, rec = newMultipartRequest(t, http.MethodPut, path, creatorToken, "material", upload{name: "notes.pdf", content: []byte("%PDF-1.4")})
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got exam.Exam
	decodeResponse(t, rec).decode(t, &got)
	assert.Equal(t, "notes.pdf", got.Material.String)

	rec, resp = app.do(t, http.MethodGet, path, otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var link exam.MaterialLink
	resp.decode(t, &link)
	assert.Equal(t, "notes.pdf", link.Name)
	assert.Contains(t, link.URL, "expires=")
	require.NotNil(t, link.Info)
	assert.EqualValues(t, len("%PDF-1.4"), link.Info.Size)

	rec = app.serve(newAuthRequest(http.MethodGet, path+"/download", otherToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Equal(t, `attachment; filename="notes.pdf"`, rec.Header().Get("Content-Disposition"))

	// replacing the material drops the previous object
	req, rec = newMultipartRequest(t, http.MethodPut, path, creatorToken, "material", upload{name: "v2.docx", content: []byte("docx")})
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, app.storage.Len())
}

func TestExamsApi_StudyPlan(t *testing.T) {
	app := setup(t)
	_, creatorToken := app.createUser(t, "Creator", "creator@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	e := app.createExam(t, creatorToken, "Gaokao")
	path := "/api/exams/" + e.ID + "/study-plan"

	tests := []httpTest{
		{
			name:     "stranger",
			method:   http.MethodPost,
			path:     path,
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, Response{Error: "You do not have access to this exam"}),
		},
		{
			name:     "creator",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"language":"zh"}`),
			token:    creatorToken,
			wantCode: http.StatusOK,
			check: func(t *testing.T, resp apiResponse) {
				var items []ai.Item
				resp.decode(t, &items)
				assert.Equal(t, "Study plan generated", resp.Message)
				require.Len(t, items, 3)
				assert.Equal(t, ai.Item{Title: "Plan your week", Description: "Block two evenings for practice", Priority: ai.PriorityHigh}, items[0])
				assert.Equal(t, ai.PriorityLow, items[2].Priority)
			},
		},
	}
	app.run(t, tests)
	assert.Equal(t, 1, app.completer.calls)

	app.completer.err = errors.New("upstream timeout")
	rec, resp := app.do(t, http.MethodPost, path, creatorToken, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(resp.Error, "failed to generate AI response"))
	assert.NotEmpty(t, app.logger.Messages("error"))
}

func TestExamsApi_StudyPlanUnavailable(t *testing.T) {
	app := setup(t, withoutAI())
	_, token := app.createUser(t, "Creator", "creator@example.com")
	e := app.createExam(t, token, "Gaokao")

	rec, resp := app.do(t, http.MethodPost, "/api/exams/"+e.ID+"/study-plan", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "AI service not available", resp.Error)
}

func TestExamsApi_StudyPlanRateLimit(t *testing.T) {
	app := setup(t, withAIRateLimit(1, 2))
	_, token := app.createUser(t, "Creator", "creator@example.com")
	_, otherToken := app.createUser(t, "Other", "other@example.com")
	e := app.createExam(t, token, "Gaokao")
	path := "/api/exams/" + e.ID + "/study-plan"

	for i := 0; i < 2; i++ {
		rec, _ := app.do(t, http.MethodPost, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := app.do(t, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many AI requests, please try again later", resp.Error)

	// limits are per user
	rec, _ = app.do(t, http.MethodPost, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
