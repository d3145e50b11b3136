package discussion_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/user"
	storagesvc "github.com/aaronlou/innergrow.ai/services/storage"
	inmemdb "github.com/aaronlou/innergrow.ai/storage/database/inmem"
	testutil "github.com/aaronlou/innergrow.ai/tests"
)

type fixture struct {
	svc     *discussion.Service
	repo    discussion.Repository
	users   *user.Service
	exams   exam.Repository
	storage *storagesvc.MemoryStorage
	alice   user.User
	bob     user.User
	exam    exam.Exam
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	t.Cleanup(func() { _ = db.Close() })

	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, nil, nil, nil)
	examRepo := inmemdb.NewExamRepository(db)
	storage := storagesvc.NewMemoryStorage("http://localhost:8000/media/")

	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice@example.com", "", false)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob@example.com", "", false)
	now := time.Now().UTC()
	e, err := examRepo.CreateExam(context.Background(), exam.Exam{
		ID:        "5b0e3a9e-5f6f-4c3e-9a43-4d7a0b7a6a10",
		Title:     "GRE",
		Summary:   "General test",
		ExamTime:  now.Add(30 * 24 * time.Hour),
		CreatorID: alice.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	repo := inmemdb.NewDiscussionRepository(db)
	return fixture{
		svc:     discussion.NewService(repo, examRepo, usrSvc, storage),
		repo:    repo,
		users:   usrSvc,
		exams:   examRepo,
		storage: storage,
		alice:   alice,
		bob:     bob,
		exam:    e,
	}
}

func assertValidationErr(t *testing.T, err error, msg string) {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want ValidationError, got %v", err)
	assert.Equal(t, msg, verr.Error())
}

func assertPermissionErr(t *testing.T, err error) {
	t.Helper()
	_, ok := errors.Cause(err).(*core.PermissionError)
	assert.True(t, ok, "want PermissionError, got %v", err)
}

func TestService_Rooms(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Room(ctx, f.alice, "7c2b4e07-0a47-4f0f-8a0c-8a2f3c1f0e11")
	assert.True(t, core.IsNotFound(err), "want NotFoundError, got %v", err)

	r, err := f.svc.Room(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "GRE - Discussion Room", r.Title)
	assert.Equal(t, "Discussion room for GRE exam", r.Description)
	assert.False(t, r.IsMember)

	again, err := f.svc.Room(ctx, f.bob, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID, "one room per exam")

	r, msg, err := f.svc.JoinRoom(ctx, f.bob, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, discussion.MsgJoined, msg)
	assert.True(t, r.IsMember)
	assert.Equal(t, 1, r.MembersCount)

	r, msg, err = f.svc.JoinRoom(ctx, f.bob, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, discussion.MsgAlreadyMember, msg)
	assert.Equal(t, 1, r.MembersCount)

	r, err = f.svc.LeaveRoom(ctx, f.bob, f.exam.ID)
	require.NoError(t, err)
	assert.False(t, r.IsMember)
	assert.Equal(t, 0, r.MembersCount)

	_, err = f.svc.LeaveRoom(ctx, f.bob, f.exam.ID)
	assertValidationErr(t, err, "You are not a member of this discussion room")
}

func TestService_Posts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, err := f.svc.Room(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)

	np := discussion.NewPost{Title: "Tips", Content: "Read a lot", PostType: "resource", Tags: []string{"verbal"}}
	_, err = f.svc.CreatePost(ctx, f.alice, r.ID, np)
	assertValidationErr(t, err, "You need to join the discussion room first to post")

	_, _, err = f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, np)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, p.AuthorID)
	assert.Equal(t, f.alice.Username, p.AuthorName)
	assert.Equal(t, core.StringList{"verbal"}, p.Tags)
	assert.NotNil(t, p.Attachments)
	assert.False(t, p.UserVote.Valid)

	newTitle := "Better tips"
	_, err = f.svc.UpdatePost(ctx, f.bob, p, discussion.UpdatePost{Title: &newTitle})
	assertPermissionErr(t, err)
	p, err = f.svc.UpdatePost(ctx, f.alice, p, discussion.UpdatePost{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, p.Title)

	posts, err := f.svc.Posts(ctx, f.bob, r.ID, discussion.PostFilter{PostType: "question"})
	require.NoError(t, err)
	assert.Len(t, posts, 0)
	posts, err = f.svc.Posts(ctx, f.bob, r.ID, discussion.PostFilter{PostType: "resource"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)

	assertPermissionErr(t, f.svc.DeletePost(ctx, f.bob, p))
	require.NoError(t, f.svc.DeletePost(ctx, f.alice, p))
	_, err = f.svc.GetPost(ctx, f.alice, p.ID)
	assert.True(t, core.IsNotFound(err), "want NotFoundError, got %v", err)
}

func TestService_VotePost(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, _, err := f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Q", Content: "?"})
	require.NoError(t, err)

	_, err = f.svc.VotePost(ctx, f.bob, p, "sideways")
	assertValidationErr(t, err, "Invalid vote type")

	p, err = f.svc.VotePost(ctx, f.bob, p, discussion.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Upvotes)
	assert.Equal(t, discussion.VoteUp, p.UserVote.String)

	// a second vote replaces the first one
	p, err = f.svc.VotePost(ctx, f.bob, p, discussion.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Upvotes)
	assert.Equal(t, 1, p.Downvotes)

	seenByAlice, err := f.svc.GetPost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.False(t, seenByAlice.UserVote.Valid)

	p, err = f.svc.VotePost(ctx, f.bob, p, discussion.VoteRemove)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Downvotes)
	assert.False(t, p.UserVote.Valid)

	_, err = f.svc.VotePost(ctx, f.bob, p, discussion.VoteRemove)
	assert.NoError(t, err)
}

func TestService_Comments(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, _, err := f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Q", Content: "?"})
	require.NoError(t, err)

	_, err = f.svc.CreateComment(ctx, f.bob, p, discussion.NewComment{Content: "hi"})
	assertValidationErr(t, err, "You need to join the discussion room first to comment")

	_, _, err = f.svc.JoinRoom(ctx, f.bob, f.exam.ID)
	require.NoError(t, err)
	c, err := f.svc.CreateComment(ctx, f.bob, p, discussion.NewComment{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, f.bob.Username, c.AuthorName)
	assert.False(t, c.ParentID.Valid)

	badParent := "not-a-uuid"
	_, err = f.svc.CreateComment(ctx, f.alice, p, discussion.NewComment{Content: "reply", ParentID: &badParent})
	assertValidationErr(t, err, "Parent comment does not exist")

	reply, err := f.svc.CreateComment(ctx, f.alice, p, discussion.NewComment{Content: "reply", ParentID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, c.ID, reply.ParentID.String)

	other, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Other", Content: "!"})
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, f.alice, other, discussion.NewComment{Content: "x", ParentID: &c.ID})
	assertValidationErr(t, err, "Parent comment does not exist")

	c, err = f.svc.VoteComment(ctx, f.alice, c, discussion.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Upvotes)
	assert.Equal(t, discussion.VoteUp, c.UserVote.String)

	_, err = f.svc.UpdateComment(ctx, f.alice, c, discussion.UpdateComment{Content: "edited"})
	assertPermissionErr(t, err)
	c, err = f.svc.UpdateComment(ctx, f.bob, c, discussion.UpdateComment{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	p, err = f.svc.GetPost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CommentsCount)

	assertPermissionErr(t, f.svc.DeleteComment(ctx, f.alice, c))
	require.NoError(t, f.svc.DeleteComment(ctx, f.bob, c))

	_, err = f.svc.GetComment(ctx, f.bob, c.ID)
	assert.True(t, core.IsNotFound(err), "want NotFoundError, got %v", err)
	comments, err := f.svc.Comments(ctx, f.alice, p)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, reply.ID, comments[0].ID)
	assert.Equal(t, c.ID, comments[0].ParentID.String, "replies keep their deleted parent")
}

func TestService_UploadAttachments(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, _, err := f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Notes", Content: "attached"})
	require.NoError(t, err)

	files := []core.File{
		{Name: "diagram.PNG", Size: 3, Content: strings.NewReader("png")},
		{Name: "notes.pdf", Size: 4, Content: strings.NewReader("%PDF")},
	}
	_, err = f.svc.UploadAttachments(ctx, f.bob, p, files)
	assertPermissionErr(t, err)

	_, err = f.svc.UploadAttachments(ctx, f.alice, p, nil)
	assertValidationErr(t, err, "no files uploaded")

	_, err = f.svc.UploadAttachments(ctx, f.alice, p, []core.File{{Name: "run.exe", Size: 1, Content: strings.NewReader("x")}})
	assertValidationErr(t, err, "unsupported file type")

	p, err = f.svc.UploadAttachments(ctx, f.alice, p, files)
	require.NoError(t, err)
	require.Len(t, p.Attachments, 2)
	types := map[string]string{}
	for _, a := range p.Attachments {
		types[a.Name] = a.Type
		assert.True(t, strings.HasPrefix(a.URL, "http://localhost:8000/media/attachments/"+p.ID+"/"), a.URL)
	}
	assert.Equal(t, map[string]string{"diagram.PNG": discussion.AttachmentImage, "notes.pdf": discussion.AttachmentFile}, types)
	assert.Equal(t, 2, f.storage.Len())
}

// failingStorage fails the upload of one file name.
type failingStorage struct {
	*storagesvc.MemoryStorage
	failOn string
}

func (s failingStorage) Upload(ctx context.Context, key string, f core.File) (*core.ObjectInfo, error) {
	if f.Name == s.failOn {
		return nil, errors.New("bucket unavailable")
	}
	return s.MemoryStorage.Upload(ctx, key, f)
}

type failingAttachmentRepo struct {
	discussion.Repository
}

func (failingAttachmentRepo) AddAttachments(context.Context, ...discussion.Attachment) error {
	return errors.New("db down")
}

func TestService_UploadAttachmentsCleansUpOnFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, _, err := f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Notes", Content: "attached"})
	require.NoError(t, err)

	newFiles := func() []core.File {
		return []core.File{
			{Name: "diagram.png", Size: 3, Content: strings.NewReader("png")},
			{Name: "notes.pdf", Size: 4, Content: strings.NewReader("%PDF")},
			{Name: "summary.md", Size: 6, Content: strings.NewReader("# sum.")},
		}
	}

	t.Run("upload fails", func(t *testing.T) {
		svc := discussion.NewService(f.repo, f.exams, f.users, failingStorage{MemoryStorage: f.storage, failOn: "notes.pdf"})
		_, err := svc.UploadAttachments(ctx, f.alice, p, newFiles())
		var perr *core.ProviderError
		require.True(t, errors.As(err, &perr), "want ProviderError, got %v", err)
		assert.Equal(t, 0, f.storage.Len())

		got, err := f.svc.GetPost(ctx, f.alice, p.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Attachments)
	})

	t.Run("saving fails", func(t *testing.T) {
		svc := discussion.NewService(failingAttachmentRepo{f.repo}, f.exams, f.users, f.storage)
		_, err := svc.UploadAttachments(ctx, f.alice, p, newFiles())
		assert.EqualError(t, err, "db down")
		assert.Equal(t, 0, f.storage.Len())
	})
}

func TestService_AuthorOnlyMessages(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, _, err := f.svc.JoinRoom(ctx, f.alice, f.exam.ID)
	require.NoError(t, err)
	p, err := f.svc.CreatePost(ctx, f.alice, r.ID, discussion.NewPost{Title: "Mine", Content: "only mine"})
	require.NoError(t, err)
	c, err := f.svc.CreateComment(ctx, f.alice, p, discussion.NewComment{Content: "mine too"})
	require.NoError(t, err)

	title := "Hijacked"
	_, err = f.svc.UpdatePost(ctx, f.bob, p, discussion.UpdatePost{Title: &title})
	assert.EqualError(t, err, "You can only edit your own posts")
	assert.EqualError(t, f.svc.DeletePost(ctx, f.bob, p), "You can only delete your own posts")
	_, err = f.svc.UpdateComment(ctx, f.bob, c, discussion.UpdateComment{Content: "hijacked"})
	assert.EqualError(t, err, "You can only edit your own comments")
	assert.EqualError(t, f.svc.DeleteComment(ctx, f.bob, c), "You can only delete your own comments")
}
