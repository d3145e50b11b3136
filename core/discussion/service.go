package discussion

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/user"
)

// Attachment upload rules
const (
	AttachmentMaxSize   = 20 << 20
	attachmentKeyPrefix = "attachments"
	uploadConcurrency   = 4
)

var (
	AttachmentExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf", ".doc", ".docx", ".txt", ".md", ".zip"}
	imageExts      = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
)

// Messages
const (
	MsgRoomRetrieved = "Successfully retrieved discussion room"
	MsgAlreadyMember = "You are already a member of this discussion room"
	MsgJoined        = "Successfully joined discussion room"
	MsgLeft          = "Successfully left discussion room"
	MsgVoted         = "Vote successful"
)

var (
	// errors
	ErrRoomNotFound    = core.NewNotFoundError("Discussion room does not exist")
	ErrPostNotFound    = core.NewNotFoundError("post not found")
	ErrCommentNotFound = core.NewNotFoundError("comment not found")
	errNotMember       = errors.New("You are not a member of this discussion room")
	errJoinToPost      = errors.New("You need to join the discussion room first to post")
	errJoinToComment   = errors.New("You need to join the discussion room first to comment")
	errInvalidVote     = errors.New("Invalid vote type")
	errParentNotExist  = errors.New("Parent comment does not exist")
	errNoFilesUploaded = errors.New("no files uploaded")
)

// permission messages
const (
	msgEditPostForbidden = "You can only edit your own posts"
	msgDelPostForbidden  = "You can only delete your own posts"
	msgEditCmtForbidden  = "You can only edit your own comments"
	msgDelCmtForbidden   = "You can only delete your own comments"
)

type (
	Repository interface {
		// GetOrCreateRoom returns the room of the exam, creating `r` when none exists.
		GetOrCreateRoom(ctx context.Context, r Room) (Room, error)
		GetRoomByExamID(ctx context.Context, examID string) (Room, error)
		GetRoomByID(ctx context.Context, id string) (Room, error)
		IsMember(ctx context.Context, roomID, userID string) (bool, error)
		// AddMember reports whether the user was added (false if already a member).
		AddMember(ctx context.Context, roomID, userID string, joinedAt time.Time) (bool, error)
		// RemoveMember reports whether the user was removed (false if not a member).
		RemoveMember(ctx context.Context, roomID, userID string) (bool, error)

		// QueryPosts returns the room posts with their vote & comment counts and attachments.
		QueryPosts(ctx context.Context, roomID, postType string) ([]Post, error)
		GetPostByID(ctx context.Context, id string) (Post, error)
		CreatePost(ctx context.Context, p Post) (Post, error)
		UpdatePost(ctx context.Context, p Post) (Post, error)
		DeletePost(ctx context.Context, id string) error
		AddAttachments(ctx context.Context, atts ...Attachment) error

		// QueryComments returns the non-deleted comments of the post, oldest first.
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
		GetCommentByID(ctx context.Context, id string) (Comment, error)
		CreateComment(ctx context.Context, c Comment) (Comment, error)
		UpdateComment(ctx context.Context, c Comment) (Comment, error)

		// SetPostVote creates or overwrites the user's vote on the post.
		SetPostVote(ctx context.Context, v Vote) error
		// DeletePostVote is a no-op when the user has not voted.
		DeletePostVote(ctx context.Context, postID, userID string) error
		SetCommentVote(ctx context.Context, v Vote) error
		DeleteCommentVote(ctx context.Context, commentID, userID string) error
		// UserPostVotes returns the user's vote types keyed by post ID.
		UserPostVotes(ctx context.Context, userID string, postIDs ...string) (map[string]string, error)
		UserCommentVotes(ctx context.Context, userID string, commentIDs ...string) (map[string]string, error)
	}

	ExamFinder interface {
		GetExamByID(ctx context.Context, id string) (exam.Exam, error)
	}

	UserFinder interface {
		GetManyByID(ctx context.Context, ids ...string) (map[string]user.User, error)
	}

	Service struct {
		repo    Repository
		exams   ExamFinder
		users   UserFinder
		storage core.FileStorage
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, exams ExamFinder, users UserFinder, storage core.FileStorage) *Service {
	return &Service{repo: repo, exams: exams, users: users, storage: storage, nowFunc: time.Now}
}

// Rooms

func (svc *Service) roomFor(ctx context.Context, examID string) (Room, error) {
	e, err := svc.exams.GetExamByID(ctx, examID)
	if err != nil {
		return Room{}, err
	}
	now := time.Now().UTC()
	return svc.repo.GetOrCreateRoom(ctx, Room{
		ID:          uuid.NewString(),
		ExamID:      e.ID,
		Title:       e.Title + " - Discussion Room",
		Description: "Discussion room for " + e.Title + " exam",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) withMembership(ctx context.Context, usr user.User, r Room) (Room, error) {
	ok, err := svc.repo.IsMember(ctx, r.ID, usr.ID)
	if err != nil {
		return Room{}, errors.Wrap(err, "checking membership")
	}
	r.IsMember = ok
	return r, nil
}

func (svc *Service) refreshRoom(ctx context.Context, usr user.User, id string) (Room, error) {
	r, err := svc.repo.GetRoomByID(ctx, id)
	if err != nil {
		return Room{}, err
	}
	return svc.withMembership(ctx, usr, r)
}

// Room returns the exam's discussion room, creating it on first access.
func (svc *Service) Room(ctx context.Context, usr user.User, examID string) (Room, error) {
	r, err := svc.roomFor(ctx, examID)
	if err != nil {
		return Room{}, err
	}
	return svc.withMembership(ctx, usr, r)
}

// JoinRoom is idempotent; the returned message tells whether the user just joined.
func (svc *Service) JoinRoom(ctx context.Context, usr user.User, examID string) (Room, string, error) {
	r, err := svc.roomFor(ctx, examID)
	if err != nil {
		return Room{}, "", err
	}
	added, err := svc.repo.AddMember(ctx, r.ID, usr.ID, time.Now().UTC())
	if err != nil {
		return Room{}, "", errors.Wrap(err, "adding member")
	}
	r, err = svc.refreshRoom(ctx, usr, r.ID)
	if err != nil {
		return Room{}, "", err
	}
	if !added {
		return r, MsgAlreadyMember, nil
	}
	return r, MsgJoined, nil
}

func (svc *Service) LeaveRoom(ctx context.Context, usr user.User, examID string) (Room, error) {
	if _, err := svc.exams.GetExamByID(ctx, examID); err != nil {
		return Room{}, err
	}
	r, err := svc.repo.GetRoomByExamID(ctx, examID)
	if err != nil {
		return Room{}, err
	}
	removed, err := svc.repo.RemoveMember(ctx, r.ID, usr.ID)
	if err != nil {
		return Room{}, errors.Wrap(err, "removing member")
	}
	if !removed {
		return Room{}, core.NewValidationError(errNotMember)
	}
	return svc.refreshRoom(ctx, usr, r.ID)
}

// Posts

func (svc *Service) decoratePosts(ctx context.Context, usr user.User, posts []Post) ([]Post, error) {
	if len(posts) == 0 {
		return posts, nil
	}
	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}
	votes, err := svc.repo.UserPostVotes(ctx, usr.ID, postIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "querying user votes")
	}
	authors, err := svc.users.GetManyByID(ctx, authorIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "finding authors")
	}
	for i := range posts {
		p := &posts[i]
		if vt, ok := votes[p.ID]; ok {
			p.UserVote = null.StringFrom(vt)
		}
		if a, ok := authors[p.AuthorID]; ok {
			p.AuthorName = a.Username
			p.AuthorAvatar = a.Avatar
		}
		if p.Attachments == nil {
			p.Attachments = []Attachment{}
		}
		if p.Tags == nil {
			p.Tags = core.StringList{}
		}
	}
	return posts, nil
}

func (svc *Service) decoratePost(ctx context.Context, usr user.User, p Post) (Post, error) {
	posts, err := svc.decoratePosts(ctx, usr, []Post{p})
	if err != nil {
		return Post{}, err
	}
	return posts[0], nil
}

// Posts lists the room posts, pinned first, in the requested order.
func (svc *Service) Posts(ctx context.Context, usr user.User, roomID string, filter PostFilter) ([]Post, error) {
	if _, err := svc.repo.GetRoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	posts, err := svc.repo.QueryPosts(ctx, roomID, core.CleanString(filter.PostType))
	if err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	SortPosts(posts, filter.Sort, svc.nowFunc())
	return svc.decoratePosts(ctx, usr, posts)
}

func (svc *Service) GetPost(ctx context.Context, usr user.User, id string) (Post, error) {
	p, err := svc.repo.GetPostByID(ctx, id)
	if err != nil {
		return Post{}, err
	}
	return svc.decoratePost(ctx, usr, p)
}

// CreatePost publishes a post; the author must be a member of the room.
func (svc *Service) CreatePost(ctx context.Context, usr user.User, roomID string, np NewPost) (Post, error) {
	if _, err := svc.repo.GetRoomByID(ctx, roomID); err != nil {
		return Post{}, err
	}
	member, err := svc.repo.IsMember(ctx, roomID, usr.ID)
	if err != nil {
		return Post{}, errors.Wrap(err, "checking membership")
	}
	if !member {
		return Post{}, core.NewValidationError(errJoinToPost)
	}

	now := time.Now().UTC()
	p := Post{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		AuthorID:  usr.ID,
		Title:     np.Title,
		Content:   np.Content,
		PostType:  np.PostType,
		Tags:      core.StringList(np.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Tags == nil {
		p.Tags = core.StringList{}
	}
	for _, a := range np.Attachments {
		a.ID = uuid.NewString()
		a.PostID = p.ID
		a.Name = core.CleanString(a.Name)
		a.CreatedAt = now
		p.Attachments = append(p.Attachments, a)
	}
	p, err = svc.repo.CreatePost(ctx, p)
	if err != nil {
		return Post{}, err
	}
	return svc.GetPost(ctx, usr, p.ID)
}

func (svc *Service) UpdatePost(ctx context.Context, usr user.User, p Post, up UpdatePost) (Post, error) {
	if p.AuthorID != usr.ID {
		return Post{}, core.NewPermissionError(msgEditPostForbidden)
	}
	up.apply(&p)
	p.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdatePost(ctx, p); err != nil {
		return Post{}, err
	}
	return svc.GetPost(ctx, usr, p.ID)
}

// SetPinned pins or unpins a post. It is a staff operation without author check.
func (svc *Service) SetPinned(ctx context.Context, postID string, pinned bool) (Post, error) {
	p, err := svc.repo.GetPostByID(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	p.IsPinned = pinned
	return svc.repo.UpdatePost(ctx, p)
}

func (svc *Service) DeletePost(ctx context.Context, usr user.User, p Post) error {
	if p.AuthorID != usr.ID {
		return core.NewPermissionError(msgDelPostForbidden)
	}
	return svc.repo.DeletePost(ctx, p.ID)
}

// UploadAttachments stores files in the object storage and attaches them to the post.
func (svc *Service) UploadAttachments(ctx context.Context, usr user.User, p Post, files []core.File) (Post, error) {
	if p.AuthorID != usr.ID {
		return Post{}, core.NewPermissionError(msgEditPostForbidden)
	}
	if len(files) == 0 {
		return Post{}, core.NewValidationError(errNoFilesUploaded, core.FieldError{Field: "files", Error: errNoFilesUploaded.Error()})
	}
	for _, f := range files {
		if err := core.CheckUpload("files", f, AttachmentMaxSize, AttachmentExts...); err != nil {
			return Post{}, err
		}
	}

	now := time.Now().UTC()
	atts := make([]Attachment, len(files))
	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			key := core.ObjectKey(attachmentKeyPrefix+"/"+p.ID, f.Name)
			info, err := svc.storage.Upload(gctx, key, f)
			if err != nil {
				return core.NewProviderError("uploading attachment", err)
			}
			keys[i] = key
			typ := AttachmentFile
			if imageExts[strings.ToLower(f.Ext())] {
				typ = AttachmentImage
			}
			atts[i] = Attachment{
				ID:        uuid.NewString(),
				PostID:    p.ID,
				Type:      typ,
				Name:      f.Name,
				URL:       svc.storage.PublicURL(key),
				Size:      null.Int64From(info.Size),
				CreatedAt: now,
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = svc.repo.AddAttachments(ctx, atts...)
	}
	if err != nil {
		_ = core.RemoveObjects(ctx, svc.storage, keys...)
		return Post{}, err
	}
	return svc.GetPost(ctx, usr, p.ID)
}

func checkVoteType(vt string) error {
	switch vt {
	case VoteUp, VoteDown, VoteRemove:
		return nil
	}
	return core.NewValidationError(errInvalidVote)
}

// VotePost records the user's latest vote on the post; "remove" withdraws it.
func (svc *Service) VotePost(ctx context.Context, usr user.User, p Post, voteType string) (Post, error) {
	if err := checkVoteType(voteType); err != nil {
		return Post{}, err
	}
	var err error
	if voteType == VoteRemove {
		err = svc.repo.DeletePostVote(ctx, p.ID, usr.ID)
	} else {
		err = svc.repo.SetPostVote(ctx, Vote{TargetID: p.ID, UserID: usr.ID, Type: voteType, CreatedAt: time.Now().UTC()})
	}
	if err != nil {
		return Post{}, errors.Wrap(err, "voting post")
	}
	return svc.GetPost(ctx, usr, p.ID)
}

// Comments

func (svc *Service) decorateComments(ctx context.Context, usr user.User, comments []Comment) ([]Comment, error) {
	if len(comments) == 0 {
		return comments, nil
	}
	ids := make([]string, 0, len(comments))
	authorIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
		authorIDs = append(authorIDs, c.AuthorID)
	}
	votes, err := svc.repo.UserCommentVotes(ctx, usr.ID, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying user votes")
	}
	authors, err := svc.users.GetManyByID(ctx, authorIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "finding authors")
	}
	for i := range comments {
		c := &comments[i]
		if vt, ok := votes[c.ID]; ok {
			c.UserVote = null.StringFrom(vt)
		}
		if a, ok := authors[c.AuthorID]; ok {
			c.AuthorName = a.Username
			c.AuthorAvatar = a.Avatar
		}
	}
	return comments, nil
}

func (svc *Service) decorateComment(ctx context.Context, usr user.User, c Comment) (Comment, error) {
	comments, err := svc.decorateComments(ctx, usr, []Comment{c})
	if err != nil {
		return Comment{}, err
	}
	return comments[0], nil
}

// GetComment returns a non-deleted comment.
func (svc *Service) GetComment(ctx context.Context, usr user.User, id string) (Comment, error) {
	c, err := svc.repo.GetCommentByID(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if c.IsDeleted {
		return Comment{}, ErrCommentNotFound
	}
	return svc.decorateComment(ctx, usr, c)
}

func (svc *Service) Comments(ctx context.Context, usr user.User, p Post) ([]Comment, error) {
	comments, err := svc.repo.QueryComments(ctx, p.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	return svc.decorateComments(ctx, usr, comments)
}

// CreateComment comments the post; the author must be a member of the post's room.
// A parent comment must belong to the same post.
func (svc *Service) CreateComment(ctx context.Context, usr user.User, p Post, nc NewComment) (Comment, error) {
	member, err := svc.repo.IsMember(ctx, p.RoomID, usr.ID)
	if err != nil {
		return Comment{}, errors.Wrap(err, "checking membership")
	}
	if !member {
		return Comment{}, core.NewValidationError(errJoinToComment)
	}

	now := time.Now().UTC()
	c := Comment{
		ID:        uuid.NewString(),
		PostID:    p.ID,
		AuthorID:  usr.ID,
		Content:   nc.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.ParentID != nil && core.CleanString(*nc.ParentID) != "" {
		parentErr := core.NewValidationError(errParentNotExist, core.FieldError{Field: "parent_id", Error: errParentNotExist.Error()})
		pid := core.CleanString(*nc.ParentID)
		if _, err := uuid.Parse(pid); err != nil {
			return Comment{}, parentErr
		}
		parent, err := svc.repo.GetCommentByID(ctx, pid)
		if err != nil {
			if errors.Cause(err) == ErrCommentNotFound {
				return Comment{}, parentErr
			}
			return Comment{}, errors.Wrap(err, "finding parent comment")
		}
		if parent.PostID != p.ID || parent.IsDeleted {
			return Comment{}, parentErr
		}
		c.ParentID = null.StringFrom(parent.ID)
	}
	c, err = svc.repo.CreateComment(ctx, c)
	if err != nil {
		return Comment{}, err
	}
	return svc.decorateComment(ctx, usr, c)
}

func (svc *Service) UpdateComment(ctx context.Context, usr user.User, c Comment, uc UpdateComment) (Comment, error) {
	if c.AuthorID != usr.ID {
		return Comment{}, core.NewPermissionError(msgEditCmtForbidden)
	}
	c.Content = uc.Content
	c.UpdatedAt = time.Now().UTC()
	c, err := svc.repo.UpdateComment(ctx, c)
	if err != nil {
		return Comment{}, err
	}
	return svc.GetComment(ctx, usr, c.ID)
}

// DeleteComment soft-deletes the comment so its replies keep their parent.
func (svc *Service) DeleteComment(ctx context.Context, usr user.User, c Comment) error {
	if c.AuthorID != usr.ID {
		return core.NewPermissionError(msgDelCmtForbidden)
	}
	c.IsDeleted = true
	c.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateComment(ctx, c)
	return err
}

func (svc *Service) VoteComment(ctx context.Context, usr user.User, c Comment, voteType string) (Comment, error) {
	if err := checkVoteType(voteType); err != nil {
		return Comment{}, err
	}
	var err error
	if voteType == VoteRemove {
		err = svc.repo.DeleteCommentVote(ctx, c.ID, usr.ID)
	} else {
		err = svc.repo.SetCommentVote(ctx, Vote{TargetID: c.ID, UserID: usr.ID, Type: voteType, CreatedAt: time.Now().UTC()})
	}
	if err != nil {
		return Comment{}, errors.Wrap(err, "voting comment")
	}
	return svc.GetComment(ctx, usr, c.ID)
}
