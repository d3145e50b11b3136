package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/discussion"
)

const (
	selectRooms = `
		SELECT r.id, r.exam_id, r.title, r.description,
			(SELECT COUNT(*) FROM posts p WHERE p.room_id = r.id) AS posts_count,
			(SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) AS members_count,
			r.created_at, r.updated_at
		FROM discussion_rooms r`
	selectPosts = `
		SELECT p.id, p.room_id, p.author_id, p.title, p.content, p.post_type, p.tags, p.is_pinned,
			(SELECT COUNT(*) FROM post_votes v WHERE v.post_id = p.id AND v.vote_type = 'up') AS upvotes,
			(SELECT COUNT(*) FROM post_votes v WHERE v.post_id = p.id AND v.vote_type = 'down') AS downvotes,
			(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id AND NOT c.is_deleted) AS comments_count,
			p.created_at, p.updated_at
		FROM posts p`
	selectComments = `
		SELECT c.id, c.post_id, c.author_id, c.content, c.parent_id, c.is_deleted,
			(SELECT COUNT(*) FROM comment_votes v WHERE v.comment_id = c.id AND v.vote_type = 'up') AS upvotes,
			(SELECT COUNT(*) FROM comment_votes v WHERE v.comment_id = c.id AND v.vote_type = 'down') AS downvotes,
			c.created_at, c.updated_at
		FROM comments c`
	attachmentColumns = `id, post_id, type, name, url, size, created_at`
)

type discussionRepository struct {
	db core.DB
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db core.DB) discussion.Repository {
	return &discussionRepository{db: db}
}

// Rooms

func (repo discussionRepository) GetOrCreateRoom(ctx context.Context, r discussion.Room) (discussion.Room, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO discussion_rooms (id, exam_id, title, description, created_at, updated_at)
		VALUES (:id, :exam_id, :title, :description, :created_at, :updated_at)
		ON CONFLICT (exam_id) DO NOTHING`, r)
	if err != nil {
		return discussion.Room{}, errors.Wrap(err, "inserting room")
	}
	return repo.GetRoomByExamID(ctx, r.ExamID)
}

func (repo discussionRepository) GetRoomByExamID(ctx context.Context, examID string) (discussion.Room, error) {
	var r discussion.Room
	if err := repo.db.GetContext(ctx, &r, selectRooms+` WHERE r.exam_id = $1`, examID); err != nil {
		return discussion.Room{}, trapNoRowsErr(err, discussion.ErrRoomNotFound, "selecting room")
	}
	return r, nil
}

func (repo discussionRepository) GetRoomByID(ctx context.Context, id string) (discussion.Room, error) {
	var r discussion.Room
	if err := repo.db.GetContext(ctx, &r, selectRooms+` WHERE r.id = $1`, id); err != nil {
		return discussion.Room{}, trapNoRowsErr(err, discussion.ErrRoomNotFound, "selecting room")
	}
	return r, nil
}

func (repo discussionRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var ok bool
	err := repo.db.GetContext(ctx, &ok,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`, roomID, userID)
	return ok, errors.Wrap(err, "checking membership")
}

func (repo discussionRepository) AddMember(ctx context.Context, roomID, userID string, joinedAt time.Time) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID, joinedAt)
	if err != nil {
		return false, errors.Wrap(err, "inserting member")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (repo discussionRepository) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return false, errors.Wrap(err, "deleting member")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Posts

func (repo discussionRepository) withAttachments(ctx context.Context, posts []discussion.Post) ([]discussion.Post, error) {
	if len(posts) == 0 {
		return posts, nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	q, args, err := in(repo.db, `SELECT `+attachmentColumns+` FROM post_attachments WHERE post_id IN (?) ORDER BY created_at`, ids)
	if err != nil {
		return nil, err
	}
	var atts []discussion.Attachment
	if err = repo.db.SelectContext(ctx, &atts, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attachments")
	}
	byPost := make(map[string][]discussion.Attachment, len(posts))
	for _, a := range atts {
		byPost[a.PostID] = append(byPost[a.PostID], a)
	}
	for i := range posts {
		posts[i].Attachments = byPost[posts[i].ID]
		if posts[i].Attachments == nil {
			posts[i].Attachments = []discussion.Attachment{}
		}
	}
	return posts, nil
}

func (repo discussionRepository) QueryPosts(ctx context.Context, roomID, postType string) ([]discussion.Post, error) {
	query := selectPosts + ` WHERE p.room_id = $1`
	args := []interface{}{roomID}
	if postType != "" {
		query += ` AND p.post_type = $2`
		args = append(args, postType)
	}
	posts := make([]discussion.Post, 0)
	if err := repo.db.SelectContext(ctx, &posts, query+` ORDER BY p.created_at DESC`, args...); err != nil {
		return nil, errors.Wrap(err, "selecting posts")
	}
	return repo.withAttachments(ctx, posts)
}

func (repo discussionRepository) GetPostByID(ctx context.Context, id string) (discussion.Post, error) {
	var p discussion.Post
	if err := repo.db.GetContext(ctx, &p, selectPosts+` WHERE p.id = $1`, id); err != nil {
		return discussion.Post{}, trapNoRowsErr(err, discussion.ErrPostNotFound, "selecting post")
	}
	posts, err := repo.withAttachments(ctx, []discussion.Post{p})
	if err != nil {
		return discussion.Post{}, err
	}
	return posts[0], nil
}

func insertAttachments(ctx context.Context, exec sqlx.ExtContext, atts []discussion.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO post_attachments (`+attachmentColumns+`)
		VALUES (:id, :post_id, :type, :name, :url, :size, :created_at)`, atts)
	return errors.Wrap(err, "inserting attachments")
}

func (repo discussionRepository) CreatePost(ctx context.Context, p discussion.Post) (discussion.Post, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO posts (id, room_id, author_id, title, content, post_type, tags, is_pinned, created_at, updated_at)
			VALUES (:id, :room_id, :author_id, :title, :content, :post_type, :tags, :is_pinned, :created_at, :updated_at)`, p)
		if err != nil {
			return errors.Wrap(err, "inserting post")
		}
		return insertAttachments(ctx, tx, p.Attachments)
	})
	if err != nil {
		return discussion.Post{}, err
	}
	return repo.GetPostByID(ctx, p.ID)
}

func (repo discussionRepository) UpdatePost(ctx context.Context, p discussion.Post) (discussion.Post, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE posts SET
			title = :title, content = :content, post_type = :post_type, tags = :tags, is_pinned = :is_pinned,
			updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return discussion.Post{}, errors.Wrap(err, "updating post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return discussion.Post{}, discussion.ErrPostNotFound
	}
	return repo.GetPostByID(ctx, p.ID)
}

func (repo discussionRepository) DeletePost(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return discussion.ErrPostNotFound
	}
	return nil
}

func (repo discussionRepository) AddAttachments(ctx context.Context, atts ...discussion.Attachment) error {
	return insertAttachments(ctx, repo.db, atts)
}

// Comments

func (repo discussionRepository) QueryComments(ctx context.Context, postID string) ([]discussion.Comment, error) {
	comments := make([]discussion.Comment, 0)
	err := repo.db.SelectContext(ctx, &comments,
		selectComments+` WHERE c.post_id = $1 AND NOT c.is_deleted ORDER BY c.created_at`, postID)
	return comments, errors.Wrap(err, "selecting comments")
}

func (repo discussionRepository) GetCommentByID(ctx context.Context, id string) (discussion.Comment, error) {
	var c discussion.Comment
	if err := repo.db.GetContext(ctx, &c, selectComments+` WHERE c.id = $1`, id); err != nil {
		return discussion.Comment{}, trapNoRowsErr(err, discussion.ErrCommentNotFound, "selecting comment")
	}
	return c, nil
}

func (repo discussionRepository) CreateComment(ctx context.Context, c discussion.Comment) (discussion.Comment, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO comments (id, post_id, author_id, parent_id, content, is_deleted, created_at, updated_at)
		VALUES (:id, :post_id, :author_id, :parent_id, :content, :is_deleted, :created_at, :updated_at)`, c)
	if err != nil {
		return discussion.Comment{}, errors.Wrap(err, "inserting comment")
	}
	c.Upvotes, c.Downvotes = 0, 0
	return c, nil
}

func (repo discussionRepository) UpdateComment(ctx context.Context, c discussion.Comment) (discussion.Comment, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE comments SET content = $1, is_deleted = $2, updated_at = $3 WHERE id = $4`,
		c.Content, c.IsDeleted, c.UpdatedAt, c.ID)
	if err != nil {
		return discussion.Comment{}, errors.Wrap(err, "updating comment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return discussion.Comment{}, discussion.ErrCommentNotFound
	}
	return repo.GetCommentByID(ctx, c.ID)
}

// Votes

func (repo discussionRepository) SetPostVote(ctx context.Context, v discussion.Vote) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO post_votes (post_id, user_id, vote_type, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, user_id) DO UPDATE SET vote_type = EXCLUDED.vote_type`,
		v.TargetID, v.UserID, v.Type, v.CreatedAt)
	return errors.Wrap(err, "saving post vote")
}

func (repo discussionRepository) DeletePostVote(ctx context.Context, postID, userID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM post_votes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	return errors.Wrap(err, "deleting post vote")
}

func (repo discussionRepository) SetCommentVote(ctx context.Context, v discussion.Vote) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO comment_votes (comment_id, user_id, vote_type, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (comment_id, user_id) DO UPDATE SET vote_type = EXCLUDED.vote_type`,
		v.TargetID, v.UserID, v.Type, v.CreatedAt)
	return errors.Wrap(err, "saving comment vote")
}

func (repo discussionRepository) DeleteCommentVote(ctx context.Context, commentID, userID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM comment_votes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	return errors.Wrap(err, "deleting comment vote")
}

type userVote struct {
	TargetID string `db:"target_id"`
	VoteType string `db:"vote_type"`
}

func (repo discussionRepository) userVotes(ctx context.Context, query, userID string, ids []string) (map[string]string, error) {
	res := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	q, args, err := in(repo.db, query, userID, ids)
	if err != nil {
		return nil, err
	}
	var votes []userVote
	if err = repo.db.SelectContext(ctx, &votes, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting votes")
	}
	for _, v := range votes {
		res[v.TargetID] = v.VoteType
	}
	return res, nil
}

func (repo discussionRepository) UserPostVotes(ctx context.Context, userID string, postIDs ...string) (map[string]string, error) {
	return repo.userVotes(ctx,
		`SELECT post_id AS target_id, vote_type FROM post_votes WHERE user_id = ? AND post_id IN (?)`, userID, postIDs)
}

func (repo discussionRepository) UserCommentVotes(ctx context.Context, userID string, commentIDs ...string) (map[string]string, error) {
	return repo.userVotes(ctx,
		`SELECT comment_id AS target_id, vote_type FROM comment_votes WHERE user_id = ? AND comment_id IN (?)`, userID, commentIDs)
}
