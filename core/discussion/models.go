package discussion

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
)

// Vote types
const (
	VoteUp     = "up"
	VoteDown   = "down"
	VoteRemove = "remove"
)

// Post sort modes
const (
	SortHot = "hot"
	SortNew = "new"
	SortTop = "top"
)

// Attachment types
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
	AttachmentLink  = "link"
)

const DefaultPostType = "discussion"

type Room struct {
	ID           string    `json:"id" db:"id"`
	ExamID       string    `json:"exam_id" db:"exam_id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	PostsCount   int       `json:"posts_count" db:"posts_count"`
	MembersCount int       `json:"members_count" db:"members_count"`
	IsMember     bool      `json:"is_member" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Post struct {
	ID            string          `json:"id" db:"id"`
	RoomID        string          `json:"room_id" db:"room_id"`
	AuthorID      string          `json:"author_id" db:"author_id"`
	AuthorName    string          `json:"author_name" db:"-"`
	AuthorAvatar  string          `json:"author_avatar" db:"-"`
	Title         string          `json:"title" db:"title"`
	Content       string          `json:"content" db:"content"`
	PostType      string          `json:"post_type" db:"post_type"`
	Tags          core.StringList `json:"tags" db:"tags"`
	Upvotes       int             `json:"upvotes" db:"upvotes"`
	Downvotes     int             `json:"downvotes" db:"downvotes"`
	UserVote      null.String     `json:"user_vote" db:"-"`
	CommentsCount int             `json:"comments_count" db:"comments_count"`
	IsPinned      bool            `json:"is_pinned" db:"is_pinned"`
	Attachments   []Attachment    `json:"attachments" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

type Attachment struct {
	ID        string     `json:"id" db:"id"`
	PostID    string     `json:"-" db:"post_id"`
	Type      string     `json:"type" db:"type" validate:"required,oneof=image file link"`
	Name      string     `json:"name" db:"name" validate:"required,notblank,max=200"`
	URL       string     `json:"url" db:"url" validate:"required,url"`
	Size      null.Int64 `json:"size" db:"size"`
	CreatedAt time.Time  `json:"-" db:"created_at"`
}

type Comment struct {
	ID           string      `json:"id" db:"id"`
	PostID       string      `json:"post_id" db:"post_id"`
	AuthorID     string      `json:"author_id" db:"author_id"`
	AuthorName   string      `json:"author_name" db:"-"`
	AuthorAvatar string      `json:"author_avatar" db:"-"`
	Content      string      `json:"content" db:"content"`
	ParentID     null.String `json:"parent_id" db:"parent_id"`
	Upvotes      int         `json:"upvotes" db:"upvotes"`
	Downvotes    int         `json:"downvotes" db:"downvotes"`
	UserVote     null.String `json:"user_vote" db:"-"`
	IsDeleted    bool        `json:"is_deleted" db:"is_deleted"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// Vote is a user's up or down vote on a post or a comment.
type Vote struct {
	TargetID  string
	UserID    string
	Type      string
	CreatedAt time.Time
}

// NewPost contains information needed to publish a Post.
type NewPost struct {
	Title       string       `json:"title" validate:"required,notblank,max=200"`
	Content     string       `json:"content" validate:"required,notblank"`
	PostType    string       `json:"post_type" validate:"omitempty,oneof=discussion question resource experience note"`
	Tags        []string     `json:"tags" validate:"omitempty,dive,max=50"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,dive"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	if np.PostType == "" {
		np.PostType = DefaultPostType
	}
	return validate.Struct(np)
}

type UpdatePost struct {
	Title    *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Content  *string  `json:"content" validate:"omitempty,notblank"`
	PostType *string  `json:"post_type" validate:"omitempty,oneof=discussion question resource experience note"`
	Tags     []string `json:"tags" validate:"omitempty,dive,max=50"`
}

func (up *UpdatePost) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

func (up UpdatePost) apply(p *Post) {
	if up.Title != nil {
		p.Title = core.CleanString(*up.Title)
	}
	if up.Content != nil {
		p.Content = core.CleanString(*up.Content)
	}
	if up.PostType != nil {
		p.PostType = *up.PostType
	}
	if up.Tags != nil {
		p.Tags = up.Tags
	}
}

type NewComment struct {
	Content  string  `json:"content" validate:"required,notblank"`
	ParentID *string `json:"parent_id"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

type UpdateComment struct {
	Content string `json:"content" validate:"required,notblank"`
}

func (uc *UpdateComment) Validate(validate *validator.Validate) error {
	uc.Content = core.CleanString(uc.Content)
	return validate.Struct(uc)
}

type VoteRequest struct {
	VoteType string `json:"vote_type"`
}

// PostFilter holds the query parameters of the post listing.
type PostFilter struct {
	Sort     string `query:"sort"`
	PostType string `query:"post_type"`
}
