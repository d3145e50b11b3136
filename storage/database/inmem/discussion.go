package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/aaronlou/innergrow.ai/core/discussion"
)

type discussionRepository struct {
	db *DB
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *DB) discussion.Repository {
	return &discussionRepository{db: db}
}

// Rooms

func (repo *discussionRepository) loadRoom(r discussion.Room) discussion.Room {
	r.PostsCount, r.MembersCount, r.IsMember = 0, 0, false
	for _, p := range repo.db.posts {
		if p.RoomID == r.ID {
			r.PostsCount++
		}
	}
	for m := range repo.db.members {
		if m.targetID == r.ID {
			r.MembersCount++
		}
	}
	return r
}

func (repo *discussionRepository) GetOrCreateRoom(_ context.Context, r discussion.Room) (discussion.Room, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, room := range repo.db.rooms {
		if room.ExamID == r.ExamID {
			return repo.loadRoom(*room), nil
		}
	}
	repo.db.rooms[r.ID] = &r
	return repo.loadRoom(r), nil
}

func (repo *discussionRepository) GetRoomByExamID(_ context.Context, examID string) (discussion.Room, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, r := range repo.db.rooms {
		if r.ExamID == examID {
			return repo.loadRoom(*r), nil
		}
	}
	return discussion.Room{}, discussion.ErrRoomNotFound
}

func (repo *discussionRepository) GetRoomByID(_ context.Context, id string) (discussion.Room, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rooms[id]; ok {
		return repo.loadRoom(*r), nil
	}
	return discussion.Room{}, discussion.ErrRoomNotFound
}

func (db *DB) deleteRoom(id string) {
	delete(db.rooms, id)
	for m := range db.members {
		if m.targetID == id {
			delete(db.members, m)
		}
	}
	for pID, p := range db.posts {
		if p.RoomID == id {
			db.deletePost(pID)
		}
	}
}

func (repo *discussionRepository) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.members[membership{roomID, userID}]
	return ok, nil
}

func (repo *discussionRepository) AddMember(_ context.Context, roomID, userID string, joinedAt time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rooms[roomID]; !ok {
		return false, discussion.ErrRoomNotFound
	}
	m := membership{roomID, userID}
	if _, ok := repo.db.members[m]; ok {
		return false, nil
	}
	repo.db.members[m] = joinedAt
	return true, nil
}

func (repo *discussionRepository) RemoveMember(_ context.Context, roomID, userID string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m := membership{roomID, userID}
	if _, ok := repo.db.members[m]; !ok {
		return false, nil
	}
	delete(repo.db.members, m)
	return true, nil
}

// Posts

func countVotes(votes map[membership]discussion.Vote, targetID string) (up, down int) {
	for m, v := range votes {
		if m.targetID != targetID {
			continue
		}
		if v.Type == discussion.VoteUp {
			up++
		} else {
			down++
		}
	}
	return up, down
}

func (repo *discussionRepository) loadPost(p discussion.Post) discussion.Post {
	p.Upvotes, p.Downvotes = countVotes(repo.db.postVotes, p.ID)
	p.CommentsCount = 0
	for _, c := range repo.db.comments {
		if c.PostID == p.ID && !c.IsDeleted {
			p.CommentsCount++
		}
	}
	p.Attachments = make([]discussion.Attachment, 0)
	for _, a := range repo.db.attachments {
		if a.PostID == p.ID {
			p.Attachments = append(p.Attachments, *a)
		}
	}
	sort.SliceStable(p.Attachments, func(i, j int) bool {
		return p.Attachments[i].CreatedAt.Before(p.Attachments[j].CreatedAt)
	})
	return p
}

func (repo *discussionRepository) QueryPosts(_ context.Context, roomID, postType string) ([]discussion.Post, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	posts := make([]discussion.Post, 0)
	for _, p := range repo.db.posts {
		if p.RoomID == roomID && (postType == "" || p.PostType == postType) {
			posts = append(posts, repo.loadPost(*p))
		}
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (repo *discussionRepository) GetPostByID(_ context.Context, id string) (discussion.Post, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return repo.loadPost(*p), nil
	}
	return discussion.Post{}, discussion.ErrPostNotFound
}

func (repo *discussionRepository) CreatePost(_ context.Context, p discussion.Post) (discussion.Post, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rooms[p.RoomID]; !ok {
		return discussion.Post{}, discussion.ErrRoomNotFound
	}
	for i := range p.Attachments {
		a := p.Attachments[i]
		repo.db.attachments[a.ID] = &a
	}
	p.Attachments = nil
	repo.db.posts[p.ID] = &p
	return repo.loadPost(p), nil
}

func (repo *discussionRepository) UpdatePost(_ context.Context, p discussion.Post) (discussion.Post, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.posts[p.ID]
	if !ok {
		return discussion.Post{}, discussion.ErrPostNotFound
	}
	old.Title = p.Title
	old.Content = p.Content
	old.PostType = p.PostType
	old.Tags = p.Tags
	old.IsPinned = p.IsPinned
	old.UpdatedAt = p.UpdatedAt
	return repo.loadPost(*old), nil
}

func (repo *discussionRepository) DeletePost(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return discussion.ErrPostNotFound
	}
	repo.db.deletePost(id)
	return nil
}

// deletePost cascades to the attachments, the votes and the comments of the post.
func (db *DB) deletePost(id string) {
	delete(db.posts, id)
	for aID, a := range db.attachments {
		if a.PostID == id {
			delete(db.attachments, aID)
		}
	}
	for m := range db.postVotes {
		if m.targetID == id {
			delete(db.postVotes, m)
		}
	}
	for cID, c := range db.comments {
		if c.PostID != id {
			continue
		}
		delete(db.comments, cID)
		for m := range db.commentVotes {
			if m.targetID == cID {
				delete(db.commentVotes, m)
			}
		}
	}
}

func (repo *discussionRepository) AddAttachments(_ context.Context, atts ...discussion.Attachment) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range atts {
		a := atts[i]
		if _, ok := repo.db.posts[a.PostID]; !ok {
			return discussion.ErrPostNotFound
		}
		repo.db.attachments[a.ID] = &a
	}
	return nil
}

// Comments

func (repo *discussionRepository) loadComment(c discussion.Comment) discussion.Comment {
	c.Upvotes, c.Downvotes = countVotes(repo.db.commentVotes, c.ID)
	return c
}

func (repo *discussionRepository) QueryComments(_ context.Context, postID string) ([]discussion.Comment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comments := make([]discussion.Comment, 0)
	for _, c := range repo.db.comments {
		if c.PostID == postID && !c.IsDeleted {
			comments = append(comments, repo.loadComment(*c))
		}
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *discussionRepository) GetCommentByID(_ context.Context, id string) (discussion.Comment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.comments[id]; ok {
		return repo.loadComment(*c), nil
	}
	return discussion.Comment{}, discussion.ErrCommentNotFound
}

func (repo *discussionRepository) CreateComment(_ context.Context, c discussion.Comment) (discussion.Comment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.posts[c.PostID]; !ok {
		return discussion.Comment{}, discussion.ErrPostNotFound
	}
	repo.db.comments[c.ID] = &c
	return repo.loadComment(c), nil
}

func (repo *discussionRepository) UpdateComment(_ context.Context, c discussion.Comment) (discussion.Comment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.comments[c.ID]
	if !ok {
		return discussion.Comment{}, discussion.ErrCommentNotFound
	}
	old.Content = c.Content
	old.IsDeleted = c.IsDeleted
	old.UpdatedAt = c.UpdatedAt
	return repo.loadComment(*old), nil
}

// Votes

func (repo *discussionRepository) SetPostVote(_ context.Context, v discussion.Vote) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.posts[v.TargetID]; !ok {
		return discussion.ErrPostNotFound
	}
	repo.db.postVotes[membership{v.TargetID, v.UserID}] = v
	return nil
}

func (repo *discussionRepository) DeletePostVote(_ context.Context, postID, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.postVotes, membership{postID, userID})
	return nil
}

func (repo *discussionRepository) SetCommentVote(_ context.Context, v discussion.Vote) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.comments[v.TargetID]; !ok {
		return discussion.ErrCommentNotFound
	}
	repo.db.commentVotes[membership{v.TargetID, v.UserID}] = v
	return nil
}

func (repo *discussionRepository) DeleteCommentVote(_ context.Context, commentID, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.commentVotes, membership{commentID, userID})
	return nil
}

func userVotes(votes map[membership]discussion.Vote, userID string, ids []string) map[string]string {
	res := make(map[string]string, len(ids))
	for _, id := range ids {
		if v, ok := votes[membership{id, userID}]; ok {
			res[id] = v.Type
		}
	}
	return res
}

func (repo *discussionRepository) UserPostVotes(_ context.Context, userID string, postIDs ...string) (map[string]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return userVotes(repo.db.postVotes, userID, postIDs), nil
}

func (repo *discussionRepository) UserCommentVotes(_ context.Context, userID string, commentIDs ...string) (map[string]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return userVotes(repo.db.commentVotes, userID, commentIDs), nil
}
