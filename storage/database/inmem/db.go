package inmemdb

import (
	"sync"
	"time"

	"github.com/aaronlou/innergrow.ai/core/book"
	"github.com/aaronlou/innergrow.ai/core/discussion"
	"github.com/aaronlou/innergrow.ai/core/exam"
	"github.com/aaronlou/innergrow.ai/core/goal"
	"github.com/aaronlou/innergrow.ai/core/user"
	"github.com/aaronlou/innergrow.ai/core/waitlist"
)

type (
	// DB keeps every table in memory behind a single lock. Used by tests and local runs without Postgres.
	DB struct {
		mu sync.RWMutex

		users  map[string]*user.User
		prefs  map[string]*user.Preferences
		tokens map[string]*user.AuthToken

		books     map[string]*book.Book
		images    map[string]*book.Image
		orders    map[string]*book.Order
		addresses map[string]*book.ShippingAddress

		exams        map[string]*exam.Exam
		participants map[membership]time.Time

		rooms        map[string]*discussion.Room
		members      map[membership]time.Time
		posts        map[string]*discussion.Post
		attachments  map[string]*discussion.Attachment
		comments     map[string]*discussion.Comment
		postVotes    map[membership]discussion.Vote
		commentVotes map[membership]discussion.Vote

		categories  map[string]*goal.Category
		statuses    map[string]*goal.Status
		goals       map[string]*goal.Goal
		suggestions map[string]*goal.Suggestion

		features map[string]*waitlist.Feature
		entries  map[string]*waitlist.Entry
	}

	// membership keys the many-to-many tables: (exam|room|post|comment, user).
	membership struct {
		targetID string
		userID   string
	}
)

func Open() *DB {
	db := &DB{}
	db.reset()
	return db
}

// Reset drops all the rows.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.users = make(map[string]*user.User)
	db.prefs = make(map[string]*user.Preferences)
	db.tokens = make(map[string]*user.AuthToken)
	db.books = make(map[string]*book.Book)
	db.images = make(map[string]*book.Image)
	db.orders = make(map[string]*book.Order)
	db.addresses = make(map[string]*book.ShippingAddress)
	db.exams = make(map[string]*exam.Exam)
	db.participants = make(map[membership]time.Time)
	db.rooms = make(map[string]*discussion.Room)
	db.members = make(map[membership]time.Time)
	db.posts = make(map[string]*discussion.Post)
	db.attachments = make(map[string]*discussion.Attachment)
	db.comments = make(map[string]*discussion.Comment)
	db.postVotes = make(map[membership]discussion.Vote)
	db.commentVotes = make(map[membership]discussion.Vote)
	db.categories = make(map[string]*goal.Category)
	db.statuses = make(map[string]*goal.Status)
	db.goals = make(map[string]*goal.Goal)
	db.suggestions = make(map[string]*goal.Suggestion)
	db.features = make(map[string]*waitlist.Feature)
	db.entries = make(map[string]*waitlist.Entry)
}

// Close is a no-op; it lets the DB stand in for a real connection.
func (db *DB) Close() error { return nil }

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
