package models

import "time"

// Post is an announcement targeted at one or all roles.
type Post struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Audience  *UserRole `db:"audience" json:"audience,omitempty"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Pinned    bool      `db:"pinned" json:"pinned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PostDetail enriches Post with the author name.
type PostDetail struct {
	Post
	AuthorName string `db:"author_name" json:"author_name"`
}

// PostFilter scopes post listing queries.
type PostFilter struct {
	Audience  *UserRole
	AuthorID  string
	Pinned    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
