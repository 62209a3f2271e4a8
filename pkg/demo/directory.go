package demo

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/vango-dev/vstore/pkg/store"
	"github.com/vango-dev/vstore/pkg/validate"
)

var (
	// ErrUserNotFound is returned for unknown user ids.
	ErrUserNotFound = errors.New("user not found")

	// ErrPostNotFound is returned for unknown post ids.
	ErrPostNotFound = errors.New("post not found")
)

// User is a directory member.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is written by a user.
type Post struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
	AuthorID  int    `json:"authorId"`
}

// UserInput is the payload of CreateUser.
type UserInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// PostInput is the payload of CreatePost.
type PostInput struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	AuthorID int    `json:"authorId" validate:"required"`
}

// DirectoryState is the state of the directory store.
// Pending counts actions in flight.
type DirectoryState struct {
	Users   []User `json:"users"`
	Posts   []Post `json:"posts"`
	Pending int    `json:"pending"`
}

// Loading reports whether an action is in flight.
func Loading(s DirectoryState) bool {
	return s.Pending > 0
}

// PostsBy returns the posts written by a user.
func PostsBy(s DirectoryState, userID int) []Post {
	var posts []Post
	for _, p := range s.Posts {
		if p.AuthorID == userID {
			posts = append(posts, p)
		}
	}
	return posts
}

// Directory holds users and their posts.
type Directory struct {
	*store.Store[DirectoryState]
	cfg actionConfig
}

// NewDirectory creates a directory seeded with two users and three posts.
func NewDirectory(opts []ActionOption, storeOpts ...store.Option) *Directory {
	cfg := defaultActionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	now := cfg.now()

	initial := DirectoryState{
		Users: []User{
			{ID: 1, Name: "John Doe", Email: "john@example.com", CreatedAt: now},
			{ID: 2, Name: "Jane Smith", Email: "jane@example.com", CreatedAt: now},
		},
		Posts: []Post{
			{ID: 1, Title: "First Post", Content: "This is my first post", Published: true, AuthorID: 1},
			{ID: 2, Title: "Second Post", Content: "This is my second post", Published: false, AuthorID: 1},
			{ID: 3, Title: "Hello World", Content: "Introduction post", Published: true, AuthorID: 2},
		},
	}
	storeOpts = append([]store.Option{store.WithName("directory")}, storeOpts...)
	return &Directory{Store: store.New(initial, storeOpts...), cfg: cfg}
}

// run marks the directory as loading, waits for the simulated latency and
// applies fn. fn returns an error to abort without changing users or posts.
func (d *Directory) run(ctx context.Context, fn func(s *DirectoryState) error) error {
	d.Set(func(s *DirectoryState) { s.Pending++ })

	if err := d.cfg.wait(ctx); err != nil {
		d.Set(func(s *DirectoryState) { s.Pending-- })
		return err
	}

	var err error
	d.Set(func(s *DirectoryState) {
		next := *s
		if err = fn(&next); err == nil {
			*s = next
		}
		s.Pending--
	})
	return err
}

// CreateUser adds a user with the next free id.
func (d *Directory) CreateUser(ctx context.Context, in UserInput) (User, error) {
	if errs := validate.Struct(in); errs != nil {
		return User{}, errs
	}

	var user User
	err := d.run(ctx, func(s *DirectoryState) error {
		user = User{
			ID:        nextUserID(s.Users),
			Name:      in.Name,
			Email:     in.Email,
			CreatedAt: d.cfg.now(),
		}
		s.Users = append(slices.Clone(s.Users), user)
		return nil
	})
	return user, err
}

// DeleteUser removes a user together with all of their posts.
func (d *Directory) DeleteUser(ctx context.Context, id int) error {
	return d.run(ctx, func(s *DirectoryState) error {
		i := slices.IndexFunc(s.Users, func(u User) bool { return u.ID == id })
		if i < 0 {
			return ErrUserNotFound
		}
		s.Users = slices.Delete(slices.Clone(s.Users), i, i+1)
		s.Posts = slices.DeleteFunc(slices.Clone(s.Posts), func(p Post) bool {
			return p.AuthorID == id
		})
		return nil
	})
}

// CreatePost adds an unpublished post. The author must exist.
func (d *Directory) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	if errs := validate.Struct(in); errs != nil {
		return Post{}, errs
	}

	var post Post
	err := d.run(ctx, func(s *DirectoryState) error {
		if !slices.ContainsFunc(s.Users, func(u User) bool { return u.ID == in.AuthorID }) {
			return ErrUserNotFound
		}
		post = Post{
			ID:       nextPostID(s.Posts),
			Title:    in.Title,
			Content:  in.Content,
			AuthorID: in.AuthorID,
		}
		s.Posts = append(slices.Clone(s.Posts), post)
		return nil
	})
	return post, err
}

// TogglePublish flips the published flag of a post.
func (d *Directory) TogglePublish(ctx context.Context, id int) error {
	return d.run(ctx, func(s *DirectoryState) error {
		i := slices.IndexFunc(s.Posts, func(p Post) bool { return p.ID == id })
		if i < 0 {
			return ErrPostNotFound
		}
		posts := slices.Clone(s.Posts)
		posts[i].Published = !posts[i].Published
		s.Posts = posts
		return nil
	})
}

// DeletePost removes a post.
func (d *Directory) DeletePost(ctx context.Context, id int) error {
	return d.run(ctx, func(s *DirectoryState) error {
		i := slices.IndexFunc(s.Posts, func(p Post) bool { return p.ID == id })
		if i < 0 {
			return ErrPostNotFound
		}
		s.Posts = slices.Delete(slices.Clone(s.Posts), i, i+1)
		return nil
	})
}

func nextUserID(users []User) int {
	id := 0
	for _, u := range users {
		id = max(id, u.ID)
	}
	return id + 1
}

func nextPostID(posts []Post) int {
	id := 0
	for _, p := range posts {
		id = max(id, p.ID)
	}
	return id + 1
}
