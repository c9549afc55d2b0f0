// Package blogger is a small client for the parts of the Blogger v3 API that
// gblog needs: finding a blog and creating a post in it.
package blogger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	bloggerapi "google.golang.org/api/blogger/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Scope is the OAuth scope required for reading blogs and creating posts
const Scope = bloggerapi.BloggerScope

var (
	// ErrBlogNotFound is returned when a blog does not exist or is not accessible
	ErrBlogNotFound = errors.New("blog not found")
	// ErrSubmit is returned when the API rejects a new post
	ErrSubmit = errors.New("error creating post")
)

// Blog is a blog owned by or accessible to the authenticated user
type Blog struct {
	ID   string
	Name string
	URL  string
}

// NewPost is the content of a post to be created
type NewPost struct {
	Title   string
	Content string
	Labels  []string
}

// Post is a post as returned by the API after it was created
type Post struct {
	ID        string
	Title     string
	URL       string
	Published string // empty for drafts
	Labels    []string
}

// Client makes API calls to Blogger
type Client struct {
	svc *bloggerapi.Service
}

// New creates a client. Typically opts contains option.WithTokenSource.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := bloggerapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating blogger client: %w", err)
	}
	return &Client{svc: svc}, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func fromAPIBlog(b *bloggerapi.Blog) *Blog {
	return &Blog{
		ID:   b.Id,
		Name: b.Name,
		URL:  b.Url,
	}
}

// Get fetches a blog by ID
func (c *Client) Get(ctx context.Context, id string) (*Blog, error) {
	log.Debug().Str("id", id).Msg("fetching blog by ID")
	b, err := c.svc.Blogs.Get(id).Context(ctx).Do()
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: blog ID %q not found or not accessible", ErrBlogNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching blog %q: %w", id, err)
	}
	return fromAPIBlog(b), nil
}

// GetByURL fetches a blog by its URL, for example https://example.blogspot.com
func (c *Client) GetByURL(ctx context.Context, url string) (*Blog, error) {
	log.Debug().Str("url", url).Msg("resolving blog URL")
	b, err := c.svc.Blogs.GetByUrl(url).Context(ctx).Do()
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: no blog at %s", ErrBlogNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching blog at %s: %w", url, err)
	}
	return fromAPIBlog(b), nil
}

// List fetches the blogs of the authenticated user
func (c *Client) List(ctx context.Context) ([]*Blog, error) {
	log.Debug().Msg("listing blogs for user")
	resp, err := c.svc.Blogs.ListByUser("self").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error listing blogs: %w", err)
	}

	var blogs []*Blog
	for _, b := range resp.Items {
		blogs = append(blogs, fromAPIBlog(b))
	}
	log.Debug().Int("count", len(blogs)).Msg("found blogs")
	return blogs, nil
}

// Insert creates a post in a blog, either published or as a draft
func (c *Client) Insert(ctx context.Context, blogID string, post *NewPost, draft bool) (*Post, error) {
	log.Debug().
		Str("title", post.Title).
		Bool("draft", draft).
		Int("length", len(post.Content)).
		Strs("labels", post.Labels).
		Msg("creating post")

	call := c.svc.Posts.Insert(blogID, &bloggerapi.Post{
		Kind:    "blogger#post",
		Title:   post.Title,
		Content: post.Content,
		Labels:  post.Labels,
	})
	if draft {
		call = call.IsDraft(true)
	}

	p, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	log.Debug().Str("id", p.Id).Msg("post created")
	return &Post{
		ID:        p.Id,
		Title:     p.Title,
		URL:       p.Url,
		Published: p.Published,
		Labels:    p.Labels,
	}, nil
}
