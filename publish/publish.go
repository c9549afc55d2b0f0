// Package publish turns a local content file into a post on a blog.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/alexflint/gblog/blogger"
	"github.com/alexflint/gblog/config"
	"github.com/alexflint/gblog/metadata"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingFile is returned when the content file does not exist
	ErrMissingFile = errors.New("file not found")
	// ErrMissingTitle is returned when there is no title on the command line or in the file
	ErrMissingTitle = errors.New("no title provided")
	// ErrAmbiguousBlog is returned when the user has several blogs and none was chosen
	ErrAmbiguousBlog = errors.New("multiple blogs found and none was selected")
)

// BlogService is the subset of the Blogger API used for publishing
type BlogService interface {
	Get(ctx context.Context, id string) (*blogger.Blog, error)
	GetByURL(ctx context.Context, url string) (*blogger.Blog, error)
	List(ctx context.Context) ([]*blogger.Blog, error)
	Insert(ctx context.Context, blogID string, post *blogger.NewPost, draft bool) (*blogger.Post, error)
}

// Chooser picks one of several blogs, returning its index
type Chooser interface {
	Choose(blogs []*blogger.Blog) (int, error)
}

// BlogRef identifies the target blog. When both fields are empty the user's
// blogs are listed and one is selected.
type BlogRef struct {
	ID  string
	URL string
}

// Request is everything needed to create one post
type Request struct {
	Content string
	Title   string
	Labels  []string
	Draft   bool
	Blog    BlogRef
}

// Publisher creates posts. Connect is called only once a valid request has
// been prepared, so that local problems are reported before any network call.
type Publisher struct {
	Connect func(ctx context.Context, settings config.Settings) (BlogService, error)
	Chooser Chooser   // nil means several blogs is an error
	Out     io.Writer // progress and results
}

// ReadContent reads a content file, which must be valid UTF-8
func ReadContent(path string) (string, error) {
	log.Debug().Str("path", path).Msg("reading file")
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("unable to decode %s, please ensure it is a valid UTF-8 text file", path)
	}
	log.Debug().Int("bytes", len(buf)).Msg("read file")
	return string(buf), nil
}

// NewRequest combines file content with the effective settings. A title given
// on the command line takes precedence over one embedded in the file. Labels
// from the settings, which already merge the command line and the config
// file, take precedence over labels embedded in the file.
func NewRequest(content, title string, settings config.Settings) (*Request, error) {
	md := metadata.Extract(content)

	title = strings.TrimSpace(title)
	if title == "" {
		title = md.Title
	}
	if title == "" {
		return nil, fmt.Errorf("%w: specify --title or include a title in the file using <!-- title>Your Title Here<title -->", ErrMissingTitle)
	}
	log.Debug().Str("title", title).Msg("using title")

	labels := settings.Labels
	if len(labels) > 0 {
		log.Debug().Strs("labels", labels).Msg("using configured labels")
	} else if len(md.Labels) > 0 {
		labels = md.Labels
		log.Debug().Strs("labels", labels).Msg("using file labels")
	}

	return &Request{
		Content: content,
		Title:   title,
		Labels:  labels,
		Draft:   settings.Draft,
		Blog: BlogRef{
			ID:  settings.BlogID,
			URL: settings.BlogURL,
		},
	}, nil
}

// SelectBlog finds the blog to post to. An ID takes precedence over a URL.
func SelectBlog(ctx context.Context, svc BlogService, ref BlogRef, chooser Chooser) (*blogger.Blog, error) {
	switch {
	case ref.ID != "":
		// validate the ID by fetching the blog
		return svc.Get(ctx, ref.ID)
	case ref.URL != "":
		return svc.GetByURL(ctx, ref.URL)
	}

	blogs, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}

	switch len(blogs) {
	case 0:
		return nil, fmt.Errorf("%w: no blogs found for this user", blogger.ErrBlogNotFound)
	case 1:
		log.Debug().Str("name", blogs[0].Name).Msg("auto-selected the only blog")
		return blogs[0], nil
	}

	if chooser == nil {
		var names []string
		for _, b := range blogs {
			names = append(names, fmt.Sprintf("%s (ID: %s)", b.URL, b.ID))
		}
		return nil, fmt.Errorf("%w, use --blog-id or --blog-url to pick one of: %s",
			ErrAmbiguousBlog, strings.Join(names, ", "))
	}

	i, err := chooser.Choose(blogs)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(blogs) {
		return nil, fmt.Errorf("%w: selection %d out of range", ErrAmbiguousBlog, i+1)
	}
	return blogs[i], nil
}

// Publish submits a prepared request and reports the result
func (p *Publisher) Publish(ctx context.Context, req *Request, settings config.Settings) (*blogger.Post, error) {
	fmt.Fprintln(p.Out, "Authenticating with Google...")
	svc, err := p.Connect(ctx, settings)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(p.Out, "Getting blog information...")
	blog, err := SelectBlog(ctx, svc, req.Blog, p.Chooser)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.Out, "Using blog: %s (%s)\n", blog.Name, blog.URL)

	fmt.Fprintln(p.Out, "Posting to blog...")
	post, err := svc.Insert(ctx, blog.ID, &blogger.NewPost{
		Title:   req.Title,
		Content: req.Content,
		Labels:  req.Labels,
	}, req.Draft)
	if err != nil {
		return nil, err
	}

	Report(p.Out, post, req.Draft)
	return post, nil
}

// Run performs the whole sequence for one file: read it, work out the title
// and labels, then authenticate, select a blog, and create the post
func (p *Publisher) Run(ctx context.Context, path, title string, settings config.Settings) (*blogger.Post, error) {
	fmt.Fprintf(p.Out, "Reading content from %s...\n", path)
	content, err := ReadContent(path)
	if err != nil {
		return nil, err
	}

	req, err := NewRequest(content, title, settings)
	if err != nil {
		return nil, err
	}

	return p.Publish(ctx, req, settings)
}

// Report prints a summary of a created post
func Report(w io.Writer, post *blogger.Post, draft bool) {
	published := post.Published
	if draft || published == "" {
		published = "Draft"
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Post created successfully!")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "ID: %s\n", post.ID)
	fmt.Fprintf(w, "Title: %s\n", post.Title)
	fmt.Fprintf(w, "URL: %s\n", post.URL)
	fmt.Fprintf(w, "Published: %s\n", published)
	if len(post.Labels) > 0 {
		fmt.Fprintf(w, "Labels: %s\n", strings.Join(post.Labels, ", "))
	}
	fmt.Fprintln(w, rule)
}
