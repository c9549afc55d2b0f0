package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexflint/gblog/blogger"
	"github.com/alexflint/gblog/config"
	"github.com/alexflint/gblog/googleauth"
	"github.com/alexflint/gblog/metadata"
	"github.com/alexflint/gblog/publish"
	"github.com/alexflint/go-arg"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"google.golang.org/api/option"
)

const version = "1.4.0"

type args struct {
	File        string `arg:"-f,--file,required" help:"text/HTML file to post"`
	Title       string `arg:"-t,--title" help:"post title (if not provided, extracted from the file)"`
	BlogURL     string `arg:"-b,--blog-url" help:"blog URL, e.g. https://myblog.blogspot.com"`
	BlogID      string `arg:"--blog-id" help:"blog ID (takes precedence over --blog-url)"`
	Labels      string `arg:"-l,--labels" help:"comma-separated list of labels"`
	Draft       bool   `arg:"--draft" help:"create as draft instead of publishing"`
	Credentials string `arg:"-c,--credentials" help:"path to OAuth client credentials [default: credentials.json]"`
	Token       string `arg:"--token" help:"path to token file, .json or .js [default: token.json]"`
	Config      string `arg:"-C,--config,env:GBLOG_CONFIG" help:"path to YAML configuration file"`
	Verbose     bool   `arg:"-v,--verbose" help:"enable verbose output for debugging"`
}

func (args) Version() string {
	return "gblog " + version
}

func (args) Description() string {
	return "Post text/HTML files to Blogger using OAuth 2.0"
}

func (args) Epilogue() string {
	return `Examples:
  # Post a file with a title
  gblog -f mypost.txt -t "My Blog Post Title"

  # Post as draft with labels
  gblog -f mypost.html -t "Draft Post" --draft --labels "golang,blogging"

  # Specify blog URL and credentials file
  gblog -f post.txt -t "My Post" -b https://myblog.blogspot.com -c my_creds.json

  # Specify blog ID directly (most efficient)
  gblog -f post.txt -t "My Post" --blog-id 1234567890123456789`
}

// settings returns the command line as a configuration layer
func (a *args) settings() config.Settings {
	return config.Settings{
		BlogURL:     a.BlogURL,
		BlogID:      a.BlogID,
		Credentials: a.Credentials,
		Token:       a.Token,
		Labels:      metadata.SplitLabels(a.Labels),
		Draft:       a.Draft,
	}
}

// connect authenticates with Google and creates a Blogger client
func connect(ctx context.Context, settings config.Settings) (publish.BlogService, error) {
	log.Debug().
		Str("credentials", settings.Credentials).
		Str("token", settings.Token).
		Msg("authenticating")

	ts, err := googleauth.Authenticate(ctx, googleauth.Options{
		CredentialsFile: settings.Credentials,
		TokenFile:       settings.Token,
		Scopes:          []string{blogger.Scope},
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Msg("authentication successful")

	return blogger.New(ctx, option.WithTokenSource(ts))
}

func run(ctx context.Context, args *args) error {
	log.Debug().Str("version", version).Msg("gblog started")

	// load the config file if one was given
	var file *config.File
	if args.Config != "" {
		var err error
		file, err = config.Load(args.Config)
		if err != nil {
			return err
		}
	}

	settings := config.Resolve(args.settings(), file.Settings(), config.Defaults())
	log.Debug().Msgf("effective settings: %# v", pretty.Formatter(settings))

	// only prompt for a blog when there is someone to answer
	var chooser publish.Chooser
	if term.IsTerminal(int(os.Stdin.Fd())) {
		chooser = &publish.Prompt{In: os.Stdin, Out: os.Stdout}
	}

	p := publish.Publisher{
		Connect: connect,
		Chooser: chooser,
		Out:     os.Stdout,
	}

	_, err := p.Run(ctx, args.File, args.Title, settings)
	return err
}

func main() {
	ctx := context.Background()

	var args args
	arg.MustParse(&args)

	setupLogging(args.Verbose)

	err := run(ctx, &args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
