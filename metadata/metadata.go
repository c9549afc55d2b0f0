// Package metadata extracts post metadata embedded in a content file as
// HTML comments, for example:
//
//	<!-- title>Your Title Here<title -->
//	<!-- labels>Label A, Label B<labels -->
package metadata

import (
	"strings"

	"github.com/alexflint/go-restructure"
	"github.com/rs/zerolog/log"
)

// Metadata is what was found in a content file. Empty fields were not present.
type Metadata struct {
	Title  string
	Labels []string
}

// a regular expression for the title marker
type titleMarker struct {
	_     string `(?i)<!--\s*title>`
	Title string `(?s:.+?)`
	_     string `(?i)<title\s*-->`
}

// a regular expression for the labels marker
type labelsMarker struct {
	_      string `(?i)<!--\s*labels>`
	Labels string `(?s:.+?)`
	_      string `(?i)<labels\s*-->`
}

var (
	titlePattern  = restructure.MustCompile(&titleMarker{}, restructure.Options{})
	labelsPattern = restructure.MustCompile(&labelsMarker{}, restructure.Options{})
)

// Extract looks for the first title marker and the first labels marker in content
func Extract(content string) Metadata {
	var md Metadata

	var title titleMarker
	if titlePattern.Find(&title, content) {
		md.Title = strings.TrimSpace(title.Title)
		log.Debug().Str("title", md.Title).Msg("extracted title from file")
	}

	var labels labelsMarker
	if labelsPattern.Find(&labels, content) {
		md.Labels = SplitLabels(labels.Labels)
		log.Debug().Strs("labels", md.Labels).Msg("extracted labels from file")
	}

	return md
}

// SplitLabels splits a comma-separated list, trimming each label and dropping
// empty ones. Order is preserved and duplicates are kept.
func SplitLabels(s string) []string {
	var labels []string
	for _, label := range strings.Split(s, ",") {
		label = strings.TrimSpace(label)
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
