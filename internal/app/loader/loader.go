// Package loader walks a directory of Markdown posts and turns each file
// into a document.Document, deriving the fields the rest of the pipeline
// depends on from frontmatter and file layout.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mafzaal/letstalk-index/internal/app/domain/document"
	"github.com/mafzaal/letstalk-index/pkg/errors"
	"github.com/mafzaal/letstalk-index/pkg/logger"
)

// Options controls a single Load invocation.
type Options struct {
	RootDir            string
	GlobPattern        string
	BlogBaseURL        string
	IndexOnlyPublished bool
	ChecksumAlgorithm  document.ChecksumAlgorithm
}

// Loader reads Markdown posts from disk.
type Loader struct {
	log *logger.Logger
}

// New returns a Loader.
func New(log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewDefault("loader")
	}
	return &Loader{log: log}
}

// frontmatter is the raw key/value block parsed from the top of a post.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Categories  []string `yaml:"categories"`
	Description string   `yaml:"description"`
	CoverImage  string   `yaml:"cover_image"`
	CoverVideo  string   `yaml:"cover_video"`
	ReadingTime string   `yaml:"reading_time"`
	Published   *bool    `yaml:"published"`
}

// Load walks opts.RootDir, reading every file matching opts.GlobPattern.
// Only catastrophic I/O failure (the root itself unreadable) aborts the
// load; an unreadable individual file is skipped with a warning, and a file
// with malformed frontmatter is still produced using defaults.
func (l *Loader) Load(opts Options) ([]document.Document, error) {
	if _, err := os.Stat(opts.RootDir); err != nil {
		return nil, errors.Load(fmt.Sprintf("data directory %q is not readable", opts.RootDir), err)
	}

	var out []document.Document
	walkErr := filepath.WalkDir(opts.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		match, err := filepath.Match(opts.GlobPattern, filepath.Base(path))
		if err != nil || !match {
			return nil
		}

		doc, ok := l.loadFile(path, opts)
		if !ok {
			return nil
		}
		if opts.IndexOnlyPublished && !doc.Published {
			return nil
		}
		out = append(out, doc)
		return nil
	})
	if walkErr != nil {
		return nil, errors.Load("walk data directory", walkErr)
	}
	return out, nil
}

func (l *Loader) loadFile(path string, opts Options) (document.Document, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		l.log.WithField("path", path).Warnf("skip unreadable file: %v", err)
		return document.Document{}, false
	}

	info, err := os.Stat(path)
	var lastModified int64
	if err == nil {
		lastModified = info.ModTime().Unix()
	}

	fm, body := splitFrontmatter(string(raw))
	var meta frontmatter
	if fm != "" {
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			l.log.WithField("path", path).Warnf("malformed frontmatter, using defaults: %v", err)
			meta = frontmatter{}
		}
	}

	slug := postSlug(path)
	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = humanize(slug)
	}

	published := true
	if meta.Published != nil {
		published = *meta.Published
	}

	doc := document.Document{
		Content:       body,
		Source:        path,
		Title:         title,
		Date:          meta.Date,
		Categories:    meta.Categories,
		Description:   meta.Description,
		CoverImage:    normalizeCoverImage(meta.CoverImage, opts.BlogBaseURL),
		CoverVideo:    normalizeCoverVideo(meta.CoverVideo),
		ReadingTime:   meta.ReadingTime,
		Published:     published,
		URL:           joinURL(opts.BlogBaseURL, slug),
		PostSlug:      slug,
		ContentLength: len([]rune(body)),
		LastModified:  lastModified,
	}
	return doc.WithChecksum(algoOrDefault(opts.ChecksumAlgorithm)), true
}

func algoOrDefault(a document.ChecksumAlgorithm) document.ChecksumAlgorithm {
	if a == "" {
		return document.ChecksumSHA256
	}
	return a
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from the
// rest of the document. Files with no frontmatter return an empty header
// and the full content as body.
func splitFrontmatter(raw string) (header string, body string) {
	const delim = "---"
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", raw
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return "", raw
}

func postSlug(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(dir)
	if base == "." || base == string(filepath.Separator) {
		base = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return base
}

func humanize(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func joinURL(base, slug string) string {
	if strings.TrimSpace(base) == "" {
		return slug
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(slug, "/")
}

func normalizeCoverImage(image, base string) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return joinURL(base, image)
}

// normalizeCoverVideo converts a bare YouTube video ID into its canonical
// embed URL; a value that already looks like a URL is passed through.
func normalizeCoverVideo(video string) string {
	if video == "" {
		return ""
	}
	if strings.Contains(video, "://") {
		return video
	}
	return "https://www.youtube.com/embed/" + video
}
