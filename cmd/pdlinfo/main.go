// Command pdlinfo prints a summary of each document named on the command
// line: version, page count, metadata, and the diagnostics accumulated
// while walking the file. Files are processed concurrently, one session
// per goroutine.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mblythe/vellum/logger"
	"github.com/mblythe/vellum/reader"
)

var (
	strict  bool
	jobs    int
	boxes   bool
	verbose bool
)

func init() {
	flag.BoolVar(&strict, "strict", false, "abort on the first recoverable fault")
	flag.IntVar(&jobs, "jobs", 4, "number of files processed in parallel")
	flag.BoolVar(&boxes, "boxes", false, "print every page's media box")
	flag.BoolVar(&verbose, "v", false, "log parsing and recovery decisions to stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdlinfo [options] <file>...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if verbose {
		logger.SetLogger(func(level logger.LogLevel, msg string, keyvals ...interface{}) {
			fmt.Fprintf(os.Stderr, "[%s] %s %v\n", level, msg, keyvals)
		})
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(jobs)

	failed := false
	for _, path := range files {
		path := path
		g.Go(func() error {
			summary, err := summarize(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				return nil
			}
			fmt.Print(summary)
			return nil
		})
	}
	g.Wait()

	if failed {
		os.Exit(1)
	}
}

// summarize opens one document and renders its report.
func summarize(path string) (string, error) {
	cfg := reader.NewDefaultConfig()
	if strict {
		cfg.ParsingMode = reader.Strict
	}

	doc, err := reader.OpenWithConfig(path, cfg)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", path)

	if info, err := doc.Info(); err == nil && len(info) > 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, info[k])
		}
	}

	if boxes {
		for i := 0; i < doc.PageCount(); i++ {
			page, err := doc.Page(i)
			if err != nil {
				fmt.Fprintf(&b, "  page %d: %v\n", i+1, err)
				continue
			}
			if box, err := page.MediaBox(); err == nil {
				fmt.Fprintf(&b, "  page %d: media box %v\n", i+1, box)
			}
			page.Close()
		}
	}

	for _, line := range strings.Split(strings.TrimRight(doc.Report(), "\n"), "\n") {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return b.String(), nil
}
