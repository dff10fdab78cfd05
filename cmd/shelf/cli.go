package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/mmcdole/shelf/internal/adapter"
	"github.com/mmcdole/shelf/internal/catalog"
	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/tui"
)

// cli runs the non-interactive subcommands against a CatalogStore
type cli struct {
	store  *catalog.CatalogStore
	images catalog.ImageResolver
	opener tui.Opener
	out    io.Writer
	errOut io.Writer
	limit  int
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "list", "ls":
		return c.list(ctx, rest)
	case "genres":
		return c.genres(ctx, rest)
	case "categories":
		return c.categories(ctx, rest)
	case "recommend":
		return c.recommend(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "add":
		return c.add(ctx, rest)
	case "edit":
		return c.edit(ctx, rest)
	case "rm", "delete":
		return c.remove(ctx, rest)
	case "save":
		return c.save(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q (see shelf -h)", name)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// splitID accepts the id before or after the flags
func splitID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%s: book id is required", fs.Name())
	}
	return id, nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	var (
		filter domain.Filter
		asJSON bool
	)
	fs := newFlagSet("list")
	fs.StringVar(&filter.Title, "title", "", "match title")
	fs.StringVar(&filter.Author, "author", "", "match author")
	fs.StringVar(&filter.Genre, "genre", "", "match genre")
	fs.StringVar(&filter.ID, "id", "", "match id")
	fs.IntVar(&filter.Limit, "limit", 0, "maximum results")
	fs.BoolVar(&asJSON, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if filter.Genre == domain.AllGenres {
		filter.Genre = ""
	}

	books, err := c.store.Load(ctx, filter)
	if err != nil {
		return err
	}
	if asJSON {
		return c.writeJSON(books)
	}
	if len(books) == 0 {
		fmt.Fprintln(c.out, "No books found")
		return nil
	}
	return c.writeTable(books)
}

func (c *cli) genres(ctx context.Context, args []string) error {
	if _, err := c.store.Load(ctx, domain.Filter{}); err != nil {
		return err
	}
	for _, g := range c.store.DistinctGenres() {
		if g == domain.AllGenres {
			continue
		}
		fmt.Fprintln(c.out, g)
	}
	return nil
}

func (c *cli) categories(ctx context.Context, args []string) error {
	cats, err := c.store.LoadCategories(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "warning: %v (showing cached categories)\n", err)
	}
	for _, cat := range cats {
		fmt.Fprintln(c.out, cat.Name)
	}
	return nil
}

func (c *cli) recommend(ctx context.Context, args []string) error {
	var asJSON bool
	fs := newFlagSet("recommend")
	n := fs.Int("n", c.limit, "number of recommendations")
	fs.BoolVar(&asJSON, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	books, err := c.store.LoadRecommendations(ctx, *n)
	if err != nil {
		return err
	}
	if asJSON {
		return c.writeJSON(books)
	}
	if len(books) == 0 {
		fmt.Fprintln(c.out, "No recommendations")
		return nil
	}
	return c.writeTable(books)
}

func (c *cli) show(ctx context.Context, args []string) error {
	var asJSON, open bool
	fs := newFlagSet("show")
	fs.BoolVar(&asJSON, "json", false, "print JSON")
	fs.BoolVar(&open, "open", false, "open the cover image")
	id, err := splitID(fs, args)
	if err != nil {
		return err
	}

	book, err := c.store.FetchByID(ctx, id)
	if err != nil {
		cached, ok := c.store.Cached(id)
		if !domain.IsNetwork(err) || !ok {
			return err
		}
		fmt.Fprintf(c.errOut, "warning: %v (showing cached copy)\n", err)
		book = cached
	}
	if open && c.opener != nil {
		if err := c.opener.Launch(c.images.URL(book)); err != nil {
			fmt.Fprintf(c.errOut, "warning: could not open image: %v\n", err)
		}
	}
	if asJSON {
		return c.writeJSON(book)
	}

	fmt.Fprintln(c.out, book.Title)
	fmt.Fprintln(c.out, book.Byline())
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", book.ID)
	fmt.Fprintf(w, "Genre\t%s\n", book.Genre)
	if book.PublishedYear > 0 {
		fmt.Fprintf(w, "Published\t%d\n", book.PublishedYear)
	}
	if book.HasRating() {
		fmt.Fprintf(w, "Rating\t%s\n", book.FormattedRating())
	}
	fmt.Fprintf(w, "Image\t%s\n", c.images.URL(book))
	if err := w.Flush(); err != nil {
		return err
	}
	if book.Description != "" {
		fmt.Fprintf(c.out, "\n%s\n", book.Description)
	}
	return nil
}

func (c *cli) add(ctx context.Context, args []string) error {
	var (
		form      domain.NewBookForm
		imagePath string
	)
	fs := newFlagSet("add")
	fs.StringVar(&form.Title, "title", "", "title")
	fs.StringVar(&form.Author, "author", "", "author")
	fs.StringVar(&form.Genre, "genre", "", "genre")
	fs.IntVar(&form.PublishedYear, "year", 0, "published year (1900-2099)")
	fs.StringVar(&form.Description, "description", "", "description")
	fs.StringVar(&imagePath, "image", "", "cover image file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()
		form.Image = f
		form.ImageName = filepath.Base(imagePath)
	}

	book, err := c.store.Submit(ctx, form)
	if err != nil {
		var fe *catalog.FormError
		if errors.As(err, &fe) {
			for _, f := range fe.Fields {
				fmt.Fprintf(c.errOut, "  %s\n", f.Message)
			}
		}
		return err
	}

	fmt.Fprintf(c.out, "Book submitted successfully (id %s)\n", book.ID)
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	var (
		title, author, genre, description string
		year                              int
		rating                            float64
	)
	fs := newFlagSet("edit")
	fs.StringVar(&title, "title", "", "title")
	fs.StringVar(&author, "author", "", "author")
	fs.StringVar(&genre, "genre", "", "genre")
	fs.IntVar(&year, "year", 0, "published year")
	fs.StringVar(&description, "description", "", "description")
	fs.Float64Var(&rating, "rating", 0, "rating (0-5)")
	id, err := splitID(fs, args)
	if err != nil {
		return err
	}

	// Only flags given on the command line become part of the patch
	var patch domain.BookPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			patch.Title = &title
		case "author":
			patch.Author = &author
		case "genre":
			patch.Genre = &genre
		case "year":
			patch.PublishedYear = &year
		case "description":
			patch.Description = &description
		case "rating":
			patch.Rating = &rating
		}
	})

	book, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated %s (%s)\n", book.Title, book.ID)
	return nil
}

func (c *cli) remove(ctx context.Context, args []string) error {
	id, err := splitID(newFlagSet("rm"), args)
	if err != nil {
		return err
	}
	outcome, err := c.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, outcome)
	return nil
}

func (c *cli) save(ctx context.Context, args []string) error {
	id, err := splitID(newFlagSet("save"), args)
	if err != nil {
		return err
	}
	book, err := c.store.FetchByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx, book); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved %s (%s)\n", book.Title, book.ID)
	return nil
}

func (c *cli) writeTable(books []domain.Book) error {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tGENRE\tYEAR")
	for _, b := range books {
		year := ""
		if b.PublishedYear > 0 {
			year = fmt.Sprintf("%d", b.PublishedYear)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Genre, year)
	}
	return w.Flush()
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runConfig prints the effective configuration, or writes it with "init"
func runConfig(out io.Writer, cfg *adapter.Config, args []string) error {
	if len(args) > 0 && args[0] == "init" {
		if err := adapter.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", adapter.ConfigFile())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "config file\t%s\n", adapter.ConfigFile())
	fmt.Fprintf(w, "server.url\t%s\n", cfg.Server.URL)
	fmt.Fprintf(w, "server.file_host\t%s\n", cfg.Server.FileHost)
	fmt.Fprintf(w, "client.timeout\t%s\n", cfg.Client.Timeout)
	fmt.Fprintf(w, "client.rate_limit\t%g\n", cfg.Client.RateLimit)
	fmt.Fprintf(w, "client.breaker_failures\t%d\n", cfg.Client.BreakerFailures)
	fmt.Fprintf(w, "cache.dir\t%s\n", cfg.Cache.Dir)
	fmt.Fprintf(w, "ui.recommendations\t%d\n", cfg.UI.Recommendations)
	fmt.Fprintf(w, "logging.file\t%s\n", cfg.Logging.File)
	fmt.Fprintf(w, "logging.level\t%s\n", cfg.Logging.Level)
	return w.Flush()
}
