package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// GenreBar is a horizontal selector over the collection's genres
type GenreBar struct {
	genres   []string
	selected int
	width    int
}

// NewGenreBar creates a bar holding only "All"
func NewGenreBar() GenreBar {
	return GenreBar{genres: []string{domain.AllGenres}}
}

// SetGenres replaces the genres, keeping the current selection when it still exists
func (g *GenreBar) SetGenres(genres []string) {
	current := g.Selected()
	g.genres = genres
	g.selected = 0
	g.Select(current)
}

// Select moves to genre if present
func (g *GenreBar) Select(genre string) {
	for i, name := range g.genres {
		if name == genre {
			g.selected = i
			return
		}
	}
}

// Selected returns the current genre
func (g GenreBar) Selected() string {
	if g.selected < 0 || g.selected >= len(g.genres) {
		return domain.AllGenres
	}
	return g.genres[g.selected]
}

// Next selects the following genre, wrapping
func (g *GenreBar) Next() {
	if len(g.genres) > 0 {
		g.selected = (g.selected + 1) % len(g.genres)
	}
}

// Prev selects the preceding genre, wrapping
func (g *GenreBar) Prev() {
	if len(g.genres) > 0 {
		g.selected = (g.selected - 1 + len(g.genres)) % len(g.genres)
	}
}

// SetWidth sets the rendered width
func (g *GenreBar) SetWidth(width int) { g.width = width }

// View renders the bar, scrolled so the selected genre stays visible
func (g GenreBar) View() string {
	rendered := make([]string, len(g.genres))
	for i, name := range g.genres {
		if name == "" {
			name = "(none)"
		}
		if i == g.selected {
			rendered[i] = styles.GenreActiveStyle.Render(name)
		} else {
			rendered[i] = styles.GenreStyle.Render(name)
		}
	}

	start := 0
	for g.width > 0 && start < g.selected &&
		lipgloss.Width(strings.Join(rendered[start:g.selected+1], "")) > g.width {
		start++
	}
	line := strings.Join(rendered[start:], "")
	if start > 0 {
		line = styles.DimStyle.Render("‹ ") + line
	}
	return line
}
