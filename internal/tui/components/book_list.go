package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/search"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// BookList is a scrolling list of books with a cursor
type BookList struct {
	items  []search.Result
	cursor int
	offset int
	width  int
	height int
}

// NewBookList creates an empty list
func NewBookList() BookList {
	return BookList{width: 40, height: 10}
}

// SetSize sets the rendered dimensions
func (l *BookList) SetSize(width, height int) {
	l.width = width
	l.height = height
	if l.height < 3 {
		l.height = 3
	}
	l.clamp()
}

// SetItems replaces the list contents, keeping the cursor in range
func (l *BookList) SetItems(items []search.Result) {
	l.items = items
	l.clamp()
}

// Len returns the number of rows
func (l BookList) Len() int { return len(l.items) }

// Selected returns the row under the cursor
func (l BookList) Selected() (search.Result, bool) {
	if l.cursor < 0 || l.cursor >= len(l.items) {
		return search.Result{}, false
	}
	return l.items[l.cursor], true
}

func (l *BookList) MoveUp()   { l.cursor--; l.clamp() }
func (l *BookList) MoveDown() { l.cursor++; l.clamp() }
func (l *BookList) Top()      { l.cursor = 0; l.clamp() }
func (l *BookList) Bottom()   { l.cursor = len(l.items) - 1; l.clamp() }

func (l *BookList) clamp() {
	if l.cursor >= len(l.items) {
		l.cursor = len(l.items) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	visible := l.visibleRows()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+visible {
		l.offset = l.cursor - visible + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// Header and footer lines are always reserved
func (l BookList) visibleRows() int {
	return l.height - 2
}

// View renders the list. emptyMsg is shown when there are no rows.
func (l BookList) View(emptyMsg string) string {
	if len(l.items) == 0 {
		return styles.ListStyle.Render(" \n" + styles.DimStyle.Render(emptyMsg))
	}

	end := l.offset + l.visibleRows()
	if end > len(l.items) {
		end = len(l.items)
	}

	header := " "
	if l.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	if end < len(l.items) {
		footer = styles.DimStyle.Render("↓ more")
	}

	lines := []string{header}
	for i := l.offset; i < end; i++ {
		lines = append(lines, l.renderRow(l.items[i], i == l.cursor))
	}
	lines = append(lines, footer)

	return strings.Join(lines, "\n")
}

func (l BookList) renderRow(r search.Result, selected bool) string {
	var item domain.ListItem = &r.Book
	meta := item.GetDescription()
	metaWidth := lipgloss.Width(meta)

	titleWidth := l.width - metaWidth - 6
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := styles.Truncate(item.GetTitle(), titleWidth)
	matched := r.MatchedIndexes
	if title != item.GetTitle() {
		// Offsets no longer line up once truncated
		matched = nil
	}

	dim := styles.DimGray
	parts := []styles.RowPart{
		{Text: highlightMatches(title, matched, selected)},
		{Text: "  "},
		{Text: meta, Foreground: &dim},
	}
	return styles.RenderListRow(parts, selected, l.width)
}

// highlightMatches renders text with the matched byte offsets emphasised
func highlightMatches(text string, matchedIndexes []int, selected bool) string {
	if len(matchedIndexes) == 0 {
		return text
	}

	matchSet := make(map[int]bool, len(matchedIndexes))
	for _, idx := range matchedIndexes {
		matchSet[idx] = true
	}

	style := styles.MatchHighlightStyle
	if selected {
		style = styles.MatchHighlightSelectedStyle
	}

	var b strings.Builder
	for i, r := range text {
		if matchSet[i] {
			b.WriteString(style.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
