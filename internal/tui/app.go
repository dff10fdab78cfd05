package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/shelf/internal/catalog"
	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/search"
	"github.com/mmcdole/shelf/internal/tui/components"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateDetail
	StateConfirmDelete
	StateHelp
)

// Layout
const (
	headerHeight = 3 // Title, genre bar, recommendations
	footerHeight = 2 // Area status, prompt/status
)

// statusAreas are the areas reported in the footer, in display order
var statusAreas = []domain.Area{
	domain.AreaSearch,
	domain.AreaRecommendations,
	domain.AreaCategories,
	domain.AreaDetail,
}

// Opener opens a URL outside the terminal
type Opener interface {
	Launch(url string) error
}

// Options configures the model
type Options struct {
	RecommendationLimit int
	DefaultGenre        string
	Opener              Opener // nil disables opening cover images
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	Store  *catalog.CatalogStore
	Images catalog.ImageResolver
	Logger *slog.Logger
	Keys   KeyMap

	// UI Components
	Genres  components.GenreBar
	List    components.BookList
	Input   components.InputModal
	Spinner spinner.Model

	// Data
	Recommended []domain.Book
	Categories  []domain.Category
	Detail      *domain.Book
	Filter      domain.Filter // Last server-side filter
	pending     *domain.Book  // Awaiting delete confirmation

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg   string
	StatusIsErr bool
	statusSeq   int

	opts Options
}

// NewModel creates a new application model
func NewModel(store *catalog.CatalogStore, images catalog.ImageResolver, opts Options, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RecommendationLimit <= 0 {
		opts.RecommendationLimit = domain.DefaultRecommendationLimit
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	m := Model{
		State:       StateBrowsing,
		Store:       store,
		Images:      images,
		Logger:      logger,
		Keys:        DefaultKeyMap(),
		Genres:      components.NewGenreBar(),
		List:        components.NewBookList(),
		Input:       components.NewInputModal(),
		Spinner:     sp,
		Categories:  store.Categories(),
		Recommended: store.Recommended(),
		opts:        opts,
	}

	// Show any primed snapshot while the first load is in flight
	m.refreshGenres()
	if opts.DefaultGenre != "" {
		m.Genres.Select(opts.DefaultGenre)
	}
	m.refreshList()
	return m
}

// Init starts the initial loads
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		LoadBooksCmd(m.Store, m.Filter),
		LandingCmd(m.Store, m.opts.RecommendationLimit),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case BooksLoadedMsg:
		if msg.Stale {
			return m, nil
		}
		if msg.Err != nil {
			m.Logger.Error("load failed", "error", msg.Err)
			return m, nil // Area status carries the error
		}
		m.Filter = msg.Filter
		m.refreshGenres()
		m.refreshList()
		return m, nil

	case LandingLoadedMsg:
		res := msg.Result
		if res.RecommendationsErr == nil {
			m.Recommended = res.Recommendations
		}
		// An overtaken response carries old data
		if !errors.Is(res.CategoriesErr, domain.ErrStale) && len(res.Categories) > 0 {
			m.Categories = res.Categories
		}
		return m, nil

	case BookFetchedMsg:
		if msg.Err != nil {
			if m.State == StateDetail && m.Detail != nil && m.Detail.ID == msg.ID && domain.IsNotFound(msg.Err) {
				m.State = StateBrowsing
				m.Detail = nil
			}
			return m, m.setStatus(msg.Err.Error(), true)
		}
		if m.Detail != nil && m.Detail.ID == msg.ID {
			book := msg.Book
			m.Detail = &book
		}
		return m, nil

	case BookRemovedMsg:
		if msg.Err != nil {
			return m, m.setStatus(msg.Err.Error(), true)
		}
		if m.Detail != nil && m.Detail.ID == msg.ID {
			m.Detail = nil
			m.State = StateBrowsing
		}
		return m, tea.Batch(
			m.setStatus(msg.Outcome.String(), false),
			LoadBooksCmd(m.Store, m.Filter),
		)

	case BookSavedMsg:
		if msg.Err != nil {
			return m, m.setStatus("Failed to save the book: "+msg.Err.Error(), true)
		}
		return m, m.setStatus("Book saved", false)

	case ImageOpenedMsg:
		if msg.Err != nil {
			m.Logger.Warn("failed to open image", "url", msg.URL, "error", msg.Err)
			return m, m.setStatus("Could not open image: "+msg.Err.Error(), true)
		}
		return m, nil

	case ClearStatusMsg:
		if msg.Seq == m.statusSeq {
			m.StatusMsg = ""
			m.StatusIsErr = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.Input.IsVisible() {
		return m.handleInput(msg)
	}

	switch m.State {
	case StateHelp:
		m.State = StateBrowsing
		return m, nil

	case StateConfirmDelete:
		switch {
		case key.Matches(msg, m.Keys.Confirm):
			book := m.pending
			m.pending = nil
			m.State = StateBrowsing
			if m.Detail != nil {
				m.State = StateDetail
			}
			if book == nil {
				return m, nil
			}
			return m, RemoveBookCmd(m.Store, book.ID)
		case key.Matches(msg, m.Keys.Deny):
			m.pending = nil
			m.State = StateBrowsing
			if m.Detail != nil {
				m.State = StateDetail
			}
		}
		return m, nil

	case StateDetail:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Back):
			m.State = StateBrowsing
			m.Detail = nil
		case key.Matches(msg, m.Keys.Delete):
			if m.Detail != nil {
				book := *m.Detail
				m.pending = &book
				m.State = StateConfirmDelete
			}
		case key.Matches(msg, m.Keys.Save):
			if m.Detail != nil {
				return m, SaveBookCmd(m.Store, *m.Detail)
			}
		case key.Matches(msg, m.Keys.OpenImage):
			if m.Detail != nil && m.opts.Opener != nil {
				return m, OpenImageCmd(m.opts.Opener, m.Images.URL(*m.Detail))
			}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.State = StateHelp
	case key.Matches(msg, m.Keys.Up):
		m.List.MoveUp()
	case key.Matches(msg, m.Keys.Down):
		m.List.MoveDown()
	case key.Matches(msg, m.Keys.Home):
		m.List.Top()
	case key.Matches(msg, m.Keys.End):
		m.List.Bottom()
	case key.Matches(msg, m.Keys.NextGenre):
		m.Genres.Next()
		m.refreshList()
	case key.Matches(msg, m.Keys.PrevGenre):
		m.Genres.Prev()
		m.refreshList()
	case key.Matches(msg, m.Keys.Filter):
		m.Input.Show()
	case key.Matches(msg, m.Keys.Back):
		// Drop a local filter, then a server search
		if m.Input.Value() != "" {
			m.Input.Reset()
			m.refreshList()
		} else if !m.Filter.IsEmpty() {
			return m, LoadBooksCmd(m.Store, domain.Filter{})
		}
	case key.Matches(msg, m.Keys.Enter):
		if r, ok := m.List.Selected(); ok {
			// Show the last fetched copy while the fresh one loads
			book := r.Book
			if cached, ok := m.Store.Cached(book.ID); ok {
				book = cached
			}
			m.Detail = &book
			m.State = StateDetail
			return m, FetchBookCmd(m.Store, book.ID)
		}
	case key.Matches(msg, m.Keys.Delete):
		if r, ok := m.List.Selected(); ok {
			book := r.Book
			m.pending = &book
			m.State = StateConfirmDelete
		}
	case key.Matches(msg, m.Keys.Refresh):
		m.Store.Invalidate()
		return m, tea.Batch(
			LoadBooksCmd(m.Store, m.Filter),
			LandingCmd(m.Store, m.opts.RecommendationLimit),
		)
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var (
		cmd   tea.Cmd
		event components.InputEvent
	)
	m.Input, cmd, event = m.Input.Update(msg)

	switch event {
	case components.InputChanged, components.InputFieldCycled:
		m.refreshList()
	case components.InputCancelled:
		m.Input.Reset()
		m.refreshList()
	case components.InputSubmitted:
		filter := domain.FilterFor(m.Input.Field(), m.Input.Value(), domain.AllGenres)
		m.Input.Hide()
		m.Input.Reset()
		m.refreshList()
		return m, LoadBooksCmd(m.Store, filter)
	}
	return m, cmd
}

// refreshGenres rebuilds the genre bar from the collection
func (m *Model) refreshGenres() {
	m.Genres.SetGenres(m.Store.DistinctGenres())
}

// refreshList applies the genre and the local filter to the collection
func (m *Model) refreshList() {
	books := m.Store.FilterByGenre(m.Genres.Selected())
	m.List.SetItems(search.Filter(books, m.Input.Value(), m.Input.Field()))
}

func (m *Model) updateLayout() {
	m.Genres.SetWidth(m.Width)
	m.List.SetSize(m.Width, m.Height-headerHeight-footerHeight)
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return ClearStatusCmd(m.statusSeq)
}

// View renders the UI
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return m.renderHelp()
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("shelf")+"  "+styles.DimStyle.Render(m.renderFilterSummary()),
		m.Genres.View(),
		m.renderRecommendations(),
	)

	var body string
	if (m.State == StateDetail || m.State == StateConfirmDelete) && m.Detail != nil {
		body = m.renderDetail()
	} else {
		body = m.List.View(m.emptyMessage())
	}

	bodyHeight := m.Height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderFilterSummary() string {
	var parts []string
	if m.Filter.Title != "" {
		parts = append(parts, "title:"+m.Filter.Title)
	}
	if m.Filter.Author != "" {
		parts = append(parts, "author:"+m.Filter.Author)
	}
	if m.Filter.ID != "" {
		parts = append(parts, "id:"+m.Filter.ID)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d books", m.List.Len())
	}
	return fmt.Sprintf("%d results for %s", m.List.Len(), strings.Join(parts, " "))
}

func (m Model) renderRecommendations() string {
	if len(m.Recommended) == 0 {
		return styles.DimStyle.Render("No recommendations")
	}
	titles := make([]string, len(m.Recommended))
	for i, b := range m.Recommended {
		titles[i] = b.Title
	}
	const label = "Recommended: "
	return styles.AccentStyle.Render(label) + styles.Truncate(strings.Join(titles, " · "), m.Width-len(label))
}

func (m Model) emptyMessage() string {
	if st := m.Store.Status(domain.AreaSearch); st.InFlight {
		return "Loading books..."
	}
	if m.Input.Value() != "" {
		return "No matches"
	}
	return "No books found"
}

func (m Model) renderDetail() string {
	b := m.Detail

	lines := []string{
		styles.TitleStyle.Render(b.Title),
		styles.SubtitleStyle.Render(b.Byline()),
		"",
	}
	field := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, styles.DimStyle.Render(fmt.Sprintf("%-10s", label))+value)
	}
	field("Genre", b.Genre)
	if b.PublishedYear > 0 {
		field("Published", fmt.Sprintf("%d", b.PublishedYear))
	}
	field("Rating", b.FormattedRating())
	field("ID", b.ID)
	field("Image", m.Images.URL(*b))

	if b.Description != "" {
		width := m.Width - 8
		if width < 20 {
			width = 20
		}
		lines = append(lines, "", lipgloss.NewStyle().Width(width).Render(b.Description))
	}

	return styles.DetailStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	var areas []string
	for _, area := range statusAreas {
		st := m.Store.Status(area)
		switch {
		case st.InFlight:
			areas = append(areas, m.Spinner.View()+" "+string(area))
		case st.Err != nil:
			areas = append(areas, styles.ErrorStyle.Render("✗ "+string(area)+": "+st.Err.Error()))
		}
	}
	statusLine := strings.Join(areas, "  ")

	var prompt string
	switch {
	case m.State == StateConfirmDelete && m.pending != nil:
		prompt = styles.ErrorStyle.Render(fmt.Sprintf("Delete %q? ", m.pending.Title)) +
			styles.HelpKeyStyle.Render("y") + styles.HelpDescStyle.Render("/") + styles.HelpKeyStyle.Render("n")
	case m.Input.IsVisible():
		prompt = m.Input.View()
	case m.StatusMsg != "":
		if m.StatusIsErr {
			prompt = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			prompt = styles.SuccessStyle.Render(m.StatusMsg)
		}
	default:
		prompt = styles.HelpDescStyle.Render("/ filter  enter details  d delete  r reload  ? help  q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusLine,
		prompt,
	)
}

func (m Model) renderHelp() string {
	var lines []string
	lines = append(lines, styles.TitleStyle.Render("Keys"), "")
	for _, b := range m.Keys.HelpBindings() {
		h := b.Help()
		lines = append(lines, styles.HelpKeyStyle.Render(fmt.Sprintf("%-10s", h.Key))+styles.HelpDescStyle.Render(h.Desc))
	}
	lines = append(lines, "", styles.DimStyle.Render("In the filter prompt: tab cycles title/author/id, enter searches the server"))

	if len(m.Categories) > 0 {
		names := make([]string, len(m.Categories))
		for i, c := range m.Categories {
			names[i] = c.Name
		}
		lines = append(lines, "", styles.AccentStyle.Render("Categories: ")+strings.Join(names, ", "))
	}
	return styles.ModalStyle.Render(strings.Join(lines, "\n"))
}
