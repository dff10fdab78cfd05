package domain

// Area names a logical region of the catalog view. Each area keeps its own
// current data, in-flight flag and last error.
type Area string

const (
	AreaSearch          Area = "search"
	AreaRecommendations Area = "recommendations"
	AreaCategories      Area = "categories"
	AreaSubmit          Area = "submit"
	AreaDetail          Area = "detail"
)

// Store handles the snapshot cache (memory, optionally backed by BoltDB).
type Store interface {
	// === Collections ===
	GetBooks(area Area) ([]Book, bool)
	SaveBooks(area Area, books []Book) error

	// === Categories ===
	GetCategories() ([]Category, bool)
	SaveCategories(categories []Category) error

	// === Single records ===
	GetBook(id string) (Book, bool)
	SaveBook(book Book) error
	InvalidateBook(id string)

	// === Invalidation ===
	InvalidateArea(area Area)
	InvalidateAll()

	Close() error
}
