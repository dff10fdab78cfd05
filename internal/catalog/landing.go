package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/shelf/internal/domain"
)

// LandingResult holds the independently settled areas of the landing view
type LandingResult struct {
	Recommendations    []domain.Book
	RecommendationsErr error
	Categories         []domain.Category
	CategoriesErr      error
}

// Landing loads recommendations and categories concurrently. A failure in
// one area does not cancel or clear the other.
func (s *CatalogStore) Landing(ctx context.Context, limit int) LandingResult {
	var (
		res LandingResult
		g   errgroup.Group
	)

	g.Go(func() error {
		res.Recommendations, res.RecommendationsErr = s.LoadRecommendations(ctx, limit)
		return nil
	})
	g.Go(func() error {
		res.Categories, res.CategoriesErr = s.LoadCategories(ctx)
		return nil
	})
	_ = g.Wait()

	return res
}
