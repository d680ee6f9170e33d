package catalog

import (
	"context"
	"log/slog"
	"time"

	"nuam/internal"
	"nuam/internal/storage"
)

type SeedResult struct {
	Created int
	Updated int
	Total   int
}

type SeedService struct {
	db  *storage.DB
	log *slog.Logger
}

func NewSeedService(db *storage.DB, log *slog.Logger) *SeedService {
	return &SeedService{db: db, log: log}
}

// SeedCountries creates or refreshes the reference countries.
func (s *SeedService) SeedCountries(ctx context.Context) (SeedResult, error) {
	return s.Seed(ctx, DefaultCountries())
}

func (s *SeedService) Seed(ctx context.Context, countries []internal.Country) (SeedResult, error) {
	var res SeedResult
	for _, c := range countries {
		created, err := s.db.UpsertCountry(ctx, c)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
			s.log.Info("country created", "code", c.Code, "name", c.Name)
		} else {
			res.Updated++
			s.log.Info("country updated", "code", c.Code, "name", c.Name)
		}
	}

	all, err := s.db.ListCountries(ctx)
	if err != nil {
		return res, err
	}
	res.Total = len(all)
	_ = s.db.SetMetadata("countries.last_seed", time.Now().UTC().Format(time.RFC3339))
	return res, nil
}
