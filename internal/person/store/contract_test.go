package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"vetclinic/internal/person/models"
	"vetclinic/pkg/platform/sentinel"
)

// registry is the surface every backend implements.
type registry interface {
	Create(ctx context.Context, draft models.Draft) (*models.Person, error)
	FindByID(ctx context.Context, id int64) (*models.Person, error)
	Update(ctx context.Context, id int64, mutate func(*models.Person) error) (*models.Person, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q models.ListQuery) ([]models.Person, error)
	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context, people []models.Person) error
	Ping(ctx context.Context) error
}

// registryFactory returns an empty registry with the given policy.
type registryFactory func(t *testing.T, policy models.IDPolicy) registry

// RegistryContractSuite holds the behaviour every backend must share.
type RegistryContractSuite struct {
	suite.Suite
	factory registryFactory
	store   registry
	ctx     context.Context
}

func (s *RegistryContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.factory(s.T(), models.IDPolicyReuse)
}

func (s *RegistryContractSuite) create(id *int64, name string) *models.Person {
	draft, err := models.NewDraft(id, name)
	s.Require().NoError(err)
	p, err := s.store.Create(s.ctx, draft)
	s.Require().NoError(err)
	return p
}

func explicit(id int64) *int64 {
	return &id
}

func listQuery(size *int, sort models.SortDirection) models.ListQuery {
	return models.ListQuery{Size: size, Sort: sort}
}

func sizeOf(n int) *int {
	return &n
}

func personIDs(people []models.Person) []int64 {
	out := make([]int64, 0, len(people))
	for _, p := range people {
		out = append(out, p.ID)
	}
	return out
}

func (s *RegistryContractSuite) TestCreate() {
	s.Run("generates an id when none is given", func() {
		p := s.create(nil, "John")
		s.Positive(p.ID)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("John", found.Name)
	})

	s.Run("keeps an explicit id", func() {
		p := s.create(explicit(100), "Alex")
		s.Equal(int64(100), p.ID)

		found, err := s.store.FindByID(s.ctx, 100)
		s.Require().NoError(err)
		s.Equal(int64(100), found.ID)
		s.Equal("Alex", found.Name)
	})

	s.Run("rejects an occupied explicit id", func() {
		draft, err := models.NewDraft(explicit(100), "Impostor")
		s.Require().NoError(err)
		_, err = s.store.Create(s.ctx, draft)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, 100)
		s.Require().NoError(err)
		s.Equal("Alex", found.Name)
	})

	s.Run("generated ids move past explicit ones", func() {
		p := s.create(nil, "After Alex")
		s.Greater(p.ID, int64(100))
	})
}

func (s *RegistryContractSuite) TestGeneratedIDsContinuePastLargestExplicitID() {
	top := s.create(explicit(models.MaxExplicitID), "Far Away")
	s.Equal(models.MaxExplicitID, top.ID)

	next := s.create(nil, "Next")
	s.Equal(models.MaxExplicitID+1, next.ID)

	found, err := s.store.FindByID(s.ctx, next.ID)
	s.Require().NoError(err)
	s.Equal("Next", found.Name)

	people, err := s.store.List(s.ctx, listQuery(nil, models.SortDesc))
	s.Require().NoError(err)
	s.Equal([]int64{models.MaxExplicitID + 1, models.MaxExplicitID}, personIDs(people))
}

func (s *RegistryContractSuite) TestGeneratedIDsAreNeverReused() {
	first := s.create(nil, "Temp")
	s.Require().NoError(s.store.Delete(s.ctx, first.ID))

	second := s.create(nil, "Next")
	s.Greater(second.ID, first.ID)
}

func (s *RegistryContractSuite) TestFindByIDMissing() {
	_, err := s.store.FindByID(s.ctx, 99999)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RegistryContractSuite) TestUpdate() {
	s.Run("changes only the name", func() {
		p := s.create(explicit(5), "John")

		updated, err := s.store.Update(s.ctx, p.ID, func(p *models.Person) error {
			return p.Rename("Michael")
		})
		s.Require().NoError(err)
		s.Equal(int64(5), updated.ID)
		s.Equal("Michael", updated.Name)

		found, err := s.store.FindByID(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal("Michael", found.Name)
	})

	s.Run("cannot change the id", func() {
		updated, err := s.store.Update(s.ctx, 5, func(p *models.Person) error {
			p.ID = 6
			return nil
		})
		s.Require().NoError(err)
		s.Equal(int64(5), updated.ID)

		_, err = s.store.FindByID(s.ctx, 6)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for missing id", func() {
		_, err := s.store.Update(s.ctx, 99999, func(p *models.Person) error {
			return p.Rename("NonExistent")
		})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("does not persist when mutate fails", func() {
		boom := errors.New("boom")
		_, err := s.store.Update(s.ctx, 5, func(p *models.Person) error {
			p.Name = "Half Applied"
			return boom
		})
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal("Michael", found.Name)
	})
}

func (s *RegistryContractSuite) TestDelete() {
	s.Run("removes the person", func() {
		p := s.create(explicit(500), "TestUser")
		s.Require().NoError(s.store.Delete(s.ctx, p.ID))

		_, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for missing id", func() {
		s.Require().ErrorIs(s.store.Delete(s.ctx, 99999), sentinel.ErrNotFound)
	})

	s.Run("reuse policy lets an explicit create reclaim the id", func() {
		p := s.create(explicit(500), "Reborn")
		s.Equal(int64(500), p.ID)
	})
}

func (s *RegistryContractSuite) TestRetirePolicy() {
	store := s.factory(s.T(), models.IDPolicyRetire)

	draft, err := models.NewDraft(explicit(42), "Once")
	s.Require().NoError(err)
	_, err = store.Create(s.ctx, draft)
	s.Require().NoError(err)
	s.Require().NoError(store.Delete(s.ctx, 42))

	_, err = store.Create(s.ctx, draft)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *RegistryContractSuite) TestList() {
	for _, id := range []int64{5, 1, 100, 2} {
		s.create(explicit(id), "Person")
	}

	s.Run("orders ascending by default", func() {
		people, err := s.store.List(s.ctx, listQuery(nil, models.SortAsc))
		s.Require().NoError(err)
		s.Equal([]int64{1, 2, 5, 100}, personIDs(people))
	})

	s.Run("truncates to size", func() {
		people, err := s.store.List(s.ctx, listQuery(sizeOf(2), models.SortAsc))
		s.Require().NoError(err)
		s.Equal([]int64{1, 2}, personIDs(people))
	})

	s.Run("size beyond collection returns all", func() {
		people, err := s.store.List(s.ctx, listQuery(sizeOf(100), models.SortAsc))
		s.Require().NoError(err)
		s.Len(people, 4)
	})

	s.Run("descending reverses the order", func() {
		people, err := s.store.List(s.ctx, listQuery(sizeOf(100), models.SortDesc))
		s.Require().NoError(err)
		s.Equal([]int64{100, 5, 2, 1}, personIDs(people))
	})

	s.Run("descending with size takes the highest ids", func() {
		people, err := s.store.List(s.ctx, listQuery(sizeOf(2), models.SortDesc))
		s.Require().NoError(err)
		s.Equal([]int64{100, 5}, personIDs(people))
	})

	s.Run("zero size returns nothing", func() {
		people, err := s.store.List(s.ctx, listQuery(sizeOf(0), models.SortAsc))
		s.Require().NoError(err)
		s.Empty(people)
	})

	s.Run("count matches", func() {
		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(4, n)
	})
}

func (s *RegistryContractSuite) TestSeed() {
	err := s.store.Seed(s.ctx, []models.Person{
		{ID: 2, Name: "Michael"},
		{ID: 5, Name: "John"},
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("Michael", found.Name)

	p := s.create(nil, "Generated")
	s.Greater(p.ID, int64(5))

	s.Require().NoError(s.store.Seed(s.ctx, []models.Person{{ID: 2, Name: "Renamed"}}))
	found, err = s.store.FindByID(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("Renamed", found.Name)
}

func (s *RegistryContractSuite) TestConcurrentCreatesGetDistinctIDs() {
	const goroutines = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines)
	errs := make(chan error, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft, err := models.NewDraft(nil, "Concurrent")
			if err != nil {
				errs <- err
				return
			}
			p, err := s.store.Create(s.ctx, draft)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			seen[p.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	s.Len(seen, goroutines, "every create should receive its own id")
}

func (s *RegistryContractSuite) TestConcurrentExplicitCreatesSingleWinner() {
	const goroutines = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts int

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft, _ := models.NewDraft(explicit(777), "Contender")
			_, err := s.store.Create(s.ctx, draft)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, sentinel.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins, "exactly one create should succeed")
	s.Equal(goroutines-1, conflicts, "all others should conflict")
}

func (s *RegistryContractSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
