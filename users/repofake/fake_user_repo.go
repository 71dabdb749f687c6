package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/forcerank/forcerank/users"
)

var _ users.Repository = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Repository for tests and dev mode.
// Percentile ranks are computed from the stored population unless RankFn is
// set. CreateCalls and RankCalls count repository round trips so tests can
// assert that cached paths stay repository-free.
type FakeUserRepo struct {
	records map[string]*users.UserRecord // username -> record
	nextID  int64
	lock    sync.RWMutex

	RankFn      func(points int) int
	CreateCalls int
	RankCalls   int
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		records: make(map[string]*users.UserRecord),
		nextID:  1,
	}
}

func (ur *FakeUserRepo) CreateOrGetUserRecord(_ context.Context, username, _ string) (*users.UserRecord, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.CreateCalls++
	if record, ok := ur.records[username]; ok {
		copied := *record
		return &copied, nil
	}

	record := &users.UserRecord{ID: ur.nextID}
	ur.nextID++
	ur.records[username] = record

	copied := *record
	return &copied, nil
}

func (ur *FakeUserRepo) PercentileRank(_ context.Context, points int) (int, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.RankCalls++
	if ur.RankFn != nil {
		return ur.RankFn(points), nil
	}

	if len(ur.records) == 0 {
		return 0, nil
	}

	below := 0
	for _, record := range ur.records {
		if record.Points < points {
			below++
		}
	}
	return below * 100 / len(ur.records), nil
}

// Seed installs a record with a fixed ID and point total.
func (ur *FakeUserRepo) Seed(username string, record users.UserRecord) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	copied := record
	ur.records[username] = &copied
	if record.ID >= ur.nextID {
		ur.nextID = record.ID + 1
	}
}

// SetPoints seeds or overwrites a record's point total.
func (ur *FakeUserRepo) SetPoints(username string, points int) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if record, ok := ur.records[username]; ok {
		record.Points = points
		return
	}
	ur.records[username] = &users.UserRecord{ID: ur.nextID, Points: points}
	ur.nextID++
}
