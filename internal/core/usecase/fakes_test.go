package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testClock() time.Time { return testNow }

var testRates = domain.Rates{Official: dec("6.96"), Parallel: dec("10.5"), AsOf: testNow, Source: "test"}

func unitRecord(id domain.RecordID, parent domain.RecordID) domain.PropertyRecord {
	floor := 7
	rec := domain.PropertyRecord{
		ID:                id,
		Title:             "Departamento en Equipetrol",
		ProjectName:       "Torre Sirari",
		PublishedPrice:    dec("150000"),
		QuotingRegime:     domain.RegimeOfficialUSD,
		CanonicalPriceUSD: dec("150000"),
		Area:              dec("85"),
		Bedrooms:          3,
		Bathrooms:         dec("2"),
		Floor:             &floor,
		Parking:           domain.NewInclusion(domain.InclusionIncluded, nil),
		Storage:           domain.NewInclusion(domain.InclusionUnconfirmed, nil),
		ConstructionState: domain.ConstructionUnderConstruction,
		Amenities:         []string{"Piscina"},
		UpdatedAt:         testNow.Add(-time.Hour),
	}
	if parent != "" {
		rec.ParentID = &parent
	}
	return rec
}

// memStorage - хранилище в памяти с той же проверкой версии, что и у настоящих адаптеров
type memStorage struct {
	mu       sync.Mutex
	records  map[domain.RecordID]domain.PropertyRecord
	failOn   map[domain.RecordID]error
	saves    int
	tick     time.Duration
	lastSave domain.SaveBundle
}

func newMemStorage(records ...domain.PropertyRecord) *memStorage {
	s := &memStorage{
		records: make(map[domain.RecordID]domain.PropertyRecord),
		failOn:  make(map[domain.RecordID]error),
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStorage) LoadRecord(_ context.Context, id domain.RecordID) (*domain.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (s *memStorage) SaveEdit(_ context.Context, bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(bundle)
}

func (s *memStorage) saveLocked(bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	current, ok := s.records[bundle.Record.ID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	if !current.UpdatedAt.Equal(bundle.ExpectedUpdatedAt) {
		return nil, domain.ErrStaleSnapshot
	}
	s.tick += time.Second
	rec := bundle.Record.Clone()
	rec.UpdatedAt = testNow.Add(s.tick)
	s.records[rec.ID] = rec
	s.saves++
	s.lastSave = bundle
	out := rec.Clone()
	return &out, nil
}

func (s *memStorage) ListChildren(_ context.Context, parentID domain.RecordID) ([]domain.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PropertyRecord
	for _, r := range s.records {
		if r.ParentID != nil && *r.ParentID == parentID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStorage) ApplyPropagation(_ context.Context, childID domain.RecordID, apply port.PropagationApplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[childID]; err != nil {
		return err
	}
	rec, ok := s.records[childID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	bundle, err := apply(rec.Clone())
	if err != nil || bundle == nil {
		return err
	}
	_, err = s.saveLocked(*bundle)
	return err
}

func (s *memStorage) GetAuditLog(_ context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	log := rec.AuditLog
	if offset >= len(log) {
		return []domain.ChangeRecord{}, nil
	}
	end := offset + limit
	if end > len(log) {
		end = len(log)
	}
	return log[offset:end], nil
}

func (s *memStorage) UpsertRecord(_ context.Context, rec domain.PropertyRecord, merge port.ImportMerger) (*domain.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stored *domain.PropertyRecord
	if current, ok := s.records[rec.ID]; ok {
		c := current.Clone()
		stored = &c
	}
	merged, err := merge(stored, rec)
	if err != nil {
		return nil, err
	}
	s.tick += time.Second
	merged.UpdatedAt = testNow.Add(s.tick)
	if stored != nil {
		merged.LockedFields = stored.LockedFields
		merged.AuditLog = stored.AuditLog
	}
	s.records[merged.ID] = merged
	out := merged.Clone()
	return &out, nil
}

type staticRates struct {
	rates domain.Rates
	err   error
}

func (s staticRates) CurrentRates(context.Context) (domain.Rates, error) {
	return s.rates, s.err
}

type recordingReporter struct {
	summaries []domain.PropagationSummary
	err       error
}

func (r *recordingReporter) ReportPropagation(_ context.Context, summary domain.PropagationSummary) error {
	r.summaries = append(r.summaries, summary)
	return r.err
}

type fakeProvider struct {
	rates domain.Rates
	err   error
	calls int
}

func (p *fakeProvider) FetchRates(context.Context) (domain.Rates, error) {
	p.calls++
	return p.rates, p.err
}

type memRateStorage struct {
	latest *domain.Rates
	err    error
}

func (m *memRateStorage) SaveRates(_ context.Context, rates domain.Rates) error {
	if m.err != nil {
		return m.err
	}
	m.latest = &rates
	return nil
}

func (m *memRateStorage) LatestRates(context.Context) (*domain.Rates, error) {
	return m.latest, m.err
}

type mapCache struct {
	rates *domain.Rates
}

func (c *mapCache) Get() (domain.Rates, bool) {
	if c.rates == nil {
		return domain.Rates{}, false
	}
	return *c.rates, true
}

func (c *mapCache) Set(r domain.Rates) { c.rates = &r }

var errBoom = errors.New("boom")
