package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/observability"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
)

var serviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const reasonNoOutcome = "store reported no outcome for item"

type SeederConfig struct {
	ServiceTable        string
	VersionTable        string
	ChunkSize           int
	Concurrency         int
	LatestVersionPolicy string
	LatestVersion       string
}

func SeederConfigFrom(cfg config.Config) SeederConfig {
	return SeederConfig{
		ServiceTable:        cfg.TableName(domain.TableServiceInfo),
		VersionTable:        cfg.TableName(domain.TableVersionInfo),
		ChunkSize:           cfg.Seed.ChunkSize,
		Concurrency:         cfg.Seed.Concurrency,
		LatestVersionPolicy: cfg.Seed.LatestVersionPolicy,
		LatestVersion:       cfg.Seed.LatestVersion,
	}
}

// Seeder writes a service catalog into the service and version tables.
// Writes are best-effort: every item's outcome is reported, nothing is
// rolled back.
type Seeder struct {
	Store     RegistryWriter
	Documents DocumentVerifier

	cfg    SeederConfig
	clock  func() time.Time
	logger zerolog.Logger
}

// Records is every row derived from one catalog.
type Records struct {
	Services []domain.ServiceRecord
	Versions []domain.VersionRecord
}

func NewSeeder(store RegistryWriter, cfg SeederConfig, logger zerolog.Logger) (*Seeder, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: registry store is required", domain.ErrConfig)
	}
	if cfg.ServiceTable == "" || cfg.VersionTable == "" {
		return nil, fmt.Errorf("%w: service and version table names are required", domain.ErrConfig)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConcurrency
	}
	if cfg.LatestVersionPolicy == "" {
		cfg.LatestVersionPolicy = config.LatestVersionFixed
	}
	if cfg.LatestVersion == "" {
		cfg.LatestVersion = config.DefaultLatestVersion
	}
	switch cfg.LatestVersionPolicy {
	case config.LatestVersionFixed, config.LatestVersionHighest:
	default:
		return nil, fmt.Errorf("%w: unsupported latest version policy %q", domain.ErrConfig, cfg.LatestVersionPolicy)
	}
	return &Seeder{
		Store:  store,
		cfg:    cfg,
		clock:  time.Now,
		logger: logger,
	}, nil
}

func (s *Seeder) WithClock(clock func() time.Time) *Seeder {
	if s == nil {
		return nil
	}
	s.clock = clock
	return s
}

func (s *Seeder) WithDocumentVerifier(verifier DocumentVerifier) *Seeder {
	if s == nil {
		return nil
	}
	s.Documents = verifier
	return s
}

// Seed validates the whole catalog, then writes one service row per entry
// and one version row per entry version. An invalid catalog writes nothing.
// Failed items are listed in both the report and the returned *domain.SeedError.
func (s *Seeder) Seed(ctx context.Context, catalog []domain.CatalogEntry) (domain.SeedReport, error) {
	return s.run(ctx, catalog, nil)
}

// Retry rewrites only the items that failed in previous. Records are rebuilt
// from the full catalog so the service rows carry the same latest version as
// a full run would.
func (s *Seeder) Retry(ctx context.Context, catalog []domain.CatalogEntry, previous domain.SeedReport) (domain.SeedReport, error) {
	failed := previous.FailedKeys()
	if len(failed) == 0 {
		return s.emptyReport(), nil
	}
	return s.run(ctx, catalog, failed)
}

func (s *Seeder) run(ctx context.Context, catalog []domain.CatalogEntry, only map[domain.ItemKey]bool) (domain.SeedReport, error) {
	if s == nil || s.Store == nil {
		return domain.SeedReport{}, fmt.Errorf("%w: seeder is not configured", domain.ErrConfig)
	}
	if err := s.Validate(ctx, catalog); err != nil {
		s.logger.Error().Err(err).Int("entries", len(catalog)).Msg("catalog rejected")
		return domain.SeedReport{}, err
	}

	records := s.BuildRecords(catalog, s.clock())
	names := make(map[string]string, len(records.Services))
	services := make([]domain.Item, 0, len(records.Services))
	for _, rec := range records.Services {
		names[rec.ID] = rec.ServiceName
		if only == nil || only[rec.ItemKey()] {
			services = append(services, rec)
		}
	}
	versions := make([]domain.Item, 0, len(records.Versions))
	for _, rec := range records.Versions {
		if only == nil || only[rec.ItemKey()] {
			versions = append(versions, rec)
		}
	}

	report, cause := s.write(ctx, services, versions)
	annotateNames(report.Services.Failed, names)
	annotateNames(report.Versions.Failed, names)

	failures := report.Failures()
	s.logger.Info().
		Str("service_table", s.cfg.ServiceTable).
		Str("version_table", s.cfg.VersionTable).
		Int("services_written", len(report.Services.Succeeded)).
		Int("versions_written", len(report.Versions.Succeeded)).
		Int("failed", len(failures)).
		Bool("retry", only != nil).
		Msg("seed finished")
	if len(failures) == 0 {
		return report, nil
	}

	seedErr := &domain.SeedError{Failures: failures, Cause: cause}
	if err := ctx.Err(); err != nil {
		seedErr.Cancelled = true
		seedErr.Cause = err
	}
	for _, f := range failures {
		s.logger.Warn().
			Str("table", f.Table).
			Str("service", f.ServiceName).
			Str("service_id", f.Key.ServiceID).
			Str("version", f.Key.Version).
			Str("reason", f.Reason).
			Msg("item not written")
	}
	return report, seedErr
}

// Validate reports every invalid entry of catalog at once. Document checks
// run only when the catalog is structurally valid and a verifier is set.
func (s *Seeder) Validate(ctx context.Context, catalog []domain.CatalogEntry) error {
	var problems []domain.EntryError
	seen := make(map[string]int, len(catalog))
	for i, entry := range catalog {
		name := entry.Name
		switch {
		case strings.TrimSpace(name) == "":
			problems = append(problems, domain.EntryError{Index: i, Name: name, Reason: "name is empty"})
		case !serviceNamePattern.MatchString(name):
			problems = append(problems, domain.EntryError{Index: i, Name: name, Reason: "name may only contain letters, digits, '-' and '_'"})
		default:
			if first, ok := seen[name]; ok {
				problems = append(problems, domain.EntryError{Index: i, Name: name, Reason: fmt.Sprintf("duplicate of entry[%d]", first)})
			} else {
				seen[name] = i
			}
		}

		versions := make(map[string]bool, len(entry.Versions))
		for _, v := range entry.Versions {
			switch {
			case strings.TrimSpace(v.Version) == "":
				problems = append(problems, domain.EntryError{Index: i, Name: name, Reason: "version is empty"})
			case versions[v.Version]:
				problems = append(problems, domain.EntryError{Index: i, Name: name, Version: v.Version, Reason: "duplicate version"})
			case strings.TrimSpace(v.DocumentPath) == "":
				problems = append(problems, domain.EntryError{Index: i, Name: name, Version: v.Version, Reason: "document path is empty"})
			}
			versions[v.Version] = true
		}
	}
	if len(problems) == 0 && s.Documents != nil {
		problems = s.verifyDocuments(ctx, catalog)
	}
	if len(problems) > 0 {
		return &domain.InvalidCatalogError{Entries: problems}
	}
	return nil
}

// verifyDocuments stops early on cancellation; the write phase then reports
// every item as cancelled.
func (s *Seeder) verifyDocuments(ctx context.Context, catalog []domain.CatalogEntry) []domain.EntryError {
	var problems []domain.EntryError
	for i, entry := range catalog {
		for _, v := range entry.Versions {
			if ctx.Err() != nil {
				return problems
			}
			if err := s.Documents.Verify(ctx, v.DocumentPath); err != nil {
				problems = append(problems, domain.EntryError{Index: i, Name: entry.Name, Version: v.Version, Reason: err.Error()})
			}
		}
	}
	return problems
}

// BuildRecords derives the rows for catalog without touching the store.
func (s *Seeder) BuildRecords(catalog []domain.CatalogEntry, now time.Time) Records {
	stamp := now.UnixMilli()
	out := Records{Services: make([]domain.ServiceRecord, 0, len(catalog))}
	for _, entry := range catalog {
		id := StableID(entry.Name)
		out.Services = append(out.Services, domain.ServiceRecord{
			ID:            id,
			ServiceName:   entry.Name,
			LatestVersion: s.latestVersion(entry),
			LastUpdated:   stamp,
		})
		for _, v := range entry.Versions {
			out.Versions = append(out.Versions, domain.VersionRecord{
				ServiceID:    id,
				Version:      v.Version,
				DocumentPath: v.DocumentPath,
				LastUpdated:  stamp,
			})
		}
	}
	return out
}

func (s *Seeder) latestVersion(entry domain.CatalogEntry) string {
	if s.cfg.LatestVersionPolicy != config.LatestVersionHighest {
		return s.cfg.LatestVersion
	}
	return HighestVersion(entry.Versions, s.cfg.LatestVersion)
}

// HighestVersion returns the greatest semantic version in versions. Versions
// that do not parse are ignored; when none parse the last listed version is
// used, and fallback only when the list is empty.
func HighestVersion(versions []domain.CatalogVersion, fallback string) string {
	best, bestCanon := "", ""
	for _, v := range versions {
		canon := canonicalSemver(v.Version)
		if canon == "" {
			continue
		}
		if bestCanon == "" || semver.Compare(canon, bestCanon) > 0 {
			best, bestCanon = v.Version, canon
		}
	}
	if best != "" {
		return best
	}
	if len(versions) > 0 {
		return versions[len(versions)-1].Version
	}
	return fallback
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

type writeJob struct {
	kind  domain.TableKind
	table string
	items []domain.Item
}

type writeOutcome struct {
	result domain.BatchResult
	err    error
}

func (s *Seeder) write(ctx context.Context, services, versions []domain.Item) (domain.SeedReport, error) {
	jobs := chunkItems(domain.TableServiceInfo, s.cfg.ServiceTable, services, s.cfg.ChunkSize)
	jobs = append(jobs, chunkItems(domain.TableVersionInfo, s.cfg.VersionTable, versions, s.cfg.ChunkSize)...)

	outcomes := make([]writeOutcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = s.writeChunk(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	report := s.emptyReport()
	var cause error
	for i, job := range jobs {
		if cause == nil && outcomes[i].err != nil {
			cause = outcomes[i].err
		}
		if job.kind == domain.TableServiceInfo {
			report.Services.Merge(outcomes[i].result)
		} else {
			report.Versions.Merge(outcomes[i].result)
		}
	}
	return report, cause
}

func (s *Seeder) writeChunk(ctx context.Context, job writeJob) writeOutcome {
	if err := ctx.Err(); err != nil {
		return writeOutcome{result: domain.FailAll(job.table, job.items, err.Error(), true), err: err}
	}
	start := time.Now()
	result, err := s.Store.BatchWrite(ctx, job.table, job.items)
	if err != nil {
		s.logger.Warn().Err(err).Str("table", job.table).Int("items", len(job.items)).Msg("batch write failed")
		result = domain.FailAll(job.table, job.items, err.Error(), ctx.Err() != nil)
	} else {
		result = reconcile(job, result)
	}
	observability.RecordSeedBatch(job.table, len(result.Succeeded), len(result.Failed), time.Since(start))
	return writeOutcome{result: result, err: err}
}

// reconcile keeps exactly one outcome per submitted item. A failure wins over
// a success for the same key, and items the store did not mention fail.
func reconcile(job writeJob, got domain.BatchResult) domain.BatchResult {
	out := domain.BatchResult{Table: job.table}
	pending := make(map[domain.ItemKey]bool, len(job.items))
	for _, item := range job.items {
		pending[item.ItemKey()] = true
	}
	for _, f := range got.Failed {
		if !pending[f.Key] {
			continue
		}
		delete(pending, f.Key)
		f.Table = job.table
		out.Failed = append(out.Failed, f)
	}
	for _, key := range got.Succeeded {
		if !pending[key] {
			continue
		}
		delete(pending, key)
		out.Succeeded = append(out.Succeeded, key)
	}
	for _, item := range job.items {
		if key := item.ItemKey(); pending[key] {
			delete(pending, key)
			out.Failed = append(out.Failed, domain.ItemFailure{Table: job.table, Key: key, Reason: reasonNoOutcome})
		}
	}
	return out
}

func chunkItems(kind domain.TableKind, table string, items []domain.Item, size int) []writeJob {
	jobs := make([]writeJob, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		jobs = append(jobs, writeJob{kind: kind, table: table, items: items[start:end]})
	}
	return jobs
}

func annotateNames(failures []domain.ItemFailure, names map[string]string) {
	for i := range failures {
		if failures[i].ServiceName == "" {
			failures[i].ServiceName = names[failures[i].Key.ServiceID]
		}
	}
}

func (s *Seeder) emptyReport() domain.SeedReport {
	return domain.SeedReport{
		Services: domain.BatchResult{Table: s.cfg.ServiceTable},
		Versions: domain.BatchResult{Table: s.cfg.VersionTable},
	}
}
