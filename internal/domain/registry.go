package domain

// ServiceRecord is one row of the service table. ID is always derived from
// ServiceName, so rewriting the same service overwrites the same row.
type ServiceRecord struct {
	ID            string `json:"id"`
	ServiceName   string `json:"servicename"`
	LatestVersion string `json:"latestversion"`
	LastUpdated   int64  `json:"lastupdated"`
}

// VersionRecord is one row of the version table, keyed by (ServiceID, Version).
type VersionRecord struct {
	ServiceID    string `json:"id"`
	Version      string `json:"version"`
	DocumentPath string `json:"path"`
	LastUpdated  int64  `json:"lastupdated"`
}

type CatalogVersion struct {
	Version      string `toml:"version" json:"version"`
	DocumentPath string `toml:"path" json:"path"`
}

type CatalogEntry struct {
	Name     string           `toml:"name" json:"name"`
	Versions []CatalogVersion `toml:"versions" json:"versions"`
}

type TableKind string

const (
	TableServiceInfo TableKind = "serviceinfo"
	TableVersionInfo TableKind = "versioninfo"
)

// ItemKey identifies a row in either table. Version is empty for service rows.
type ItemKey struct {
	ServiceID string `json:"service_id"`
	Version   string `json:"version,omitempty"`
}

func (k ItemKey) String() string {
	if k.Version == "" {
		return k.ServiceID
	}
	return k.ServiceID + "@" + k.Version
}

// Item is a record that can be handed to a batch write.
type Item interface {
	ItemKey() ItemKey
}

func (r ServiceRecord) ItemKey() ItemKey {
	return ItemKey{ServiceID: r.ID}
}

func (r VersionRecord) ItemKey() ItemKey {
	return ItemKey{ServiceID: r.ServiceID, Version: r.Version}
}

// ItemFailure describes one item a store did not persist.
type ItemFailure struct {
	Table       string  `json:"table"`
	Key         ItemKey `json:"key"`
	ServiceName string  `json:"service_name,omitempty"`
	Reason      string  `json:"reason"`
	Cancelled   bool    `json:"cancelled,omitempty"`
}

// BatchResult is the per-item outcome of a batch write against one table.
// Every submitted item appears exactly once, in Succeeded or in Failed.
type BatchResult struct {
	Table     string        `json:"table"`
	Succeeded []ItemKey     `json:"succeeded"`
	Failed    []ItemFailure `json:"failed,omitempty"`
}

func (r *BatchResult) Merge(other BatchResult) {
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Failed = append(r.Failed, other.Failed...)
}

// FailAll marks every item as failed with the same reason.
func FailAll(table string, items []Item, reason string, cancelled bool) BatchResult {
	out := BatchResult{Table: table, Failed: make([]ItemFailure, 0, len(items))}
	for _, item := range items {
		out.Failed = append(out.Failed, ItemFailure{
			Table:     table,
			Key:       item.ItemKey(),
			Reason:    reason,
			Cancelled: cancelled,
		})
	}
	return out
}

// SeedReport holds the outcome for both tables of one seeding run.
type SeedReport struct {
	Services BatchResult `json:"services"`
	Versions BatchResult `json:"versions"`
}

func (r SeedReport) Failures() []ItemFailure {
	out := make([]ItemFailure, 0, len(r.Services.Failed)+len(r.Versions.Failed))
	out = append(out, r.Services.Failed...)
	out = append(out, r.Versions.Failed...)
	return out
}

// FailedKeys returns the keys of every failed item across both tables.
func (r SeedReport) FailedKeys() map[ItemKey]bool {
	out := make(map[ItemKey]bool)
	for _, f := range r.Failures() {
		out[f.Key] = true
	}
	return out
}
