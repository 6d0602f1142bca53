// Package catalog maintains the authoritative index over the media
// store: stable identifiers, content hashes, capture dates, ownership
// and sharing rights, and the always-current descending-date view used
// for pagination.
package catalog

import "time"

// PublicRight is the sentinel granting every account access to a file.
const PublicRight = "public"

// SystemUser owns files discovered by reindexing before any real user
// claims them. The account store guarantees it always exists.
const SystemUser = "<index>"

// FileRecord is one catalog entry. The path↔id mapping is bijective
// while the record exists; ids are never reused.
type FileRecord struct {
	// ID is monotonically increasing and survives rebuilds.
	ID int64 `json:"id"`
	// Path is relative to the media store root.
	Path string `json:"path"`
	// Hash is the keyed digest over the full byte stream.
	Hash string `json:"hash"`
	// Size is the content length in bytes.
	Size int64 `json:"size"`
	// Date is the resolved capture date; zero when unknown.
	Date time.Time `json:"date"`
	// Type is image, video or unknown.
	Type string `json:"type"`
	// Format is the concrete container/encoding, e.g. jpeg or mp4.
	Format string `json:"format"`
	// Owner is the owning account's username.
	Owner string `json:"owner"`
	// Rights lists accounts granted access beyond the owner, or the
	// "public" sentinel.
	Rights []string `json:"rights"`
	// Metadata and Tags are reserved for future use.
	Metadata map[string]string `json:"metadata,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

// Clone returns a deep copy so callers can hand records out without
// exposing catalog-internal state to mutation.
func (r *FileRecord) Clone() *FileRecord {
	clone := *r
	clone.Rights = append([]string(nil), r.Rights...)
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Tags = append([]string(nil), r.Tags...)
	return &clone
}

// HasRight reports whether user appears in the rights set.
func (r *FileRecord) HasRight(user string) bool {
	for _, u := range r.Rights {
		if u == user {
			return true
		}
	}
	return false
}

// Viewer identifies the account a query runs as.
type Viewer struct {
	Username string
	Admin    bool
}

// Cursor positions a page query. Zero values mean "from the beginning";
// ID takes precedence over Timestamp when both are set.
type Cursor struct {
	// ID is the identifier of the last record the client already has.
	// The page resumes after that record's sort position; if the record
	// has since been deleted, Timestamp (or the top of the view) takes
	// over so the client never sees a premature end.
	ID int64
	// Timestamp restricts the page to records captured strictly before it.
	Timestamp time.Time
}

// ReindexReport summarizes one reindex walk.
type ReindexReport struct {
	// Indexed counts newly discovered or recomputed records.
	Indexed int `json:"indexed"`
	// Purged counts records removed because their path disappeared.
	Purged int `json:"purged"`
	// Failed counts paths that could not be indexed.
	Failed int `json:"failed"`
}

// UpgradeReport summarizes an identifier-preserving rebuild.
type UpgradeReport struct {
	// Kept counts records whose id survived by path match.
	Kept int `json:"kept"`
	// Added counts paths that had no prior record.
	Added int `json:"added"`
	// FieldsMerged counts fields carried over from old records because
	// the fresh extraction dropped them.
	FieldsMerged int `json:"fields_merged"`
	// DroppedEntries lists paths of old records that no longer resolve.
	DroppedEntries []string `json:"dropped_entries"`
}

// persistedCatalog is the on-disk document. LastID is the id high-water
// mark so identifiers are never reused even after the max record is
// deleted.
type persistedCatalog struct {
	LastID  int64                  `json:"last_id"`
	Records map[string]*FileRecord `json:"records"`
}
