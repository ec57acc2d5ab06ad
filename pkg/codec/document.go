package codec

// Document is the top-level JSON shape described in spec.md §4.5.1.
type Document struct {
	Name      string       `json:"name"`
	Version   string       `json:"version,omitempty"`
	IOGraph   []AppSpec    `json:"IO_Graph"`
	Permanent []string     `json:"permanent,omitempty"`
	Exclude   []string     `json:"exclude,omitempty"`
	Storage   *StorageSpec `json:"storage,omitempty"`
}

// AppSpec is one IO_Graph entry: a named workflow step and the paths
// it consumes/produces.
type AppSpec struct {
	Name         string            `json:"name"`
	InputStream  []string          `json:"input_stream,omitempty"`
	OutputStream []string          `json:"output_stream,omitempty"`
	Streaming    []StreamingRecord `json:"streaming,omitempty"`
}

// StreamingRecord carries coordination metadata for one or more paths.
// Exactly one of Name (files) or Dirname (directories) is populated.
type StreamingRecord struct {
	Name      []string `json:"name,omitempty"`
	Dirname   []string `json:"dirname,omitempty"`
	Committed string   `json:"committed,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	FileDeps  []string `json:"file_deps,omitempty"`
	NFiles    *int     `json:"n_files,omitempty"`
}

// StorageSpec lists paths by storage placement hint. Serialize lists
// every known path under one of the two lists.
type StorageSpec struct {
	Memory []string `json:"memory,omitempty"`
	FS     []string `json:"fs,omitempty"`
}

// unassignedAppName is a synthetic IO_Graph entry name used to carry
// streaming metadata for entries that have no producer (they may still
// have consumers) but carry non-default coordination metadata (e.g. a
// non-default commit rule).
// It never contributes to producer/consumer indexing.
const unassignedAppName = "$unassigned"
