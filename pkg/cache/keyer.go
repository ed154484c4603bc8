package cache

// ArtifactKeyOpts are the conversion parameters that change an
// artifact's identity. Two conversions sharing workbook bytes and these
// options are interchangeable.
type ArtifactKeyOpts struct {
	Sheet   string `json:"sheet"`
	Range   string `json:"range,omitempty"`
	Type    string `json:"type"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// Keyer builds cache keys. Implementations must be deterministic:
// identical inputs produce identical keys across processes.
type Keyer interface {
	// ArtifactKey keys a finished artifact by the workbook content hash
	// and the conversion options.
	ArtifactKey(workbookHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ArtifactKey generates a key for a converted artifact.
func (k *DefaultKeyer) ArtifactKey(workbookHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", workbookHash, opts)
}
