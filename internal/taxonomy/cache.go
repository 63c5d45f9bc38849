package taxonomy

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// VersionRule maps a schemaRef pattern to a configured taxonomy version.
type VersionRule struct {
	Pattern *regexp.Regexp
	Version string
}

// Manager resolves a report's schemaRef to a Taxonomy, loading and
// caching each version's schema/label files at most once regardless of
// how many parses race to request it concurrently — the same
// guard-duplicate-concurrent-work idiom as the teacher's
// AdaptiveLimiter's mutex-protected state, here keyed per version via a
// sync.Map of sync.Once rather than one shared mutex.
type Manager struct {
	baseDir        string
	defaultVersion string
	rules          []VersionRule

	entries sync.Map // version string -> *cacheEntry
}

type cacheEntry struct {
	once sync.Once
	tax  *model.Taxonomy
	err  error
}

// NewManager builds a Manager rooted at baseDir (one subdirectory per
// taxonomy version) with the given schemaRef->version rules, tried in
// order, and a defaultVersion used when no rule matches.
func NewManager(baseDir, defaultVersion string, rules []VersionRule) *Manager {
	return &Manager{baseDir: baseDir, defaultVersion: defaultVersion, rules: rules}
}

// Resolve picks the taxonomy version for schemaRef and loads it
// (from cache if already loaded). A non-matching schemaRef falls back
// to defaultVersion and returns a warning rather than an error, so a
// batch doesn't hard-fail wholesale over one unrecognized revision.
func (m *Manager) Resolve(schemaRef string) (*model.Taxonomy, []string, error) {
	version := m.defaultVersion
	matched := schemaRef == ""
	for _, rule := range m.rules {
		if rule.Pattern.MatchString(schemaRef) {
			version = rule.Version
			matched = true
			break
		}
	}

	var warnings []string
	if !matched {
		warnings = append(warnings, "taxonomy: schemaRef \""+schemaRef+"\" matched no configured version, falling back to default \""+m.defaultVersion+"\"")
	}

	tax, err := m.get(version)
	if err != nil {
		return nil, warnings, err
	}
	return tax, warnings, nil
}

func (m *Manager) get(version string) (*model.Taxonomy, error) {
	v, _ := m.entries.LoadOrStore(version, &cacheEntry{})
	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		entry.tax, entry.err = m.load(version)
	})
	return entry.tax, entry.err
}

func (m *Manager) load(version string) (*model.Taxonomy, error) {
	schemaPath := filepath.Join(m.baseDir, version, "schema.xsd")
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		zap.L().Warn("taxonomy: no schema on disk for version, using placeholder concepts",
			zap.String("version", version),
		)
		return BootstrapTaxonomy(version), nil
	}
	return Load(m.baseDir, version)
}
