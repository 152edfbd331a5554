// Package authority classifies source references into trust categories with
// fixed numeric weights, used to break ties between conflicting observations.
package authority

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category groups sources by how much their claims can be trusted.
type Category string

const (
	CategoryGovernmentAPI     Category = "government_api"
	CategoryGovernmentRecords Category = "government_records"
	CategoryNonprofitData     Category = "nonprofit_data"
	CategoryPropertyDB        Category = "property_db"
	CategoryProfessionalNet   Category = "professional_network"
	CategoryMajorNews         Category = "major_news"
	CategoryGeneralNews       Category = "general_news"
	CategoryAISynthesis       Category = "ai_synthesis"
	CategorySocialMedia       Category = "social_media"
	CategoryUnknown           Category = "unknown"
)

// categoryWeights are fixed per-category trust weights. Never mutated at
// runtime.
var categoryWeights = map[Category]float64{
	CategoryGovernmentAPI:     0.95,
	CategoryGovernmentRecords: 0.9,
	CategoryNonprofitData:     0.85,
	CategoryPropertyDB:        0.8,
	CategoryProfessionalNet:   0.7,
	CategoryMajorNews:         0.65,
	CategoryGeneralNews:       0.55,
	CategoryAISynthesis:       0.5,
	CategorySocialMedia:       0.35,
	CategoryUnknown:           0.4,
}

// Classification is the outcome of classifying one source reference.
type Classification struct {
	Category  Category `json:"category"`
	Authority float64  `json:"authority"`
}

// rule maps source identifiers to a category. ids match named source ids
// exactly; hosts match the reference's hostname by domain suffix (a leading
// dot anchors a bare TLD); hostParts match substrings within the hostname
// only, for local news naming; paths match "host/path-prefix" pairs. Rules
// are evaluated in order; the first match wins, so more specific rules come
// first.
type rule struct {
	category  Category
	ids       []string
	hosts     []string
	hostParts []string
	paths     []string
}

// defaultRules order: government API > government records > nonprofit data >
// property/commercial > professional networks > major news > general news >
// AI synthesis > social media.
var defaultRules = []rule{
	{category: CategoryGovernmentAPI,
		ids:   []string{"sec_edgar", "fec"},
		hosts: []string{"api.sec.gov", "efts.sec.gov", "api.open.fec.gov", "api.irs.gov", "api.usa.gov"}},
	{category: CategoryGovernmentRecords,
		hosts: []string{".gov", "courtlistener.com", "votesmart.org"}},
	{category: CategoryNonprofitData,
		ids:   []string{"propublica"},
		hosts: []string{"propublica.org", "guidestar.org", "candid.org", "charitynavigator.org", "foundationcenter.org"}},
	{category: CategoryPropertyDB,
		ids:   []string{"attom"},
		hosts: []string{"attomdata.com", "zillow.com", "redfin.com", "realtor.com", "corelogic.com", "blockshopper.com"}},
	{category: CategoryProfessionalNet,
		hosts: []string{"linkedin.com", "crunchbase.com", "zoominfo.com"},
		paths: []string{"bloomberg.com/profile"}},
	{category: CategoryMajorNews,
		hosts: []string{"nytimes.com", "wsj.com", "washingtonpost.com", "reuters.com", "apnews.com", "bloomberg.com", "forbes.com", "ft.com"}},
	{category: CategoryGeneralNews,
		hosts:     []string{"patch.com"},
		hostParts: []string{"news", "tribune", "herald", "gazette", "chronicle"}},
	{category: CategoryAISynthesis,
		ids:   []string{"perplexity", "anthropic", "claude", "openai", "web_search", "synthesis_fallback"},
		hosts: []string{"perplexity.ai", "anthropic.com", "openai.com"}},
	{category: CategorySocialMedia,
		hosts: []string{"twitter.com", "x.com", "facebook.com", "instagram.com", "reddit.com", "tiktok.com", "medium.com"}},
}

// defaultOverrides pin authority for specific named sources regardless of
// their category ceiling.
var defaultOverrides = map[string]float64{
	"sec_edgar":  1.0,
	"fec":        0.98,
	"propublica": 0.9,
}

// Registry classifies source references. Built once at startup and passed by
// reference; lookups are read-only and safe for concurrent use.
type Registry struct {
	rules     []rule
	overrides map[string]float64
}

// NewRegistry builds a registry with the built-in rules and overrides.
func NewRegistry() *Registry {
	return &Registry{
		rules:     defaultRules,
		overrides: defaultOverrides,
	}
}

// OverrideFile is the YAML shape for per-deployment authority overrides.
type OverrideFile struct {
	Overrides map[string]float64 `yaml:"overrides"`
}

// NewRegistryFromFile builds a registry with built-in rules plus per-source
// overrides loaded from a YAML file.
func NewRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "authority: read overrides %s", path)
	}
	var f OverrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "authority: parse overrides")
	}

	overrides := make(map[string]float64, len(defaultOverrides)+len(f.Overrides))
	for k, v := range defaultOverrides {
		overrides[k] = v
	}
	for k, v := range f.Overrides {
		if v < 0 || v > 1 {
			return nil, eris.Errorf("authority: override %s out of range: %f", k, v)
		}
		overrides[strings.ToLower(k)] = v
	}
	return &Registry{rules: defaultRules, overrides: overrides}, nil
}

// Classify matches a source reference (URL or named API id) against the
// ordered rules. The first match wins; unmatched sources get the fixed
// low-authority unknown category.
func (r *Registry) Classify(sourceRef string) Classification {
	ref := strings.ToLower(strings.TrimSpace(sourceRef))
	if ref == "" {
		return Classification{Category: CategoryUnknown, Authority: categoryWeights[CategoryUnknown]}
	}

	host, path := splitRef(ref)
	for _, rl := range r.rules {
		if rl.matches(ref, host, path) {
			return Classification{
				Category:  rl.category,
				Authority: r.authorityFor(ref, rl.category),
			}
		}
	}
	return Classification{Category: CategoryUnknown, Authority: categoryWeights[CategoryUnknown]}
}

// Authority returns just the numeric weight for a source reference.
func (r *Registry) Authority(sourceRef string) float64 {
	return r.Classify(sourceRef).Authority
}

// authorityFor applies pinned overrides on exact source-id equality only;
// URLs always take their category weight.
func (r *Registry) authorityFor(ref string, cat Category) float64 {
	if w, ok := r.overrides[ref]; ok {
		return w
	}
	return categoryWeights[cat]
}

// splitRef separates a reference into hostname and path. A named source id
// ("fec", "web_search") has no hostname and comes back as ("", "").
func splitRef(ref string) (host, path string) {
	if i := strings.Index(ref, "://"); i >= 0 {
		if u, err := url.Parse(ref); err == nil {
			return u.Hostname(), u.Path
		}
		ref = ref[i+3:]
	}
	if !strings.Contains(ref, ".") {
		return "", ""
	}
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}

func (rl rule) matches(ref, host, path string) bool {
	if host == "" {
		for _, id := range rl.ids {
			if ref == id {
				return true
			}
		}
		return false
	}
	for _, h := range rl.hosts {
		if hostMatches(host, h) {
			return true
		}
	}
	for _, part := range rl.hostParts {
		if strings.Contains(host, part) {
			return true
		}
	}
	for _, hp := range rl.paths {
		h, p, _ := strings.Cut(hp, "/")
		if hostMatches(host, h) && strings.HasPrefix(path, "/"+p) {
			return true
		}
	}
	return false
}

// hostMatches is a domain-suffix match: "sec.gov" matches "api.sec.gov" but
// not "notsec.gov". A leading dot anchors a bare TLD (".gov").
func hostMatches(host, pattern string) bool {
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
