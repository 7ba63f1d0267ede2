package classify

import (
	"fmt"
	"regexp"
)

// GeneralCategory is assigned when no rule matches.
const GeneralCategory = "general"

// Category is one entry in the taxonomy: a canonical key, a display name,
// keyword patterns, and implied categories added whenever this one matches.
type Category struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Implies  []string `yaml:"implies,omitempty"`
}

// Taxonomy is the ordered category rule set. Order is priority order: the
// first matching category becomes the primary.
type Taxonomy struct {
	categories []Category
	compiled   [][]*regexp.Regexp
	index      map[string]int
}

// NewTaxonomy compiles a category list into a taxonomy. Patterns are
// compiled case-insensitively; word-boundary anchoring is part of the
// pattern itself so CJK substring rules work alongside English word rules.
func NewTaxonomy(categories []Category) (*Taxonomy, error) {
	t := &Taxonomy{
		categories: categories,
		compiled:   make([][]*regexp.Regexp, len(categories)),
		index:      make(map[string]int, len(categories)),
	}
	for i, cat := range categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("category %d has no key", i)
		}
		if _, dup := t.index[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category key %q", cat.Key)
		}
		t.index[cat.Key] = i
		for _, p := range cat.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("category %q pattern %q: %w", cat.Key, p, err)
			}
			t.compiled[i] = append(t.compiled[i], re)
		}
		for _, implied := range cat.Implies {
			if implied == cat.Key {
				return nil, fmt.Errorf("category %q implies itself", cat.Key)
			}
		}
	}
	return t, nil
}

// Keys returns all category keys in priority order.
func (t *Taxonomy) Keys() []string {
	keys := make([]string, len(t.categories))
	for i, c := range t.categories {
		keys[i] = c.Key
	}
	return keys
}

// Has reports whether key is a known category.
func (t *Taxonomy) Has(key string) bool {
	_, ok := t.index[key]
	return ok
}

// match returns the set of category keys whose patterns match text,
// expanded with implied categories.
func (t *Taxonomy) match(text string) map[string]bool {
	matched := make(map[string]bool)
	for i := range t.categories {
		for _, re := range t.compiled[i] {
			if re.MatchString(text) {
				matched[t.categories[i].Key] = true
				break
			}
		}
	}
	// Implication edges are declarative taxonomy data, applied after the
	// pattern pass so an implied category needs no keyword match of its own.
	for key := range matched {
		for _, implied := range t.categories[t.index[key]].Implies {
			matched[implied] = true
		}
	}
	return matched
}

// ordered filters the taxonomy's priority order down to the given set.
func (t *Taxonomy) ordered(set map[string]bool) []string {
	var out []string
	for _, c := range t.categories {
		if set[c.Key] {
			out = append(out, c.Key)
		}
	}
	return out
}

// DefaultTaxonomy returns the built-in category rule set.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy(defaultCategories)
	if err != nil {
		panic("default taxonomy invalid: " + err.Error())
	}
	return t
}

var defaultCategories = []Category{
	{
		Key:  "technology",
		Name: "Technology",
		Patterns: []string{
			`\bai\b|artificial intelligence|machine learning|deep learning`,
			`\bsemiconductors?\b|\bchips?\b|半導體|晶片`,
			`\bsoftware\b|\bapps?\b|軟體`,
			`cyber ?security|資訊安全`,
			`\bcloud\b|雲端`,
			`\b5g\b|\b6g\b`,
			`blockchain|區塊鏈`,
			`electric vehicles?|電動車`,
			`\btech(nology)?\b|科技`,
		},
	},
	{
		Key:  "finance",
		Name: "Finance",
		Patterns: []string{
			`\bfinance\b|\bfinancial\b|\bbanks?\b|\bbanking\b|利率|加息|減息|息口`,
			`\bstocks?\b|\bequit(y|ies)\b|\bmarkets?\b|證券|股市|股票|指數|基金|債券`,
			`\bipo\b|\bspac\b|並購|收購`,
			`interest rates?`,
		},
		Implies: []string{"economy"},
	},
	{
		Key:  "economy",
		Name: "Economy",
		Patterns: []string{
			`經濟|景氣|通膨|物價|通貨膨脹`,
			`\bgdp\b|\bcpi\b|\bppi\b|economic growth|inflation`,
			`unemployment|retail sales|消費|就業`,
		},
	},
	{
		Key:  "politics",
		Name: "Politics",
		Patterns: []string{
			`政策|法案|立法|監管|政府|內閣|部長|特首|總統|首相`,
			`\belection\b|\bparliament\b|\bcongress\b|\bcabinet\b|\bgovernment\b|\bregulation\b`,
		},
	},
	{
		Key:  "health",
		Name: "Health",
		Patterns: []string{
			`健康|醫療|醫院|疫苗|新冠|疫情|癌`,
			`\bcovid\b|\bvaccines?\b|healthcare|\bhospitals?\b`,
		},
	},
	{
		Key:  "sports",
		Name: "Sports",
		Patterns: []string{
			`\bsports?\b|\bfootball\b|\bsoccer\b|\bbasketball\b|\btennis\b|olympic|world cup|比賽|球隊|球員|體育`,
		},
	},
	{
		Key:  "entertainment",
		Name: "Entertainment",
		Patterns: []string{
			`娛樂|電影|影視|音樂|明星|演唱會|藝人`,
			`\bmovies?\b|\bfilms?\b|\bmusic\b|celebrity|hollywood`,
		},
	},
	{
		Key:  "environment",
		Name: "Environment",
		Patterns: []string{
			`環境|氣候|減碳|碳排|污染|保育`,
			`\bclimate\b|\bemissions?\b|\bcarbon\b|environment`,
		},
	},
	{
		Key:  GeneralCategory,
		Name: "General",
	},
}
