package validation

import (
	"strings"

	"salesplan/internal/domain"
)

// Matcher normalizes SKU codes and retailer names before exact lookup.
type Matcher struct {
	CaseSensitive bool
}

func (m Matcher) Normalize(raw string) string {
	value := strings.Join(strings.Fields(raw), " ")
	if !m.CaseSensitive {
		value = strings.ToLower(value)
	}
	return value
}

type lookup struct {
	ids       map[string]int64
	ambiguous map[string]struct{}
}

func (m Matcher) index(keys []domain.MasterKey) lookup {
	l := lookup{
		ids:       make(map[string]int64, len(keys)),
		ambiguous: make(map[string]struct{}),
	}
	for _, key := range keys {
		normalized := m.Normalize(key.Key)
		if normalized == "" {
			continue
		}
		if existing, ok := l.ids[normalized]; ok && existing != key.ID {
			l.ambiguous[normalized] = struct{}{}
			continue
		}
		l.ids[normalized] = key.ID
	}
	return l
}

type resolution int

const (
	resolved resolution = iota
	unknown
	ambiguous
)

func (l lookup) resolve(normalized string) (int64, resolution) {
	if _, ok := l.ambiguous[normalized]; ok {
		return 0, ambiguous
	}
	id, ok := l.ids[normalized]
	if !ok {
		return 0, unknown
	}
	return id, resolved
}
