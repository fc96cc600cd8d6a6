package cities

import (
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultCacheSize = 512

// Keys are folded (see Fold).
var aliases = map[string]string{
	"geneve":   Geneve,
	"geneva":   Geneve,
	"genf":     Geneve,
	"ginevra":  Geneve,
	"lausanne": Lausanne,
	"zurich":   Zurich,
	"zuerich":  Zurich,
	"basel":    Basel,
	"bale":     Basel,
	"basle":    Basel,
}

// Localities that scraped addresses report instead of the city itself.
var neighborhoods = map[string]string{
	"les acacias":       Geneve,
	"cointrin":          Geneve,
	"champel":           Geneve,
	"plainpalais":       Geneve,
	"le grand-saconnex": Geneve,
	"le petit-saconnex": Geneve,
	"eaux-vives-lac":    Geneve,
	"oerlikon":          Zurich,
	"seebach":           Zurich,
	"leimbach zh":       Zurich,
	"riehen":            Basel,
	"bettingen":         Basel,
	"birsfelden":        Basel,
	"muttenz":           Basel,
	"pratteln":          Basel,
	"allschwil":         Basel,
	"binningen":         Basel,
}

// Resolver maps raw city strings onto the reference table. It is safe for
// concurrent use.
type Resolver struct {
	names map[string]string
	cache *lru.Cache[string, string]
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	neighborhoods bool
	cacheSize     int
}

// WithNeighborhoods also accepts known neighborhood and suburb names.
func WithNeighborhoods() Option {
	return func(o *resolverOptions) { o.neighborhoods = true }
}

// WithCacheSize bounds the number of memoized raw strings.
func WithCacheSize(size int) Option {
	return func(o *resolverOptions) { o.cacheSize = size }
}

// NewResolver builds a resolver over the city aliases.
func NewResolver(opts ...Option) (*Resolver, error) {
	o := resolverOptions{cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	names := make(map[string]string, len(aliases)+len(neighborhoods))
	for k, v := range aliases {
		names[k] = v
	}
	if o.neighborhoods {
		for k, v := range neighborhoods {
			names[k] = v
		}
	}

	cache, err := lru.New[string, string](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	return &Resolver{names: names, cache: cache}, nil
}

// Resolve returns the reference city for raw, or false if raw names no
// supported city.
func (r *Resolver) Resolve(raw string) (City, bool) {
	name, ok := r.cache.Get(raw)
	if !ok {
		name = r.names[Fold(raw)]
		r.cache.Add(raw, name)
	}
	if name == "" {
		return City{}, false
	}
	return Lookup(name)
}

// Fold lower-cases raw, strips diacritics and collapses whitespace, so that
// "  Genève " and "GENEVE" fold to the same key.
func Fold(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, raw)
	if err != nil {
		stripped = raw
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}
