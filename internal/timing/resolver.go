package timing

import "maps"

// Resolver maps a substance to its timing profile. Lookup order is exact
// name, then category, then the default profile.
type Resolver struct {
	byName     map[string]Profile
	byCategory map[string]Profile
	fallback   Profile
}

// Overrides extends or replaces the built-in profiles. Keys are matched
// case-insensitively. A zero Default keeps the built-in default.
type Overrides struct {
	Profiles   map[string]Profile `mapstructure:"profiles"`
	Categories map[string]Profile `mapstructure:"categories"`
	Default    Profile            `mapstructure:"default"`
}

func NewResolver() *Resolver {
	return &Resolver{
		byName:     maps.Clone(builtinProfiles),
		byCategory: maps.Clone(builtinCategories),
		fallback:   defaultProfile,
	}
}

// NewResolverWith layers configured profiles over the built-in ones.
func NewResolverWith(o Overrides) *Resolver {
	r := NewResolver()
	for name, p := range o.Profiles {
		r.byName[normalize(name)] = named(p, name)
	}
	for cat, p := range o.Categories {
		r.byCategory[normalize(cat)] = named(p, cat)
	}
	if o.Default.Total() > 0 {
		r.fallback = named(o.Default, "default")
	}
	return r
}

// Resolve never fails; unknown substances get the default profile.
func (r *Resolver) Resolve(name, category string) Profile {
	if p, ok := r.byName[normalize(name)]; ok {
		return p
	}
	if p, ok := r.byCategory[normalize(category)]; ok {
		return p
	}
	return r.fallback
}

// Default returns the fallback profile.
func (r *Resolver) Default() Profile {
	return r.fallback
}

func named(p Profile, name string) Profile {
	if p.Name == "" {
		p.Name = normalize(name)
	}
	return p
}
