package config

import "github.com/khunglong92/staged-content/pkg/stagedcontent"

// Profile bundles the staging bounds and validation rules for one content
// collection. The admin screens historically duplicated these per module;
// the profile table is their single home.
type Profile struct {
	Limits stagedcontent.Limits
	Rules  stagedcontent.Rules
}

// DefaultProfiles returns the per-collection profiles for the stock content
// collections. Unknown collections fall back to engine defaults.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"news": {
			Limits: stagedcontent.Limits{MaxCount: 10, MaxBytes: 5 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields: []string{"title"},
				RequireAsset:   true,
			},
		},
		"quotes": {
			Limits: stagedcontent.Limits{MaxCount: 10, MaxBytes: 10 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields: []string{"title"},
			},
		},
		"recruitment": {
			Limits: stagedcontent.Limits{MaxCount: 10, MaxBytes: 5 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields: []string{"title", "position"},
			},
		},
		"products": {
			Limits: stagedcontent.Limits{MaxCount: 12, MaxBytes: 20 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields:     []string{"name"},
				RequireAsset:       true,
				RequiredSelections: []string{"category_id"},
				NumericBounds: map[string]stagedcontent.Bounds{
					"price": {Min: 0, Max: 1e12},
				},
			},
		},
		"projects": {
			Limits: stagedcontent.Limits{MaxCount: 12, MaxBytes: 20 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields: []string{"name"},
				RequireAsset:   true,
			},
		},
		"services": {
			Limits: stagedcontent.Limits{MaxCount: 10, MaxBytes: 10 << 20},
			Rules: stagedcontent.Rules{
				RequiredFields: []string{"name"},
			},
		},
	}
}

// ProfileFor returns the profile for a collection, or a zero-value profile
// (engine defaults, no validation rules) when none is registered.
func ProfileFor(profiles map[string]Profile, collection string) Profile {
	if p, ok := profiles[collection]; ok {
		return p
	}
	return Profile{}
}
