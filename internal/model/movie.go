// Package model holds the domain records shared by the repository, service
// and handler layers. The structs carry no serialization tags; handlers map
// them onto their own response types.
package model

// Movie is a catalog entry. Title is unique across the catalog when compared
// case-insensitively.
type Movie struct {
	ID          uint64   // surrogate key assigned by the database
	Title       string   // display title, unique ignoring case
	Genre       string   // free-form genre label
	Duration    int      // running time in minutes
	Rating      *float64 // optional rating in [0, 10]
	ReleaseYear int      // year of release
}

// MoviePatch describes a partial update. Nil fields are left unchanged.
type MoviePatch struct {
	Title       *string
	Genre       *string // an empty string also means "no change"
	Duration    *int
	Rating      *float64
	ReleaseYear *int
}

// Apply copies the present fields of p onto m.
func (p MoviePatch) Apply(m *Movie) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Genre != nil && *p.Genre != "" {
		m.Genre = *p.Genre
	}
	if p.Duration != nil {
		m.Duration = *p.Duration
	}
	if p.Rating != nil {
		r := *p.Rating
		m.Rating = &r
	}
	if p.ReleaseYear != nil {
		m.ReleaseYear = *p.ReleaseYear
	}
}
