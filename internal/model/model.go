// Package model defines domain entities shared by the session, collection
// and client layers.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Role values the backend issues in token claims and profile responses.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is an account as seen by the client: either decoded from token
// claims (fallback) or fetched from the profile endpoint (authoritative).
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session is the derived, never-persisted authentication view. It is
// recomputed from the token store on every change, never cached across
// token mutations.
type Session struct {
	Authenticated bool
	User          *User // nil when anonymous
}

// Uploader identifies who uploaded a resource. The backend populates it
// inconsistently: sometimes a bare id string, sometimes an embedded user
// object. Both decode into the same value.
type Uploader struct {
	ID   string
	Name string
}

// UnmarshalJSON accepts either `"64ab..."` or `{"_id":"64ab...","name":...}`.
func (up *Uploader) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*up = Uploader{}
		return nil
	}
	if b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*up = Uploader{ID: id}
		return nil
	}
	var obj struct {
		ID   string `json:"_id"`
		Alt  string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	id := obj.ID
	if id == "" {
		id = obj.Alt
	}
	*up = Uploader{ID: id, Name: obj.Name}
	return nil
}

// MarshalJSON keeps the wire shape symmetric for the embedded-object case.
func (up Uploader) MarshalJSON() ([]byte, error) {
	if up.Name == "" {
		return json.Marshal(up.ID)
	}
	return json.Marshal(struct {
		ID   string `json:"_id"`
		Name string `json:"name,omitempty"`
	}{ID: up.ID, Name: up.Name})
}

// Resource is a shared document. The client holds a read-through cached
// copy; AverageRating and RatingCount are server-computed aggregates and
// are never recomputed locally. Downloads is the one field updated
// optimistically (incremented on a successful local download).
type Resource struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Subject       string    `json:"subject"`
	Semester      string    `json:"semester"`
	UploadedBy    Uploader  `json:"uploadedBy"`
	AverageRating float64   `json:"averageRating"`
	RatingCount   int       `json:"ratingCount"`
	Downloads     int       `json:"downloads"`
	FileURL       string    `json:"fileUrl"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// Filter is the client-side view predicate over a fetched resource list.
// Empty fields match everything on their dimension.
type Filter struct {
	Search   string
	Subject  string
	Semester string
}

// IsZero reports whether no filter dimension is set.
func (f Filter) IsZero() bool {
	return f.Search == "" && f.Subject == "" && f.Semester == ""
}

// Rating is the caller's own rating of a resource, as returned by the
// rating endpoints. Independent of the aggregate fields on Resource.
type Rating struct {
	ResourceID string `json:"resourceId"`
	Value      int    `json:"value"` // 1..5
}

// Dashboard groups the three server-ranked resource lists. Ranking and
// tie-break rules live server-side; order is preserved as received.
type Dashboard struct {
	TopRated       []Resource `json:"topRated"`
	MostDownloaded []Resource `json:"mostDownloaded"`
	Recent         []Resource `json:"recent"`
}
