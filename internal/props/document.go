package props

import (
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stew/internal/apperr"
)

// Rules are the publish formatting rules. A category carries them for all
// its documents; a document may override any of them individually.
type Rules struct {
	PublishTitle         *bool   `json:"publishTitle,omitempty"`
	PublishTitleLevel    *int    `json:"publishTitleLevel,omitempty"`
	PublishTitlePrefix   *string `json:"publishTitlePrefix,omitempty"`
	PublishMarkerBefore  *bool   `json:"publishMarkerBefore,omitempty"`
	PublishMarkerAfter   *bool   `json:"publishMarkerAfter,omitempty"`
	PublishMarkerBetween *bool   `json:"publishMarkerBetween,omitempty"`
}

var ruleKeys = []string{
	"publishTitle", "publishTitleLevel", "publishTitlePrefix",
	"publishMarkerBefore", "publishMarkerAfter", "publishMarkerBetween",
}

// Validate checks the heading level range.
func (r Rules) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PublishTitleLevel, validation.NilOrNotEmpty, validation.Min(1), validation.Max(6)),
	)
}

// Overlay returns r with every rule set in o replacing r's.
func (r Rules) Overlay(o Rules) Rules {
	if o.PublishTitle != nil {
		r.PublishTitle = o.PublishTitle
	}
	if o.PublishTitleLevel != nil {
		r.PublishTitleLevel = o.PublishTitleLevel
	}
	if o.PublishTitlePrefix != nil {
		r.PublishTitlePrefix = o.PublishTitlePrefix
	}
	if o.PublishMarkerBefore != nil {
		r.PublishMarkerBefore = o.PublishMarkerBefore
	}
	if o.PublishMarkerAfter != nil {
		r.PublishMarkerAfter = o.PublishMarkerAfter
	}
	if o.PublishMarkerBetween != nil {
		r.PublishMarkerBetween = o.PublishMarkerBetween
	}
	return r
}

func (r Rules) WantsTitle() bool    { return deref(r.PublishTitle, false) }
func (r Rules) TitlePrefix() string { return deref(r.PublishTitlePrefix, "") }
func (r Rules) MarkerBefore() bool  { return deref(r.PublishMarkerBefore, false) }
func (r Rules) MarkerAfter() bool   { return deref(r.PublishMarkerAfter, false) }
func (r Rules) MarkerBetween() bool { return deref(r.PublishMarkerBetween, false) }

// TitleLevel defaults to 1.
func (r Rules) TitleLevel() int { return deref(r.PublishTitleLevel, 1) }

func (r *Rules) set(name string, value any) (err error) {
	switch name {
	case "publishTitle":
		r.PublishTitle, err = asBool(name, value)
	case "publishTitleLevel":
		var level *int
		if level, err = asInt(name, value); err != nil {
			return err
		}
		if err := (Rules{PublishTitleLevel: level}).Validate(); err != nil {
			return apperr.New(apperr.ErrInvalidValue, "%v", err)
		}
		r.PublishTitleLevel = level
	case "publishTitlePrefix":
		r.PublishTitlePrefix, err = asString(name, value)
	case "publishMarkerBefore":
		r.PublishMarkerBefore, err = asBool(name, value)
	case "publishMarkerAfter":
		r.PublishMarkerAfter, err = asBool(name, value)
	case "publishMarkerBetween":
		r.PublishMarkerBetween, err = asBool(name, value)
	}
	return err
}

// Color is a tag color.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Reference points at another document of the same project.
type Reference struct {
	File  string `json:"file"`
	Title string `json:"title,omitempty"`
}

// Document is the property object of one packet, stored in
// <base>_properties.json.
type Document struct {
	Index      OrderedList    `json:"index,omitempty"`
	Status     *string        `json:"status,omitempty"`
	Category   *string        `json:"category,omitempty"`
	Publish    *bool          `json:"publish,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	References []Reference    `json:"references,omitempty"`
	Title      *string        `json:"title,omitempty"`
	Color      *Color         `json:"color,omitempty"`
	User       map[string]any `json:"user,omitempty"`
	Rules

	Extra Extra `json:"-"`

	cache *Cache
	file  string
}

var documentKeys = append([]string{
	"index", "status", "category", "publish", "tags", "references",
	"title", "color", "user",
}, ruleKeys...)

// document has Document's fields without its methods.
type document Document

func (d *Document) MarshalJSON() ([]byte, error) {
	return marshalWithExtra((*document)(d), d.Extra)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*document)(d), documentKeys)
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// File returns the properties file the document is stored in.
func (d *Document) File() string { return d.file }

// Save writes the document back to its properties file.
func (d *Document) Save() error {
	return d.cache.Write(d.file, d)
}

// Set assigns a property by name. Managed names are type checked and
// report apperr.ErrInvalidValue on a mismatch; any other name is stored as
// an unmanaged value. A nil value deletes the property.
func (d *Document) Set(name string, value any) (err error) {
	switch name {
	case "index":
		var list []string
		list, err = asStrings(name, value)
		d.Index = OrderedList(list)
	case "status":
		d.Status, err = asString(name, value)
	case "category":
		d.Category, err = asString(name, value)
	case "publish":
		d.Publish, err = asBool(name, value)
	case "tags":
		d.Tags, err = asStrings(name, value)
	case "title":
		d.Title, err = asString(name, value)
	case "user":
		d.User, err = asObject(name, value)
	case "references", "color":
		if value != nil {
			return apperr.New(apperr.ErrInvalidValue, "%s cannot be set directly", name)
		}
		if name == "references" {
			d.References = nil
		} else {
			d.Color = nil
		}
	default:
		if isManaged(ruleKeys, name) {
			return d.Rules.set(name, value)
		}
		return d.Extra.set(name, value)
	}
	return err
}

// Get reads an unmanaged property.
func (d *Document) Get(name string) (any, bool) {
	if isManaged(documentKeys, name) {
		return nil, false
	}
	return d.Extra.Get(name)
}

// IsPublished reports the publish flag, false when unset.
func (d *Document) IsPublished() bool { return deref(d.Publish, false) }

// TitleOr returns the title, or fallback when none is set.
func (d *Document) TitleOr(fallback string) string { return deref(d.Title, fallback) }

// StatusIn returns the status, or the manifest's default status.
func (d *Document) StatusIn(m *Manifest) string {
	if d.Status != nil {
		return *d.Status
	}
	return m.DefaultStatus
}

// CategoryIn returns the category, or the manifest's default category.
func (d *Document) CategoryIn(m *Manifest) string {
	if d.Category != nil {
		return *d.Category
	}
	return m.DefaultCategory
}

// IncStatus moves the status one step forward along the manifest's status
// list. A status missing from the list moves to the first entry; the last
// entry stays put.
func (d *Document) IncStatus(m *Manifest) string {
	return d.stepStatus(m, 1)
}

// DecStatus moves the status one step back along the manifest's status
// list.
func (d *Document) DecStatus(m *Manifest) string {
	return d.stepStatus(m, -1)
}

func (d *Document) stepStatus(m *Manifest, step int) string {
	if len(m.Statuses) == 0 {
		return d.StatusIn(m)
	}
	i := m.Statuses.IndexOf(d.StatusIn(m))
	if i == NotFound {
		i = 0
	} else {
		i = max(0, min(i+step, len(m.Statuses)-1))
	}
	s := m.Statuses[i]
	d.Status = &s
	return s
}

// HasTag reports whether the document carries tag.
func (d *Document) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// AddTag adds tag unless already present.
func (d *Document) AddTag(tag string) {
	if !d.HasTag(tag) {
		d.Tags = append(d.Tags, tag)
	}
}

// RemoveTag removes tag.
func (d *Document) RemoveTag(tag string) {
	d.Tags = slices.DeleteFunc(d.Tags, func(t string) bool { return t == tag })
}

// ReferencesTo returns the references pointing at file.
func (d *Document) ReferencesTo(file string) []Reference {
	var out []Reference
	for _, r := range d.References {
		if r.File == file {
			out = append(out, r)
		}
	}
	return out
}

// AddReference appends a reference. Whether file lies inside the project
// is for the caller to check.
func (d *Document) AddReference(file, title string) {
	d.References = append(d.References, Reference{File: file, Title: title})
}

// RemoveReferencesTo drops every reference pointing at file and reports
// how many were removed.
func (d *Document) RemoveReferencesTo(file string) int {
	n := len(d.References)
	d.References = slices.DeleteFunc(d.References, func(r Reference) bool { return r.File == file })
	return n - len(d.References)
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
