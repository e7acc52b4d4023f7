package project

import (
	"github.com/starford/stew/internal/apperr"
)

// AddReference records in from's properties a reference to target, titled
// with target's base name unless title is given. Both must belong to the
// same project.
func AddReference(from, target Node, title string) error {
	if !from.Project().Owns(target) {
		return apperr.New(apperr.ErrOutsideProject, "%s is not in %s", target.Path(), from.Project().Dir())
	}
	doc, err := from.Properties()
	if err != nil {
		return err
	}
	if title == "" {
		title = target.BaseName()
	}
	doc.AddReference(target.Path(), title)
	return doc.Save()
}

// RemoveReferences drops every reference from from to target and reports
// how many there were.
func RemoveReferences(from, target Node) (int, error) {
	doc, err := from.Properties()
	if err != nil {
		return 0, err
	}
	n := doc.RemoveReferencesTo(target.Path())
	if n == 0 {
		return 0, nil
	}
	return n, doc.Save()
}
