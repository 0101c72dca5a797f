package annotate

import (
	"fmt"

	"winsync/internal/ports"
	"winsync/internal/types"
)

// RefAnnotator writes an identity marker for rows whose artifact is rendered outside the
// representation. Rows known to the side table get a ref artifact; others fall back to text.
type RefAnnotator struct {
	Field    string
	Table    ports.ArtifactTable
	Fallback ValueProvider
}

func NewRefAnnotator(field string, table ports.ArtifactTable, fallback ValueProvider) *RefAnnotator {
	if fallback == nil {
		fallback = Label
	}
	return &RefAnnotator{Field: field, Table: table, Fallback: fallback}
}

func (a *RefAnnotator) Annotate(item types.Item, rep types.Representation) error {
	key := rep.Key()
	if id, ok := a.Table.ExternalID(key); ok {
		rep[a.Field] = types.RefArtifact(key, id)
		return nil
	}
	v, err := a.Fallback(item)
	if err != nil {
		return err
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	rep[a.Field] = types.TextArtifact(s)
	return nil
}

func (a *RefAnnotator) Destroy(key string, _ types.Item) {
	a.Table.Forget(key)
}
