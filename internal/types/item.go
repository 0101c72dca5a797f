package types

// Item is an opaque provider value. Identity comes from the provider, not from position.
type Item = any

// Representation is the flat wire form of an item: annotator field name -> value.
type Representation map[string]any

const (
	// KeyField holds the item key in every representation.
	KeyField = "key"
	// PlaceholderField is reserved for the client template; the engine never writes it.
	PlaceholderField = "__placeholder"
)

func (r Representation) Key() string {
	k, _ := r[KeyField].(string)
	return k
}

// Query is what the data source hands to a provider for one fetch or count.
type Query struct {
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Filter string   `json:"filter,omitempty"`
	Sort   []string `json:"sort,omitempty"`
}

const (
	ArtifactText = "text"
	ArtifactRef  = "ref"
)

// Artifact is the per-row render artifact: plain text, or a reference to something the
// host renders outside the representation. The transport layer resolves refs.
type Artifact struct {
	Kind       string `json:"kind"`
	Value      string `json:"value,omitempty"`
	Key        string `json:"key,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

func TextArtifact(value string) Artifact {
	return Artifact{Kind: ArtifactText, Value: value}
}

func RefArtifact(key, externalID string) Artifact {
	return Artifact{Kind: ArtifactRef, Key: key, ExternalID: externalID}
}
