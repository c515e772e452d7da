package schema

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed descriptors/*.txt
var descriptorFS embed.FS

type Variant string

const (
	VariantSQL   Variant = "sql"
	VariantMongo Variant = "mongo"
)

const (
	DefaultTable      = "sales"
	DefaultCollection = "ordercollections"
)

func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantSQL, "mysql", "relational":
		return VariantSQL, nil
	case VariantMongo, "mongodb", "document":
		return VariantMongo, nil
	default:
		return "", fmt.Errorf("unknown dataset variant %q", raw)
	}
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Descriptor is the immutable description of one queryable dataset that gets
// embedded verbatim into prompts.
type Descriptor struct {
	Variant Variant `json:"variant"`
	Dataset string  `json:"dataset"`
	Text    string  `json:"schema"`
}

func For(variant Variant, dataset string) (Descriptor, error) {
	var file string
	switch variant {
	case VariantSQL:
		file = "descriptors/sql.txt"
		if strings.TrimSpace(dataset) == "" {
			dataset = DefaultTable
		}
	case VariantMongo:
		file = "descriptors/mongo.txt"
		if strings.TrimSpace(dataset) == "" {
			dataset = DefaultCollection
		}
	default:
		return Descriptor{}, fmt.Errorf("unknown dataset variant %q", variant)
	}

	raw, err := descriptorFS.ReadFile(file)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor %s: %w", file, err)
	}
	dataset = strings.TrimSpace(dataset)
	return Descriptor{
		Variant: variant,
		Dataset: dataset,
		Text:    strings.TrimSpace(strings.ReplaceAll(string(raw), "{{dataset}}", dataset)),
	}, nil
}
