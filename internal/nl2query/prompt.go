package nl2query

import (
	"embed"
	"fmt"
	"strings"

	"github.com/askmesh/askmesh/internal/schema"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Build composes the instruction template, the schema descriptor and the
// question into the prompt sent to the model.
func Build(question string, descriptor schema.Descriptor) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	var file string
	switch descriptor.Variant {
	case schema.VariantSQL:
		file = "prompts/sql.tmpl"
	case schema.VariantMongo:
		file = "prompts/mongo.tmpl"
	default:
		return "", fmt.Errorf("unknown dataset variant %q", descriptor.Variant)
	}
	template, err := promptFS.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", file, err)
	}

	replacer := strings.NewReplacer(
		"<<SCHEMA>>", descriptor.Text,
		"<<DATASET>>", descriptor.Dataset,
		"<<QUESTION>>", question,
	)
	return replacer.Replace(string(template)), nil
}
