package domain

import (
	"fmt"
	"strings"
)

// FieldType is the JSON type the extraction backend must produce for a field
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
)

// FieldRole says which normalized attribute a retailer-specific field feeds
type FieldRole string

const (
	RoleTitle      FieldRole = "title"
	RolePrice      FieldRole = "price"
	RoleIdentifier FieldRole = "identifier"
)

// SchemaField describes one field the extraction backend should return
type SchemaField struct {
	Name     string    `mapstructure:"name" json:"name" validate:"required"`
	Type     FieldType `mapstructure:"type" json:"type" validate:"oneof=string number"`
	Role     FieldRole `mapstructure:"role" json:"role,omitempty" validate:"omitempty,oneof=title price identifier"`
	Required bool      `mapstructure:"required" json:"required"`
}

// Schema is the ordered field set requested from a retailer page
type Schema []SchemaField

// Field returns the field mapped to the given role
func (s Schema) Field(role FieldRole) (SchemaField, bool) {
	for _, f := range s {
		if f.Role == role {
			return f, true
		}
	}
	return SchemaField{}, false
}

// Check verifies that the schema can be normalized into a ProductExtract:
// unique names, exactly one numeric price field and exactly one string title field.
func (s Schema) Check() error {
	seen := make(map[string]bool, len(s))
	roles := make(map[FieldRole]int)
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("%w: schema field without name", ErrInvalidRetailerConfig)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate schema field %q", ErrInvalidRetailerConfig, f.Name)
		}
		seen[f.Name] = true
		if f.Role != "" {
			roles[f.Role]++
		}
	}

	if roles[RolePrice] != 1 || roles[RoleTitle] != 1 || roles[RoleIdentifier] > 1 {
		return fmt.Errorf("%w: schema needs exactly one price and one title field", ErrInvalidRetailerConfig)
	}
	if price, _ := s.Field(RolePrice); price.Type != FieldTypeNumber {
		return fmt.Errorf("%w: price field %q must be a number", ErrInvalidRetailerConfig, price.Name)
	}
	if title, _ := s.Field(RoleTitle); title.Type != FieldTypeString {
		return fmt.Errorf("%w: title field %q must be a string", ErrInvalidRetailerConfig, title.Name)
	}
	return nil
}

// JSONSchema renders the schema as a JSON Schema object for the extraction backend
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s))
	required := make([]string, 0, len(s))
	for _, f := range s {
		properties[f.Name] = map[string]any{"type": string(f.Type)}
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// RetailerConfig is one entry of the static retailer table
type RetailerConfig struct {
	Key            string `mapstructure:"key" json:"key" validate:"required,lowercase"`
	Name           string `mapstructure:"name" json:"name" validate:"required"`
	BaseURL        string `mapstructure:"base_url" json:"baseUrl" validate:"required,url"`
	ProductPath    string `mapstructure:"product_path" json:"productPath" validate:"required,startswith=/"`
	Schema         Schema `mapstructure:"schema" json:"schema" validate:"min=1,dive"`
	GuidancePrompt string `mapstructure:"guidance_prompt" json:"guidancePrompt,omitempty"`
	Baseline       bool   `mapstructure:"baseline" json:"baseline"`
}

// IdentifierPlaceholder is substituted with the product identifier in ProductPath
const IdentifierPlaceholder = "{identifier}"

// ProductURL composes the retailer product URL for an already escaped identifier
func (r RetailerConfig) ProductURL(escapedIdentifier string) string {
	path := strings.ReplaceAll(r.ProductPath, IdentifierPlaceholder, escapedIdentifier)
	return strings.TrimSuffix(r.BaseURL, "/") + path
}

// ExtractRequest is a single extraction call against one retailer page
type ExtractRequest struct {
	RetailerKey    string
	URL            string
	Schema         Schema
	GuidancePrompt string
}
