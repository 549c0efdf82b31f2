package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// priceNoise is stripped from price strings before parsing, e.g. "$1,299.00 USD"
var priceNoise = strings.NewReplacer("$", "", ",", "", "USD", "", "usd", "", " ", "", " ", "")

// ValidateExtract checks a raw extraction result against the retailer schema
// and returns the typed product view. A failed result is returned as its error.
func ValidateExtract(schema domain.Schema, result domain.ExtractResult) (*domain.ProductExtract, error) {
	if err := result.Err(); err != nil {
		return nil, err
	}

	values := make(map[domain.FieldRole]any, 3)
	for _, field := range schema {
		raw, present := result.Fields[field.Name]
		if !present || raw == nil {
			if field.Required || field.Role == domain.RolePrice || field.Role == domain.RoleTitle {
				return nil, fmt.Errorf("%w: missing field %q", domain.ErrSchemaValidation, field.Name)
			}
			continue
		}

		value, err := coerceField(field, raw)
		if err != nil {
			return nil, err
		}
		if field.Role != "" {
			values[field.Role] = value
		}
	}

	extract := &domain.ProductExtract{}
	extract.Title, _ = values[domain.RoleTitle].(string)
	extract.Price, _ = values[domain.RolePrice].(float64)
	extract.Identifier, _ = values[domain.RoleIdentifier].(string)
	extract.Title = strings.TrimSpace(extract.Title)

	if err := validate.Struct(extract); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaValidation, err)
	}
	return extract, nil
}

// coerceField converts a decoded JSON value to the declared field type.
// Numbers may arrive as numeric strings; any other mismatch is a validation failure.
func coerceField(field domain.SchemaField, raw any) (any, error) {
	switch field.Type {
	case domain.FieldTypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			// identifiers such as barcodes are sometimes emitted as numbers
			if field.Role == domain.RoleIdentifier && v == math.Trunc(v) {
				return decimal.NewFromFloat(v).String(), nil
			}
		}
		return nil, fmt.Errorf("%w: field %q is %T, want string", domain.ErrSchemaValidation, field.Name, raw)

	case domain.FieldTypeNumber:
		n, err := toNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", domain.ErrSchemaValidation, field.Name, err)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: field %q is not finite", domain.ErrSchemaValidation, field.Name)
		}
		return n, nil
	}

	return nil, fmt.Errorf("%w: field %q has unknown type %q", domain.ErrSchemaValidation, field.Name, field.Type)
}

func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		cleaned := priceNoise.Replace(strings.TrimSpace(v))
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number", v)
		}
		f, _ := d.Float64()
		return f, nil
	default:
		return 0, fmt.Errorf("value is %T, want number", raw)
	}
}
