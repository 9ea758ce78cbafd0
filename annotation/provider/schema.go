package provider

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a JSON schema accepted by OpenAI strict structured output:
// inlined definitions, every property required, no additional properties.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schemaObj, err := schemaToMap(reflector.Reflect(v))
	if err != nil {
		panic(err)
	}
	ensureStrict(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrict closes every object schema and marks all of its properties required. It walks
// properties, array items and schema-valued additionalProperties (map fields and untyped objects).
func ensureStrict(schema map[string]any) {
	props, _ := schema[propertiesKey].(map[string]any)
	children := make([]map[string]any, 0, len(props)+2)
	for _, p := range props {
		if m, ok := p.(map[string]any); ok {
			children = append(children, m)
		}
	}
	for _, key := range []string{itemsKey, additionalPropertiesKey} {
		if m, ok := schema[key].(map[string]any); ok {
			children = append(children, m)
		}
	}

	if t, _ := schema[typeKey].(string); t == "object" {
		schema[additionalPropertiesKey] = false
		if len(props) > 0 {
			schema[requiredKey] = slices.Sorted(maps.Keys(props))
		}
	}
	for _, c := range children {
		ensureStrict(c)
	}
}
