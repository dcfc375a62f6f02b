package analysis

import "github.com/glyphic/descry/graph"

// FieldMap maps a payload field name to the predicate it is emitted under.
// Each format analyzer holds a static table; fields without a mapping are
// silently ignored, so analyzers stay forward-compatible with payloads that
// grow new fields.
type FieldMap map[string]graph.Term

// EmitFields writes the mapped fields of a payload onto a node. Values pass
// through the literal table; unsupported value types are skipped.
func EmitFields(f *graph.Factory, node graph.Node, table FieldMap, values map[string]any) error {
	for name, value := range values {
		pred, ok := table[name]
		if !ok {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		lit, err := graph.NewLiteral(value)
		if err != nil {
			continue
		}
		if err := f.EmitLiteral(node, pred, lit); err != nil {
			return err
		}
	}
	return nil
}
