package sign

// TeamIDPlaceholder is the placeholder token replaced by the signing team
// identifier when constraint declarations are evaluated.
const TeamIDPlaceholder = "$TEAMID"

// EvalPlaceholders returns a copy of a constraint declaration with every
// recognized placeholder leaf substituted. String leaves equal to
// TeamIDPlaceholder become teamID; when teamID is empty the literal
// placeholder text is kept. Nested dictionaries and arrays are transformed
// recursively; all other value types pass through unchanged.
//
// The transform is pure: the input value is never modified.
func EvalPlaceholders(v interface{}, teamID string) interface{} {
	switch val := v.(type) {
	case string:
		if val == TeamIDPlaceholder && teamID != "" {
			return teamID
		}
		return val
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = EvalPlaceholders(item, teamID)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = EvalPlaceholders(item, teamID)
		}
		return out
	default:
		return v
	}
}
