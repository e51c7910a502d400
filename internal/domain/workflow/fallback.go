package workflow

// fallbackLabels is the built-in node label table used when the backend
// cannot supply a definition or a definition omits a node. Keys match
// the well-known knowledge lifecycle node ids.
var fallbackLabels = map[string]string{
	"pending":    "Pending Review",
	"reviewing":  "In Review",
	"processing": "Processing",
	"published":  "Published",
	"rejected":   "Rejected",
	"archived":   "Archived",
	"failed":     "Import Failed",
}

// FallbackLabel resolves a node id against the static table, returning
// the raw id when unknown.
func FallbackLabel(id string) string {
	if label, ok := fallbackLabels[id]; ok {
		return label
	}
	return id
}

// FallbackDefinition builds the degraded, read-only definition used
// when the workflow fetch fails: the resource's raw status is shown via
// the static label table and no actions are offered.
func FallbackDefinition(resourceType string) *Definition {
	return &Definition{
		ResourceType: resourceType,
		Degraded:     true,
	}
}
