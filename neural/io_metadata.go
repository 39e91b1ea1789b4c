package neural

// IODescriptor describes a brain input or output for display.
type IODescriptor struct {
	ID          string
	Label       string
	Description string
}

// BrainInputDescriptors returns metadata for all brain inputs, in input order.
func BrainInputDescriptors() []IODescriptor {
	return []IODescriptor{
		{ID: "gap_dx", Label: "Gap dX", Description: "Horizontal distance from agent center to gap center"},
		{ID: "to_upper", Label: "To Upper", Description: "Agent top minus gap upper edge"},
		{ID: "to_lower", Label: "To Lower", Description: "Gap lower edge minus agent bottom"},
		{ID: "bias", Label: "Bias", Description: "Constant bias input (always 1.0)"},
	}
}

// BrainOutputDescriptors returns metadata for all brain outputs. The index of
// the largest output is the chosen action.
func BrainOutputDescriptors() []IODescriptor {
	return []IODescriptor{
		{ID: "jump", Label: "Jump", Description: "Preference for jumping this tick"},
		{ID: "none", Label: "None", Description: "Preference for doing nothing"},
	}
}

// DescriptorIDs returns the IDs of descs in order.
func DescriptorIDs(descs []IODescriptor) []string {
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	return ids
}
