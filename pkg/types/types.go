package types

// Classification is what a vision model reports about a texture
type Classification struct {
	Label       string   `json:"label"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Unknown is returned when the model answer cannot be used
func Unknown(reason string, tags ...string) *Classification {
	return &Classification{
		Label:       "unknown",
		Confidence:  0,
		Description: reason,
		Tags:        append([]string{"fallback"}, tags...),
	}
}
