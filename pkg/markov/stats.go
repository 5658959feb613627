package markov

// ModelStats holds aggregated statistics for a Model.
type ModelStats struct {
	Order          int `json:"order"`           // The order k of the chain
	Contexts       int `json:"contexts"`        // The number of distinct k-length contexts
	Transitions    int `json:"transitions"`     // The number of distinct context->next links
	TotalFrequency int `json:"total_frequency"` // The sum of all link frequencies; equal to the training text length
	AlphabetSize   int `json:"alphabet_size"`   // The number of distinct runes observed
}

// Stats returns a snapshot of statistics for the model.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{
		Order:        m.order,
		Contexts:     len(m.table),
		AlphabetSize: len(m.alphabet),
	}
	for _, c := range m.table {
		stats.Transitions += len(c.next)
		stats.TotalFrequency += c.total
	}
	return stats
}
