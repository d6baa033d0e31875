package conversation

// Policy decides when the store should be compacted and how much history to
// retain. Thresholds are tunable because the right trigger depends on the
// model's context window; the defaults assume a large-context model and err
// toward compacting late.
type Policy struct {
	// MaxTokens triggers compaction when the estimated prompt size exceeds
	// it. Zero disables the token trigger.
	MaxTokens int64

	// MaxTurns triggers compaction on raw turn count, as a fallback for
	// sessions where usage reporting is unavailable. Zero disables it.
	MaxTurns int

	// RetainTurns is the suffix of recent turns kept verbatim through a
	// compaction.
	RetainTurns int
}

// DefaultPolicy returns thresholds sized for a 200k-token context window.
func DefaultPolicy() Policy {
	return Policy{
		MaxTokens:   160000,
		MaxTurns:    120,
		RetainTurns: 12,
	}
}

// ShouldCompact consults the thresholds against the store's current size.
func (p Policy) ShouldCompact(s *Store) bool {
	if p.MaxTokens > 0 && s.EstimatedTokens() > p.MaxTokens {
		return true
	}
	if p.MaxTurns > 0 && s.Len() > p.MaxTurns {
		return true
	}
	return false
}
