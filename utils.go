package tagpull

// capCandidates returns in[:min(limit, len(in))] if limit>0; otherwise in.
func capCandidates(in []Candidate, limit int) []Candidate {
	if limit > 0 && limit < len(in) {
		return in[:limit]
	}

	return in
}
