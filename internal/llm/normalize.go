package llm

// NormalizeTurns prepares a turn list for the converse contract, which
// requires the sequence to start with a user turn and to alternate roles.
//
// A leading assistant turn is dropped rather than rejected (it can appear
// after sliding-window truncation). Consecutive same-role turns are merged
// by concatenating their content blocks.
func NormalizeTurns(turns []Turn) []Turn {
	if len(turns) == 0 {
		return nil
	}

	if turns[0].Role == RoleAssistant {
		turns = turns[1:]
	}

	var out []Turn
	for _, t := range turns {
		if len(out) > 0 && out[len(out)-1].Role == t.Role {
			last := &out[len(out)-1]
			last.Content = append(last.Content, t.Content...)
			continue
		}
		// Copy the content slice so merging never aliases caller memory.
		merged := Turn{Role: t.Role, Content: append([]ContentBlock(nil), t.Content...)}
		out = append(out, merged)
	}

	return out
}
