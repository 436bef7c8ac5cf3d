package llm

import "github.com/joaolucaswork/esp32-concierge/pkg/models"

// estimateRequestBytes approximates the serialized request size without
// committing to any one vendor's wire format: turn content plus a fixed
// per-turn/per-tool overhead for role tags, braces, and tool-call ids.
func estimateRequestBytes(history []models.Turn, system string, tools []ToolManifestEntry) int {
	const perTurnOverhead = 32
	const perToolOverhead = 64
	total := len(system) + perTurnOverhead
	for _, t := range history {
		total += len(t.Content) + perTurnOverhead
	}
	for _, t := range tools {
		total += len(t.Name) + len(t.Description) + len(t.Schema) + perToolOverhead
	}
	return total
}

// floorCount returns how many trailing turns must never be dropped: the
// most recent user turn plus everything after it (the pending tool-result
// turns a follow-up think() call appends while working through that
// user turn). If no user turn is present, only the last turn floors.
func floorCount(history []models.Turn) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			return len(history) - i
		}
	}
	if len(history) == 0 {
		return 0
	}
	return 1
}

// FitRequest drops oldest history turns until the estimated serialized
// size fits MaxRequestBytes, preserving the current user turn and any
// pending tool-result turns after it as the floor (§4.E). It never
// mutates the slice it is given.
func FitRequest(history []models.Turn, system string, tools []ToolManifestEntry) []models.Turn {
	trimmed := history
	floor := floorCount(history)
	for len(trimmed) > floor && estimateRequestBytes(trimmed, system, tools) > MaxRequestBytes {
		trimmed = trimmed[1:]
	}
	return trimmed
}
