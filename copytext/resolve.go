// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package copytext

import (
	"maps"
	"slices"

	"github.com/danielhkuo/affect-exp/models"
)

// Fallback copy for keys the bundle leaves out.
var (
	defaultTaskInstruction   = "Follow the instructions for this session."
	defaultValidationOptions = []any{"Yes", "No (false alarm)", "Not sure"}
	defaultDirectionOptions  = []any{"More positive", "More negative", "Mixed", "Unsure"}
)

// Resolve builds the copy variant for one experiment target and input
// modality. Keys under "common" are copied through; everything else is
// picked from the target's condition node with defaults filled in. Unknown
// targets resolve as self and an empty modality as hold.
func Resolve(b Bundle, target, modality string) map[string]any {
	if modality == "" {
		modality = models.ModalityHold
	}
	conditionKey := "self_condition"
	if target == models.TargetCharacter {
		conditionKey = "character_condition"
	}

	common := node(b, "common")
	condition := node(b, conditionKey)
	modalityNode := node(node(condition, "modalities"), modality)
	popup := node(condition, "popup_options")
	status := node(condition, "status_labels")
	postShift := node(condition, "post_shift_questions")
	validation := node(postShift, "validation")
	direction := node(postShift, "direction")
	mentalDemand := node(node(b, "end_of_text_questions"), "mental_demand")

	modalityInstructions := list(modalityNode, "instructions")
	onboarding := append(append([]any{}, list(common, "global_definition")...), modalityInstructions...)

	taskInstruction := any(defaultTaskInstruction)
	if s, ok := modalityNode["task_instruction"].(string); ok {
		taskInstruction = s
	} else if len(modalityInstructions) > 0 {
		taskInstruction = modalityInstructions[0]
	}

	var targetTitle any
	if s, ok := condition["title"].(string); ok {
		targetTitle = s
	}

	scale, ok := mentalDemand["scale"].(map[string]any)
	if !ok {
		scale = map[string]any{"min": 1, "max": 5}
	}

	out := maps.Clone(common)
	if out == nil {
		out = map[string]any{}
	}
	out["onboarding"] = onboarding
	out["task_instruction"] = taskInstruction
	out["target_title"] = targetTitle
	out["status_labels"] = map[string]any{
		"stable":   str(status, "stable", "Emotional state: stable"),
		"changing": str(status, "changing", "Emotional state: changing"),
	}
	out["popup_labels"] = map[string]any{
		models.StateMistake:   str(popup, "mistake", "Press was a mistake"),
		models.StateUncertain: str(popup, "changing", "Emotional state starting to change"),
		models.StateClear:     str(popup, "settled", "Emotional state settling"),
	}
	out["post_shift_questions"] = map[string]any{
		"validation": map[string]any{
			"question": str(validation, "question", "At this moment, did your understanding of emotional state change?"),
			"options":  listOr(validation, "options", defaultValidationOptions),
		},
		"direction": map[string]any{
			"question": str(direction, "question", "In which direction did the emotional state shift?"),
			"options":  listOr(direction, "options", defaultDirectionOptions),
		},
	}
	out["confidence_label"] = str(common, "confidence_label", "How confident are you about this shift?")
	out["end_of_text_questions"] = map[string]any{
		"mental_demand": map[string]any{
			"question": str(mentalDemand, "question", "How mentally demanding was this task?"),
			"scale":    scale,
		},
	}
	return out
}

func node(m map[string]any, key string) map[string]any {
	if n, ok := m[key].(map[string]any); ok {
		return n
	}
	return nil
}

func str(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

func list(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

func listOr(m map[string]any, key string, def []any) []any {
	if l, ok := m[key].([]any); ok {
		return l
	}
	return slices.Clone(def)
}
