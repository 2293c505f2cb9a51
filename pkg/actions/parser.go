// Package actions implements the ActionBatchParser: turning raw, sometimes
// malformed LLM text into a validated models.ActionBatch.
package actions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
	"github.com/kaptinlin/jsonrepair"
)

// OCRRef is one recognized OCR region available for target resolution,
// addressable in an Action as "ocr_<Index>".
type OCRRef struct {
	Index int
	Box   models.BoundingBox
}

var ocrTargetPattern = regexp.MustCompile(`^ocr_(\d+)$`)

// globalActionKinds never require a target_identifier.
var globalActionKinds = map[models.ActionKind]bool{
	models.ActionScrollUp:   true,
	models.ActionScrollDown: true,
	models.ActionSwipeLeft:  true,
	models.ActionSwipeRight: true,
	models.ActionBack:       true,
	models.ActionResetApp:   true,
}

type wireBBox struct {
	TopLeft     [2]float64 `json:"top_left"`
	BottomRight [2]float64 `json:"bottom_right"`
}

type wireAction struct {
	Action            string    `json:"action"`
	ActionDesc        string    `json:"action_desc,omitempty"`
	TargetIdentifier  *string   `json:"target_identifier,omitempty"`
	TargetBoundingBox *wireBBox `json:"target_bounding_box,omitempty"`
	InputText         *string   `json:"input_text,omitempty"`
	Reasoning         string    `json:"reasoning"`
}

type wireBatch struct {
	Actions            []wireAction `json:"actions"`
	ExplorationJournal string       `json:"exploration_journal"`
	SignupCompleted    *bool        `json:"signup_completed,omitempty"`
}

// Parse extracts and validates an ActionBatch from raw LLM text. ocr
// resolves "ocr_<i>" targets to bounding boxes; pass nil when OCR wasn't
// part of this request's context.
func Parse(raw string, ocr []OCRRef) (*models.ActionBatch, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, fmt.Errorf("actions: empty response")
	}

	batch, err := decodeWireBatch(candidate)
	if err != nil {
		return nil, err
	}

	if len(batch.Actions) < models.MinActionsPerBatch {
		return nil, fmt.Errorf("actions: batch must contain at least %d action(s)", models.MinActionsPerBatch)
	}
	if len(batch.Actions) > models.MaxActionsPerBatch {
		return nil, fmt.Errorf("actions: batch of %d exceeds maximum of %d", len(batch.Actions), models.MaxActionsPerBatch)
	}

	result := &models.ActionBatch{
		Journal:         batch.ExplorationJournal,
		SignupCompleted: batch.SignupCompleted != nil && *batch.SignupCompleted,
	}

	for i, wa := range batch.Actions {
		action, err := validateAction(wa, ocr)
		if err != nil {
			return nil, fmt.Errorf("actions: action %d: %w", i, err)
		}
		result.Actions = append(result.Actions, action)
	}

	return result, nil
}

// decodeWireBatch tries the batch shape first, then falls back to a bare
// single Action (the legacy shape), repairing near-miss JSON before
// giving up.
func decodeWireBatch(candidate string) (*wireBatch, error) {
	var batch wireBatch
	if err := json.Unmarshal([]byte(candidate), &batch); err == nil && len(batch.Actions) > 0 {
		return &batch, nil
	}

	var single wireAction
	if err := json.Unmarshal([]byte(candidate), &single); err == nil && single.Action != "" {
		return &wireBatch{Actions: []wireAction{single}}, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr == nil {
		var repairedBatch wireBatch
		if err := json.Unmarshal([]byte(repaired), &repairedBatch); err == nil && len(repairedBatch.Actions) > 0 {
			return &repairedBatch, nil
		}
		var repairedSingle wireAction
		if err := json.Unmarshal([]byte(repaired), &repairedSingle); err == nil && repairedSingle.Action != "" {
			return &wireBatch{Actions: []wireAction{repairedSingle}}, nil
		}
	}

	return nil, fmt.Errorf("actions: malformed response: could not parse as batch or legacy single action")
}

func validateAction(wa wireAction, ocr []OCRRef) (models.Action, error) {
	kind := models.ActionKind(wa.Action)
	if !models.IsValidActionKind(kind) {
		return models.Action{}, fmt.Errorf("unrecognized action kind %q", wa.Action)
	}

	reasoning := strings.TrimSpace(wa.Reasoning)
	if reasoning == "" {
		return models.Action{}, fmt.Errorf("reasoning is required")
	}

	target := ""
	if wa.TargetIdentifier != nil {
		target = strings.TrimSpace(*wa.TargetIdentifier)
	}
	if target == "" && !globalActionKinds[kind] {
		return models.Action{}, fmt.Errorf("target_identifier is required for action kind %q", kind)
	}

	var bbox *models.BoundingBox
	if wa.TargetBoundingBox != nil {
		bbox = &models.BoundingBox{
			TopLeft:     models.Point{X: int(wa.TargetBoundingBox.TopLeft[0]), Y: int(wa.TargetBoundingBox.TopLeft[1])},
			BottomRight: models.Point{X: int(wa.TargetBoundingBox.BottomRight[0]), Y: int(wa.TargetBoundingBox.BottomRight[1])},
		}
	}

	if bbox == nil {
		if m := ocrTargetPattern.FindStringSubmatch(target); m != nil {
			if resolved := resolveOCR(m[1], ocr); resolved != nil {
				bbox = resolved
			}
		}
	}

	text := ""
	if wa.InputText != nil {
		text = *wa.InputText
	}
	if (kind == models.ActionInput || kind == models.ActionReplaceText) && text == "" {
		return models.Action{}, fmt.Errorf("input_text is required for action kind %q", kind)
	}

	return models.Action{
		Kind:        kind,
		Target:      target,
		BoundingBox: bbox,
		Text:        text,
		Reasoning:   reasoning,
	}, nil
}

func resolveOCR(indexStr string, ocr []OCRRef) *models.BoundingBox {
	var idx int
	if _, err := fmt.Sscanf(indexStr, "%d", &idx); err != nil {
		return nil
	}
	for _, ref := range ocr {
		if ref.Index == idx {
			box := ref.Box
			return &box
		}
	}
	return nil
}
