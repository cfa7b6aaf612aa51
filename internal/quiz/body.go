package quiz

import (
	"encoding/json"
	"fmt"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

// Stage ids the ECML player navigates between. The values are arbitrary but
// must match between the stage list and startStage.
const (
	questionStageID  = "d9ae4d48-389a-4757-867c-dc6a4beae92e"
	questionSetID    = "6d187a84-6ee0-4513-96ce-1d856e187c9b"
	summaryStageID   = "summary_stage_id"
	summaryPluginID  = "summary_plugin_id"
	stageConfigCdata = `{"opacity":100,"strokeWidth":1,"stroke":"rgba(255, 255, 255, 0)","autoplay":false,"visible":true,"color":"#FFFFFF","genieControls":false,"instructions":""}`
)

// manifest and plugin-manifest carried verbatim in every quiz body.
var (
	bodyManifest = map[string]any{
		"media": []map[string]any{
			{"id": "org.ekstep.questionunit.mcq", "plugin": "org.ekstep.questionunit.mcq", "ver": "1.3", "src": "/content-plugins/org.ekstep.questionunit.mcq-1.3/renderer/plugin.js", "type": "plugin"},
			{"id": "org.ekstep.questionunit.mcq_manifest", "plugin": "org.ekstep.questionunit.mcq", "ver": "1.3", "src": "/content-plugins/org.ekstep.questionunit.mcq-1.3/manifest.json", "type": "json"},
			{"id": "org.ekstep.questionset", "plugin": "org.ekstep.questionset", "ver": "1.0", "src": "/content-plugins/org.ekstep.questionset-1.0/renderer/plugin.js", "type": "plugin"},
			{"id": "org.ekstep.questionset_manifest", "plugin": "org.ekstep.questionset", "ver": "1.0", "src": "/content-plugins/org.ekstep.questionset-1.0/manifest.json", "type": "json"},
			{"id": "org.ekstep.questionunit", "plugin": "org.ekstep.questionunit", "ver": "1.2", "src": "/content-plugins/org.ekstep.questionunit-1.2/renderer/plugin.js", "type": "plugin"},
			{"id": "org.ekstep.questionunit_manifest", "plugin": "org.ekstep.questionunit", "ver": "1.2", "src": "/content-plugins/org.ekstep.questionunit-1.2/manifest.json", "type": "json"},
			{"id": "org.ekstep.summary", "plugin": "org.ekstep.summary", "ver": "1.0", "src": "/content-plugins/org.ekstep.summary-1.0/renderer/plugin.js", "type": "plugin"},
			{"id": "org.ekstep.summary_manifest", "plugin": "org.ekstep.summary", "ver": "1.0", "src": "/content-plugins/org.ekstep.summary-1.0/manifest.json", "type": "json"},
			{"id": "summaryImage", "src": "/assets/public/content/summaryImage_1460737240169.png", "type": "image"},
		},
	}
	bodyPluginManifest = map[string]any{
		"plugin": []map[string]any{
			{"id": "org.ekstep.questionset", "ver": "1.0", "type": "plugin", "depends": ""},
			{"id": "org.ekstep.questionunit", "ver": "1.2", "type": "plugin", "depends": ""},
			{"id": "org.ekstep.questionunit.mcq", "ver": "1.3", "type": "plugin", "depends": "org.ekstep.questionunit"},
			{"id": "org.ekstep.summary", "ver": "1.0", "type": "plugin", "depends": ""},
		},
	}
)

// formatQuestion turns a freshly-read assessment item into the in-body
// question element the ECML player expects. The item body's data and config
// sections are re-embedded as CDATA strings.
func formatQuestion(identifier string, item sunbird.AssessmentItem) (map[string]any, error) {
	raw, _ := item["body"].(string)
	if raw == "" {
		return nil, fmt.Errorf("assessment item %s has no body", identifier)
	}
	var body struct {
		Data struct {
			Data   json.RawMessage `json:"data"`
			Config json.RawMessage `json:"config"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("parse body of assessment item %s: %w", identifier, err)
	}
	return map[string]any{
		"id":         identifier,
		"type":       "mcq",
		"pluginId":   "org.ekstep.questionunit.mcq",
		"pluginVer":  "1.3",
		"templateId": "horizontalMCQ",
		"data":       map[string]any{"__cdata": string(body.Data.Data)},
		"config":     map[string]any{"__cdata": string(body.Data.Config)},
		"w":          80,
		"h":          85,
		"x":          9,
		"y":          6,
	}, nil
}

// buildQuizBody assembles the full ECML body: one question stage holding the
// question set, plus the summary stage.
func buildQuizBody(name string, totalScore float64, items []sunbird.AssessmentItem, questions []map[string]any) (string, error) {
	itemsCdata, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal question set data: %w", err)
	}
	setConfig, err := json.Marshal(map[string]any{
		"title":             name,
		"max_score":         totalScore,
		"allow_skip":        true,
		"show_feedback":     false,
		"shuffle_questions": false,
		"shuffle_options":   false,
		"total_items":       len(questions),
		"btn_edit":          "Edit",
	})
	if err != nil {
		return "", fmt.Errorf("marshal question set config: %w", err)
	}

	questionStage := map[string]any{
		"x": 0, "y": 0, "w": 100, "h": 100,
		"id":     questionStageID,
		"rotate": nil,
		"config": map[string]any{"__cdata": stageConfigCdata},
		"param": []map[string]any{
			{"name": "next", "value": summaryStageID},
		},
		"manifest": map[string]any{"media": []any{}},
		"org.ekstep.questionset": []map[string]any{
			{
				"x": 9, "y": 6, "w": 80, "h": 85,
				"rotate":             0,
				"z-index":            0,
				"id":                 questionSetID,
				"data":               map[string]any{"__cdata": string(itemsCdata)},
				"config":             map[string]any{"__cdata": string(setConfig)},
				"org.ekstep.question": questions,
			},
		},
	}
	summaryStage := map[string]any{
		"x": 0, "y": 0, "w": 100, "h": 100,
		"rotate":   nil,
		"config":   map[string]any{"__cdata": stageConfigCdata},
		"id":       summaryStageID,
		"manifest": map[string]any{"media": []map[string]any{{"assetId": "summaryImage"}}},
		"org.ekstep.summary": []map[string]any{
			{
				"config":  map[string]any{"__cdata": `{"opacity":100,"strokeWidth":1,"stroke":"rgba(255, 255, 255, 0)","autoplay":false,"visible":true}`},
				"id":      summaryPluginID,
				"rotate":  0,
				"x":       6.69,
				"y":       -27.9,
				"w":       77.45,
				"h":       125.53,
				"z-index": 0,
			},
		},
	}

	body := map[string]any{
		"theme": map[string]any{
			"id":                   "theme",
			"version":              "1.0",
			"startStage":           questionStageID,
			"stage":                []map[string]any{questionStage, summaryStage},
			"manifest":             bodyManifest,
			"plugin-manifest":      bodyPluginManifest,
			"compatibilityVersion": 2,
		},
	}
	out, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal quiz body: %w", err)
	}
	return string(out), nil
}

// updateMetadataFields is the projection of an assessment item sent back on
// update. Server-managed fields (identifier, status, timestamps) stay out.
var updateMetadataFields = []string{
	"code", "isShuffleOption", "body", "language", "max_score",
	"templateType", "qlevel", "category", "name", "title", "copyright",
	"organisation", "type", "framework", "itemType", "version", "channel",
	"templateId", "template", "questionTitle", "isPartialScore",
	"evalUnordered", "options",
}

// updateMetadata projects the mutable fields of a read item into an update
// payload.
func updateMetadata(item sunbird.AssessmentItem) sunbird.AssessmentItem {
	out := make(sunbird.AssessmentItem, len(updateMetadataFields))
	for _, f := range updateMetadataFields {
		if v, ok := item[f]; ok {
			out[f] = v
		}
	}
	return out
}

// setItemLanguage stamps the language onto the item metadata and, when the
// item carries a parseable body, onto the body's config metadata as well.
func setItemLanguage(item sunbird.AssessmentItem, language string) error {
	item["language"] = []string{language}
	raw, _ := item["body"].(string)
	if raw == "" {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return fmt.Errorf("parse item body: %w", err)
	}
	if data, ok := body["data"].(map[string]any); ok {
		if cfg, ok := data["config"].(map[string]any); ok {
			if meta, ok := cfg["metadata"].(map[string]any); ok {
				meta["language"] = []string{language}
			}
		}
	}
	out, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal item body: %w", err)
	}
	item["body"] = string(out)
	return nil
}
