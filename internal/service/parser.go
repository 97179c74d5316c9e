package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/novafit/nutriparse/backend/config"
	"github.com/novafit/nutriparse/backend/internal/types"
)

const parserSystemPrompt = `You are a strict food parser for a fitness application.
You only process food entries.
You convert Spanish input into structured English JSON.
You do not provide explanations.
Extract all foods mentioned, even when the text includes multiple meals (breakfast/lunch/dinner/snacks).
Ignore meal labels in the output and return only food items.
If input is not food-related, return:
{ "error": "invalid_domain" }
If quantity is missing or unclear, return:
{ "name": "english food name", "quantity": 1, "unit": "serving" }
If input contains multiple foods, return:
{ "items": [{"name": "english food name", "quantity": number, "unit": "grams" or "serving"}] }
If the user gives a general food input with no explicit amount, infer one standard serving.
Output must be valid JSON only.
No additional text.`

const parserRequestTimeout = 20 * time.Second

// containerKeys are the response keys the shape-tolerant scan recurses into.
var containerKeys = []string{"items", "foods", "meals", "data", "result", "entries"}

// ParserService turns free text into structured food items by delegating to a
// Gemini-compatible language-understanding API and repairing its output.
type ParserService struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

// Ensure ParserService implements IParserService
var _ IParserService = (*ParserService)(nil)

// NewParserService creates a new ParserService instance
func NewParserService(cfg *config.Config) *ParserService {
	return &ParserService{
		apiKey: cfg.ParserAPIKey,
		apiURL: cfg.ParserAPIURL,
		model:  cfg.ParserModel,
		client: &http.Client{Timeout: parserRequestTimeout},
	}
}

// MealSection is one meal-scoped slice of the input text.
type MealSection struct {
	MealType string
	Text     string
}

var (
	// \w is ASCII-only in Go regexps, so accented verb endings (cené,
	// desayuné) need the explicit vowel class.
	mealKeywordPatterns = []struct {
		mealType string
		re       *regexp.Regexp
	}{
		{"breakfast", regexp.MustCompile(`(?i)\b(desayun|breakfast)[\wáéíóú]*`)},
		{"lunch", regexp.MustCompile(`(?i)\b(almuerz|almorc|lunch)[\wáéíóú]*`)},
		{"dinner", regexp.MustCompile(`(?i)\b(cen[aeoéó]|dinner)[\wáéíóú]*`)},
		{"snack", regexp.MustCompile(`(?i)\b(meriend|merend|snack|colaci[oó]n)[\wáéíóú]*`)},
	}

	temporalPattern = regexp.MustCompile(`(?i)\b(luego|despu[eé]s|then|later)\b`)

	// A temporal connector directly followed by a dessert phrase keeps the
	// dessert attached to the preceding meal.
	dessertContinuation = regexp.MustCompile(`(?i)^\s*(de\s+postre|postre|dessert)\b`)

	// Filler between two markers that should collapse into one boundary.
	markerFiller = regexp.MustCompile(`(?i)^(\s|,|;|y|and)*$`)

	numericQuantityPattern = regexp.MustCompile(`\d`)
)

type textMarker struct {
	start    int
	end      int
	mealType string
}

// SplitTextByMealType splits input into ordered meal sections using meal
// keywords and temporal connectors. Text with no markers yields a single
// generic section.
func (s *ParserService) SplitTextByMealType(text string) []MealSection {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var markers []textMarker
	for _, kw := range mealKeywordPatterns {
		for _, loc := range kw.re.FindAllStringIndex(trimmed, -1) {
			markers = append(markers, textMarker{start: loc[0], end: loc[1], mealType: kw.mealType})
		}
	}
	for _, loc := range temporalPattern.FindAllStringIndex(trimmed, -1) {
		if dessertContinuation.MatchString(trimmed[loc[1]:]) {
			continue
		}
		markers = append(markers, textMarker{start: loc[0], end: loc[1], mealType: "meal"})
	}

	if len(markers) == 0 {
		return []MealSection{{MealType: "meal", Text: trimmed}}
	}

	sortMarkers(markers)
	markers = collapseAdjacentMarkers(trimmed, markers)

	var sections []MealSection
	if lead := strings.TrimSpace(trimmed[:markers[0].start]); hasWord(lead) {
		sections = append(sections, MealSection{MealType: "meal", Text: trimTrailingConnector(lead)})
	}
	for i, marker := range markers {
		endOfSegment := len(trimmed)
		if i+1 < len(markers) {
			endOfSegment = markers[i+1].start
		}
		segment := strings.TrimSpace(trimmed[marker.end:endOfSegment])
		if !hasWord(segment) {
			continue
		}
		sections = append(sections, MealSection{MealType: marker.mealType, Text: trimTrailingConnector(segment)})
	}

	if len(sections) == 0 {
		return []MealSection{{MealType: "meal", Text: trimmed}}
	}
	return sections
}

func sortMarkers(markers []textMarker) {
	for i := 1; i < len(markers); i++ {
		for j := i; j > 0 && markers[j].start < markers[j-1].start; j-- {
			markers[j], markers[j-1] = markers[j-1], markers[j]
		}
	}
}

// collapseAdjacentMarkers drops a temporal marker that is immediately
// followed by a meal keyword ("y luego cené ..." is one boundary, not two).
func collapseAdjacentMarkers(text string, markers []textMarker) []textMarker {
	var out []textMarker
	for i, marker := range markers {
		if marker.mealType == "meal" && i+1 < len(markers) {
			between := text[marker.end:markers[i+1].start]
			if markerFiller.MatchString(between) {
				continue
			}
		}
		out = append(out, marker)
	}
	return out
}

func hasWord(text string) bool {
	for _, r := range text {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127 {
			return true
		}
	}
	return false
}

func trimTrailingConnector(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, suffix := range []string{" y", " and", ","} {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}
	return strings.TrimSpace(trimmed)
}

// Extract parses one text segment into structured food items.
func (s *ParserService) Extract(ctx context.Context, text string) ([]types.ParsedItem, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 {
		return nil, ErrInsufficientData
	}

	payload, err := s.callParser(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	if errCode := extractErrorCode(payload); errCode != "" {
		switch errCode {
		case "invalid_domain":
			return nil, ErrInvalidDomain
		case "insufficient_data":
			return nil, ErrInsufficientData
		default:
			return nil, ErrMalformedParserResponse
		}
	}

	items := collectItems(payload)
	if len(items) == 0 {
		return nil, ErrMalformedParserResponse
	}

	return expandCompositeItems(trimmed, items), nil
}

// callParser sends the segment to the language-understanding API and returns
// the decoded JSON payload from its text response.
func (s *ParserService) callParser(ctx context.Context, text string) (any, error) {
	if s.apiKey == "" {
		return nil, ErrMissingParserAPIKey
	}

	reqBody := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": parserSystemPrompt}},
		},
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": text}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      0.1,
			"topK":             1,
			"topP":             0.1,
			"maxOutputTokens":  2048,
			"responseMimeType": "application/json",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parser request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", s.apiURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, ErrParserRequestFailed
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("parser request failed: %v", err)
		return nil, ErrParserRequestFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrParserQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("parser returned status %d", resp.StatusCode)
		return nil, ErrParserRequestFailed
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrParserRequestFailed
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, ErrMalformedParserResponse
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, ErrMalformedParserResponse
	}

	rawText := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if rawText == "" {
		return nil, ErrMalformedParserResponse
	}

	candidate := extractJSONCandidate(rawText)

	var payload any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		log.Printf("parser returned invalid JSON: %s", rawText)
		return nil, ErrMalformedParserResponse
	}
	return payload, nil
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// extractJSONCandidate pulls the first balanced object/array span out of model
// text, tolerating markdown fences and prose wrappers.
func extractJSONCandidate(rawText string) string {
	cleaned := strings.TrimSpace(rawText)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = fenceClose.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)
	}

	if (strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}")) ||
		(strings.HasPrefix(cleaned, "[") && strings.HasSuffix(cleaned, "]")) {
		return cleaned
	}

	firstObj := strings.Index(cleaned, "{")
	firstArr := strings.Index(cleaned, "[")
	start := -1
	for _, idx := range []int{firstObj, firstArr} {
		if idx != -1 && (start == -1 || idx < start) {
			start = idx
		}
	}
	if start == -1 {
		return cleaned
	}

	end := strings.LastIndex(cleaned, "}")
	if arrEnd := strings.LastIndex(cleaned, "]"); arrEnd > end {
		end = arrEnd
	}
	if end == -1 || end <= start {
		return cleaned
	}

	return cleaned[start : end+1]
}

// extractErrorCode returns the parser-signaled error code, if any.
func extractErrorCode(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	code, _ := obj["error"].(string)
	return code
}

// collectItems recursively scans an arbitrarily shaped payload for anything
// item-shaped (name + quantity + unit), descending into known container keys.
func collectItems(node any) []types.ParsedItem {
	switch value := node.(type) {
	case []any:
		var items []types.ParsedItem
		for _, element := range value {
			items = append(items, collectItems(element)...)
		}
		return items
	case map[string]any:
		if item, ok := asParsedItem(value); ok {
			return []types.ParsedItem{item}
		}
		var items []types.ParsedItem
		for _, key := range containerKeys {
			if child, ok := value[key]; ok {
				items = append(items, collectItems(child)...)
			}
		}
		return items
	default:
		return nil
	}
}

func asParsedItem(obj map[string]any) (types.ParsedItem, bool) {
	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return types.ParsedItem{}, false
	}

	quantity, ok := asFloat(obj["quantity"])
	if !ok || quantity <= 0 {
		return types.ParsedItem{}, false
	}

	unit, _ := obj["unit"].(string)
	unit = strings.TrimSpace(unit)
	if unit == "" || len(unit) > 20 {
		return types.ParsedItem{}, false
	}

	return types.ParsedItem{Name: name, Quantity: quantity, Unit: unit}, true
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var compositeConnectors = []string{" with ", " and ", "/", "+"}

// expandCompositeItems splits items whose name covers several trackable
// components. "coffee with milk" expressed without an explicit numeric
// quantity in the original text always becomes two half-cup items, whatever
// quantity/unit the parser guessed.
func expandCompositeItems(originalText string, items []types.ParsedItem) []types.ParsedItem {
	var expanded []types.ParsedItem
	for _, item := range items {
		lowered := strings.ToLower(item.Name)

		if isCoffeeWithMilk(lowered) && !numericQuantityPattern.MatchString(originalText) {
			expanded = append(expanded,
				types.ParsedItem{Name: "coffee", Quantity: 0.5, Unit: "cup"},
				types.ParsedItem{Name: "milk", Quantity: 0.5, Unit: "cup"},
			)
			continue
		}

		components := splitCompositeName(item.Name)
		if len(components) < 2 {
			expanded = append(expanded, item)
			continue
		}

		share := item.Quantity / float64(len(components))
		for _, component := range components {
			expanded = append(expanded, types.ParsedItem{
				Name:     component,
				Quantity: share,
				Unit:     item.Unit,
			})
		}
	}
	return expanded
}

func isCoffeeWithMilk(loweredName string) bool {
	return strings.Contains(loweredName, "coffee") && strings.Contains(loweredName, "milk")
}

func splitCompositeName(name string) []string {
	parts := []string{name}
	for _, connector := range compositeConnectors {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, connector)...)
		}
		parts = next
	}

	var components []string
	for _, part := range parts {
		cleaned := strings.TrimSpace(part)
		if cleaned != "" {
			components = append(components, cleaned)
		}
	}
	return components
}
