package enrich

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roundtable-cli/internal/inference"
	"github.com/sells-group/roundtable-cli/internal/model"
)

const systemPrompt = "You are an assistant that analyzes roundtable data. " +
	"You will be given a roundtable 'description' plus its 'panelist' information. " +
	"Please generate and return new fields as structured JSON."

const taskPrompt = `TASKS:
1) description_one-sentence: Summarize 'description' in exactly one sentence.
2) description_summary: Summarize 'description' in exactly 2 or 3 sentences.
3) keywords: Extract 3-6 short topical keywords or key phrases.
4) panelist_ct: The integer count of the total number of panelists.
5) institutions: A list of institutions or affiliations gleaned from 'title_{n}' or 'description_{n}'.
6) specialities: A list of the specialized subject areas gleaned from 'title_{n}' or 'description_{n}'.

Return your answer ONLY as valid JSON with these exact fields:
{
   "description_one-sentence": ...,
   "description_summary": ...,
   "keywords": [...],
   "panelist_ct": number,
   "institutions": [...],
   "specialities": [...]
}`

// buildPrompt renders the user prompt for one record. Panelist fields are
// listed as name_i/title_i/description_i lines in index order.
func buildPrompt(r model.EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Roundtable ID: %d\n", r.ID)
	fmt.Fprintf(&b, "Title: %s\n\n", r.Title)
	fmt.Fprintf(&b, "Description:\n%s\n\n", r.Description)
	b.WriteString("Panelists:\n")
	for _, kv := range model.FlattenPanelists(r.Panelists) {
		fmt.Fprintf(&b, "%s: %s\n", kv[0], kv[1])
	}
	b.WriteString("\n\n")
	b.WriteString(taskPrompt)
	return b.String()
}

// decodeFields converts a service response into enrichment fields. Lists
// accept a bare string as a one-element list and skip non-string items.
func decodeFields(resp inference.Response) (model.EnrichedFields, error) {
	out := model.EmptyEnrichedFields()
	var err error

	if out.SummaryOneSentence, err = decodeString(resp[model.KeySummaryOneSentence]); err != nil {
		return out, eris.Wrap(err, model.KeySummaryOneSentence)
	}
	if out.SummaryShort, err = decodeString(resp[model.KeySummaryShort]); err != nil {
		return out, eris.Wrap(err, model.KeySummaryShort)
	}
	if out.PanelistCount, err = decodeCount(resp[model.KeyPanelistCount]); err != nil {
		return out, eris.Wrap(err, model.KeyPanelistCount)
	}
	for _, field := range model.ListFields() {
		values, err := decodeList(resp[field])
		if err != nil {
			return out, eris.Wrap(err, field)
		}
		out.SetList(field, values)
	}
	return out, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", eris.Wrap(inference.ErrInvalidResponse, "expected string")
	}
	return strings.TrimSpace(s), nil
}

func decodeCount(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	return 0, eris.Wrap(inference.ErrInvalidResponse, "expected integer")
}

func decodeList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrap(inference.ErrInvalidResponse, "expected list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var v string
		if json.Unmarshal(item, &v) != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
