package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wallybot/wally-agent/internal/domain"
)

const intentInstruction = `
You are the intent parser for a voice assistant that orders groceries through
a mobile shopping app. Classify the user's command and extract structured
information.

Commands fall into exactly four types:
1. "add_items": the user names products to add, e.g. "Add milk, eggs, and bread"
   or "I need 3 milks and 2 bags of rice".
2. "reorder": the user wants their usual/previous order again, e.g. "Add my
   usual groceries", "same as last time", "reorder". If a command mixes reorder
   language with literal product names, classify it as "reorder" and leave the
   items list empty: history wins over the literal words.
3. "list_items": the user asks about past orders, e.g. "What did I order?" or
   "Show my previous orders".
4. "unknown": anything else.

Quantity rules for add_items:
- "3 milks" or "three milks" -> quantity 3, item "milk"
- "a dozen eggs" -> quantity 12, item "eggs"
- "2 bags of rice" -> quantity 2, item "rice" (drop packaging words)
- bare "milk" -> quantity 1

Respond with ONLY a JSON object, no prose:
{"type": "add_items", "items": [{"item": "milk", "quantity": 3}, {"item": "eggs", "quantity": 2}]}
{"type": "reorder", "items": []}
{"type": "list_items", "items": []}
{"type": "unknown", "items": []}
`

const transcribeInstruction = `
Transcribe the attached audio of a spoken grocery-ordering command.
Respond with ONLY a JSON object, no prose:
{"text": "<verbatim transcription>", "language": "<BCP-47 code, e.g. en>"}
`

// Wire shapes of the model's JSON replies.
type intentWire struct {
	Type  string `json:"type"`
	Items []struct {
		Item     string `json:"item"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

type transcriptWire struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// parseIntentResponse decodes the model reply into a domain Intent. Any
// schema violation is an error so the caller can route to the fallback.
func parseIntentResponse(raw string) (domain.Intent, error) {
	var wire intentWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return domain.Intent{}, fmt.Errorf("unparseable intent response: %w", err)
	}

	var intentType domain.IntentType
	switch wire.Type {
	case "add_items":
		intentType = domain.IntentAddItems
	case "reorder":
		intentType = domain.IntentReorder
	case "list_items":
		intentType = domain.IntentListItems
	case "unknown":
		intentType = domain.IntentUnknown
	default:
		return domain.Intent{}, fmt.Errorf("unknown intent type %q in model response", wire.Type)
	}

	items := make([]domain.ItemRequest, 0, len(wire.Items))
	for _, it := range wire.Items {
		items = append(items, domain.ItemRequest{Name: it.Item, Quantity: it.Quantity})
	}

	return domain.Intent{Type: intentType, Items: items}, nil
}

func parseTranscriptResponse(raw string) (domain.Transcript, error) {
	var wire transcriptWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return domain.Transcript{}, fmt.Errorf("unparseable transcript response: %w", err)
	}
	if wire.Text == "" {
		return domain.Transcript{}, fmt.Errorf("empty transcript in model response")
	}
	return domain.Transcript{Text: wire.Text, Language: wire.Language}, nil
}

// stripFences tolerates models that wrap JSON in a markdown code block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
