package canon

import (
	"strings"

	"github.com/triage-ai/toolcanon/internal/model"
)

// sideEffectVerbs mark a tool as mutating when any appears in its text.
var sideEffectVerbs = []string{"write", "create", "delete", "update", "post", "send", "save", "remove"}

// readVerbs override the default action. The first verb in this order that
// appears in the text wins, even when side effects were detected.
var readVerbs = []string{"read", "get", "fetch", "list", "search", "query", "find"}

// domainKeywords is an ordered keyword to domain table; first match wins.
var domainKeywords = []struct {
	keyword string
	domain  string
}{
	{"file", "filesystem"},
	{"web", "web"},
	{"search", "web"},
	{"database", "database"},
	{"sql", "database"},
	{"code", "code"},
	{"email", "email"},
	{"http", "web"},
	{"api", "web"},
}

const defaultDomain = "general"

// InferCapabilities derives capability metadata from a tool's name and
// description by plain substring containment over the lower-cased text.
// There is no word-boundary check: "filesystem" matches "file".
func InferCapabilities(name, description string) model.ToolCapability {
	text := strings.ToLower(name + " " + description)

	hasSideEffects := false
	for _, v := range sideEffectVerbs {
		if strings.Contains(text, v) {
			hasSideEffects = true
			break
		}
	}

	action := "read"
	if hasSideEffects {
		action = "write"
	}
	for _, v := range readVerbs {
		if strings.Contains(text, v) {
			action = v
			break
		}
	}

	domain := defaultDomain
	for _, kw := range domainKeywords {
		if strings.Contains(text, kw.keyword) {
			domain = kw.domain
			break
		}
	}

	return model.ToolCapability{
		Action:       action,
		Domain:       domain,
		SideEffects:  hasSideEffects,
		Idempotent:   !hasSideEffects,
		CostEstimate: model.DefaultCostEstimate,
	}
}
