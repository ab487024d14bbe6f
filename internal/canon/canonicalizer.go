package canon

import (
	"fmt"

	"github.com/triage-ai/toolcanon/internal/model"
	"go.uber.org/zap"
)

// Warning texts surfaced in CanonicalizationResult.Warnings.
const (
	WarnUndetected    = "Could not detect source format; using raw passthrough."
	WarnRawHeuristic  = "No parser for 'raw' format; extracted fields by heuristic."
	WarnNoName        = "Tool has no name — consider adding one."
	WarnNoDescription = "Tool has no description — consider adding one."
)

// Canonicalizer normalizes tool definitions into the canonical IR. It holds
// no per-call state and is safe for concurrent use.
type Canonicalizer struct {
	detector *FormatDetector
	logger   *zap.Logger
}

// NewCanonicalizer creates a Canonicalizer. A nil logger disables logging.
func NewCanonicalizer(logger *zap.Logger) *Canonicalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Canonicalizer{
		detector: NewFormatDetector(),
		logger:   logger,
	}
}

// Detector returns the detector used for auto-detection.
func (c *Canonicalizer) Detector() *FormatDetector {
	return c.detector
}

// Canonicalize auto-detects the format of doc and normalizes it.
func (c *Canonicalizer) Canonicalize(doc map[string]any) model.CanonicalizationResult {
	return c.canonicalize(doc, "", false)
}

// CanonicalizeAs normalizes doc as format f, skipping detection. A value
// outside model.Formats is treated as raw.
func (c *Canonicalizer) CanonicalizeAs(doc map[string]any, f model.Format) model.CanonicalizationResult {
	if !f.Valid() {
		c.logger.Warn("unknown override format, using raw",
			zap.String("format", string(f)),
		)
		f = model.FormatRaw
	}
	return c.canonicalize(doc, f, true)
}

func (c *Canonicalizer) canonicalize(doc map[string]any, override model.Format, hasOverride bool) model.CanonicalizationResult {
	doc = c.ingest(doc)
	warnings := []string{}

	resolved := override
	if !hasOverride {
		resolved = c.detector.Detect(doc)
		if resolved == model.FormatRaw {
			warnings = append(warnings, WarnUndetected)
		}
	}

	var tool model.CanonicalTool
	if p := ParserFor(resolved); p != nil {
		parsed, err := safeParse(p, doc)
		if err != nil {
			c.logger.Warn("parser failed, falling back to raw extraction",
				zap.String("format", string(resolved)),
				zap.Error(err),
			)
			warnings = append(warnings, fmt.Sprintf("Parser error for %s: %v", resolved, err))
			tool = rawCanonicalize(doc)
		} else {
			tool = parsed
		}
	} else {
		c.logger.Debug("no parser for format, extracting by heuristic",
			zap.String("format", string(resolved)),
		)
		tool = rawCanonicalize(doc)
		warnings = append(warnings, WarnRawHeuristic)
	}

	if tool.Name == "" {
		warnings = append(warnings, WarnNoName)
	}
	if tool.Description == "" {
		warnings = append(warnings, WarnNoDescription)
	}

	return model.CanonicalizationResult{
		Tool:                 tool,
		Warnings:             warnings,
		SourceFormatDetected: resolved,
	}
}

// ingest copies doc so the result never aliases caller memory.
func (c *Canonicalizer) ingest(doc map[string]any) map[string]any {
	cp, err := model.CloneDocument(doc)
	if err != nil {
		// Documents holding non-JSON values may not clone; use them as given.
		c.logger.Debug("document copy failed, using input as-is", zap.Error(err))
		return doc
	}
	return cp
}

// safeParse turns a panicking parser into a parser error.
func safeParse(p Parser, doc map[string]any) (tool model.CanonicalTool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Parse(doc)
}
