package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/triage-ai/toolcanon/internal/canon"
	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/integration"
	"github.com/triage-ai/toolcanon/internal/loader"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/sdkconv"
	"go.uber.org/zap"
)

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "toolcanon",
		Short:        "Normalize tool definitions to the canonical tool IR",
		Version:      integration.ServiceVersion,
		SilenceUsage: true,
	}
	root.AddCommand(
		newCanonicalizeCmd(logger),
		newEmitCmd(),
		newExportCmd(),
		newDetectCmd(),
	)
	return root
}

func newCanonicalizeCmd(logger *zap.Logger) *cobra.Command {
	var input, sourceFormat, output, query string

	cmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Canonicalize a tool definition to the canonical tool IR",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				override model.Format
				err      error
			)
			if sourceFormat != "" {
				if override, err = model.ParseFormat(sourceFormat); err != nil {
					return err
				}
			}

			c := canon.NewCanonicalizer(logger)
			run := func(doc map[string]any) model.CanonicalTool {
				var result model.CanonicalizationResult
				if override != "" {
					result = c.CanonicalizeAs(doc, override)
				} else {
					result = c.Canonicalize(doc)
				}
				for _, w := range result.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
				}
				return result.Tool
			}

			var out any
			if query != "" {
				docs, err := loader.LoadTools(input, query)
				if err != nil {
					return err
				}
				tools := make([]model.CanonicalTool, 0, len(docs))
				for _, doc := range docs {
					tools = append(tools, run(doc))
				}
				out = tools
			} else {
				doc, err := loader.LoadTool(input, "")
				if err != nil {
					return err
				}
				out = run(doc)
			}

			if err := writeOutput(cmd.OutOrStdout(), output, out); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Canonical tool written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON or YAML file containing the tool definition")
	cmd.Flags().StringVar(&sourceFormat, "source-format", "", "source format: openai, anthropic, mcp, langchain, raw (auto-detected if omitted)")
	cmd.Flags().StringVar(&output, "output", "", "write canonical JSON to this file (default: stdout)")
	cmd.Flags().StringVar(&query, "query", "", "jq expression selecting the tool definitions to canonicalize")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newEmitCmd() *cobra.Command {
	var input, targetName, output string

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Emit a canonical tool definition to a target format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := emitter.ParseTarget(targetName)
			if err != nil {
				return err
			}
			doc, err := loader.LoadTool(input, "")
			if err != nil {
				return err
			}
			tool, err := model.ToolFromMap(doc)
			if err != nil {
				return err
			}
			result, err := emitter.Emit(target, tool)
			if err != nil {
				return err
			}

			if err := writeOutput(cmd.OutOrStdout(), output, result); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Emitted %s tool written to %s\n", target, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON or YAML file containing a canonical tool")
	cmd.Flags().StringVar(&targetName, "target", "", "target format: openai, anthropic, mcp, json-schema")
	cmd.Flags().StringVar(&output, "output", "", "write emitted JSON to this file (default: stdout)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newExportCmd() *cobra.Command {
	var input, providerName, output, query string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export canonical tools as an OpenAI or Anthropic SDK tool list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := sdkconv.ParseProvider(providerName)
			if err != nil {
				return err
			}
			docs, err := loader.LoadTools(input, query)
			if err != nil {
				return err
			}
			tools := make([]model.CanonicalTool, 0, len(docs))
			for i, doc := range docs {
				tool, err := model.ToolFromMap(doc)
				if err != nil {
					return fmt.Errorf("tool %d: %w", i, err)
				}
				tools = append(tools, tool)
			}
			result, err := sdkconv.Export(provider, tools)
			if err != nil {
				return err
			}

			if err := writeOutput(cmd.OutOrStdout(), output, result); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d %s tools written to %s\n", len(tools), provider, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON or YAML file containing one canonical tool or an array of them")
	cmd.Flags().StringVar(&providerName, "provider", "", "SDK tool list to produce: openai, anthropic")
	cmd.Flags().StringVar(&output, "output", "", "write the tool list to this file (default: stdout)")
	cmd.Flags().StringVar(&query, "query", "", "jq expression selecting the canonical tools to export")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newDetectCmd() *cobra.Command {
	var input string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the source format of a tool definition file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loader.LoadTool(input, "")
			if err != nil {
				return err
			}
			detector := canon.NewFormatDetector()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Detected format: %s\n", detector.Detect(doc))

			if verbose {
				scores := detector.Confidence(doc)
				formats := append([]model.Format(nil), model.Formats...)
				sort.SliceStable(formats, func(i, j int) bool {
					return scores[formats[i]] > scores[formats[j]]
				})
				fmt.Fprintln(w, "\nConfidence scores:")
				for _, f := range formats {
					fmt.Fprintf(w, "  %-12s: %.0f%%\n", f, scores[f]*100)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON or YAML file containing the tool definition")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "show confidence scores for all formats")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// writeOutput renders v as 2-space indented JSON to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writeOutput: %w", err)
	}
	if path == "" {
		_, err := w.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writeOutput: %w", err)
	}
	return nil
}
