package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/engine"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/registry"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

type analyzeOptions struct {
	projectID    string
	documentID   string
	entitiesPath string

	minConfidence  float64
	fuzzyThreshold float64
	timeout        time.Duration
}

func newAnalyzeCommand(root *RootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a document for entity mentions",
		Long: "Analyze scans the given file (or stdin when the argument is \"-\" or\n" +
			"omitted) for mentions of the project's entities.  Entities come from a\n" +
			"local JSON file via --entities, or from the registry database named in\n" +
			"the configuration when --entities is not set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.projectID, "project", "p", "", "project id (required)")
	f.StringVarP(&opts.documentID, "document", "d", "", "document id (default: the file name)")
	f.StringVarP(&opts.entitiesPath, "entities", "e", "", "JSON file with the project's entities, for offline runs")
	f.Float64Var(&opts.minConfidence, "min-confidence", 0, "override the minimum mention confidence")
	f.Float64Var(&opts.fuzzyThreshold, "fuzzy-threshold", 0, "enable fuzzy matching at this similarity threshold")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "analysis timeout")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runAnalyze(cmd *cobra.Command, root *RootOptions, opts *analyzeOptions, args []string) error {
	content, source, err := readDocument(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if opts.documentID == "" {
		opts.documentID = source
	}

	logger, err := logging.NewLogger(logging.Config{Level: root.LogLevel, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}

	snapshots, cleanup, err := buildSnapshots(cmd.Context(), root, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := engine.DefaultConfig()
	if opts.minConfidence > 0 {
		cfg.MinimumConfidence = opts.minConfidence
	}
	if opts.fuzzyThreshold > 0 {
		cfg.FuzzyMatchThreshold = opts.fuzzyThreshold
	}

	eng, err := engine.New(cfg, snapshots, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	result, err := eng.Analyze(ctx, engine.AnalysisRequest{
		DocumentID: opts.documentID,
		ProjectID:  opts.projectID,
		Content:    string(content),
	})
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), root.OutputFormat, result)
}

func readDocument(stdin io.Reader, args []string) (content []byte, source string, err error) {
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(stdin)
		return content, "stdin", err
	}
	content, err = os.ReadFile(args[0])
	return content, args[0], err
}

// buildSnapshots returns the entity source for the analysis: a static file
// snapshot for offline runs, or the registry database from the config.
func buildSnapshots(ctx context.Context, root *RootOptions, opts *analyzeOptions, logger logging.Logger) (registry.SnapshotProvider, func(), error) {
	noop := func() {}

	if opts.entitiesPath != "" {
		entities, err := loadEntitiesFile(opts.entitiesPath)
		if err != nil {
			return nil, noop, err
		}
		return &fileSnapshots{projectID: opts.projectID, entities: entities}, noop, nil
	}

	path := root.ConfigPath
	if path == "" {
		path = "storylink.yaml"
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		return nil, noop, err
	}
	pool, err := registry.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, noop, err
	}
	reg := registry.NewPostgresRegistry(pool, logger)
	cache := registry.NewSnapshotCache(reg, cfg.Detection.SnapshotTTL, logger, nil)
	return cache, pool.Close, nil
}

// fileSnapshots serves one fixed entity set.  The snapshot is never stale:
// the file on disk is the source of truth for the whole run.
type fileSnapshots struct {
	projectID string
	entities  []story.Entity
}

func (f *fileSnapshots) Snapshot(_ context.Context, projectID string) (*registry.Snapshot, error) {
	return &registry.Snapshot{
		ProjectID: projectID,
		Entities:  f.entities,
		LoadedAt:  time.Now(),
	}, nil
}

func (f *fileSnapshots) Invalidate(context.Context, string) {}

func loadEntitiesFile(path string) ([]story.Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entities []story.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, fmt.Sprintf("entities file %s is not valid JSON", path))
	}
	for i := range entities {
		if entities[i].Name == "" {
			return nil, apperrors.Newf(apperrors.ErrCodeValidation, "entities file %s: entry %d has no name", path, i)
		}
	}
	return entities, nil
}

func printResult(out io.Writer, format string, result *engine.DetectionResult) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Document %s (project %s)\n", result.DocumentID, result.ProjectID)
	fmt.Fprintf(out, "Analyzed in %dms\n", result.ProcessingTimeMS)
	if result.Degraded {
		fmt.Fprintf(out, "DEGRADED: %v\n", result.DegradationReasons)
	}

	fmt.Fprintf(out, "\nMentions (%d):\n", len(result.EntityMentions))
	for _, m := range result.EntityMentions {
		fmt.Fprintf(out, "  [%5d-%5d] %-24s -> %s (%s, %.2f)\n",
			m.Span.Start, m.Span.End, m.Text, m.EntityName, m.Kind, m.Confidence)
	}

	if len(result.NewEntitySuggestions) > 0 {
		fmt.Fprintf(out, "\nNew entity suggestions (%d):\n", len(result.NewEntitySuggestions))
		for _, s := range result.NewEntitySuggestions {
			fmt.Fprintf(out, "  %-24s %-12s %.2f  %s\n", s.Text, s.Type, s.Confidence, s.Reason)
		}
	}

	if len(result.RelationshipSuggestions) > 0 {
		fmt.Fprintf(out, "\nRelationship suggestions (%d):\n", len(result.RelationshipSuggestions))
		for _, r := range result.RelationshipSuggestions {
			fmt.Fprintf(out, "  %s -[%s]-> %s (%.2f)\n", r.SourceEntityID, r.Label, r.TargetEntityID, r.Confidence)
		}
	}

	if len(result.ConsistencyWarnings) > 0 {
		fmt.Fprintf(out, "\nConsistency warnings (%d):\n", len(result.ConsistencyWarnings))
		for _, w := range result.ConsistencyWarnings {
			fmt.Fprintf(out, "  [%s/%s] %s\n", w.Category, w.Severity, w.Description)
		}
	}
	return nil
}
