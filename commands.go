package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geo-insights/agents"
	"geo-insights/config"
	"geo-insights/crawler"
	"geo-insights/database"
	"geo-insights/gap"
	"geo-insights/ingest"
	"geo-insights/models"
	"geo-insights/normalizer"
	"geo-insights/report"
	"geo-insights/store"
	"geo-insights/tfidf"
)

const defaultDiscoverPages = 20

func (a *app) termOptions() tfidf.Options {
	return tfidf.Options{
		MaxFeatures: a.cfg.MaxFeatures,
		NGramMin:    1,
		NGramMax:    a.cfg.NGramMax,
	}
}

func (a *app) crawlCommand() *cobra.Command {
	var (
		targetsFile string
		entity      string
		entityType  string
		urlsFile    string
		site        string
		maxPages    int
		storePath   string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch pages and add them to the content store",
		Example: `  geo crawl --targets targets.yaml
  geo crawl --entity Rival --type competitor --urls rival_urls.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets []config.Target
			if targetsFile != "" {
				t, err := config.LoadTargets(targetsFile)
				if err != nil {
					return err
				}
				targets = t.All()
			} else {
				if entity == "" || (urlsFile == "" && site == "") {
					return errors.New("either --targets or --entity with --urls or --site is required")
				}
				target := config.Target{Name: entity, Type: models.EntityType(entityType), Site: site, MaxPages: maxPages}
				if !target.Type.Valid() {
					return fmt.Errorf("unknown entity type %q", entityType)
				}
				if urlsFile != "" {
					urls, err := readURLFile(urlsFile)
					if err != nil {
						return err
					}
					target.URLs = urls
				}
				targets = []config.Target{target}
			}

			rows, err := a.crawl(cmd.Context(), targets, a.storePath(storePath))
			report.CrawlTable(cmd.OutOrStdout(), rows)
			return err
		},
	}

	cmd.Flags().StringVar(&targetsFile, "targets", "", "YAML file listing owned, competitor and third-party targets")
	cmd.Flags().StringVar(&entity, "entity", "", "entity name for a single-target crawl")
	cmd.Flags().StringVar(&entityType, "type", string(models.EntityCompetitor), "entity type: owned_brand, competitor or third_party")
	cmd.Flags().StringVar(&urlsFile, "urls", "", "file with one URL per line")
	cmd.Flags().StringVar(&site, "site", "", "homepage to discover links from")
	cmd.Flags().IntVar(&maxPages, "max-pages", defaultDiscoverPages, "page cap for link discovery")
	cmd.Flags().StringVar(&storePath, "store", "", "content store file (default $STORE_PATH)")
	return cmd
}

func (a *app) gapCommand() *cobra.Command {
	var (
		owned       string
		competitors []string
		targetsFile string
		topN        int
		out         string
		storePath   string
		markdown    bool
	)

	cmd := &cobra.Command{
		Use:   "gap",
		Short: "Rank terms competitors cover more strongly than the owned brand",
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetsFile != "" {
				t, err := config.LoadTargets(targetsFile)
				if err != nil {
					return err
				}
				owned = t.Owned.Name
				competitors = t.CompetitorNames()
			}
			if owned == "" {
				return errors.New("--owned or --targets is required")
			}

			s, cleanup, err := a.openStore(cmd.Context(), a.storePath(storePath))
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := a.analyzeGaps(s, owned, competitors, topN, false)
			if err != nil {
				return err
			}
			return a.emitGapReport(cmd.OutOrStdout(), out, r, markdown)
		},
	}

	cmd.Flags().StringVar(&owned, "owned", "", "owned brand entity name")
	cmd.Flags().StringSliceVar(&competitors, "competitors", nil, "competitor entity names (default: every competitor in the store)")
	cmd.Flags().StringVar(&targetsFile, "targets", "", "take entity names from a targets file")
	cmd.Flags().IntVar(&topN, "top", 0, "number of gaps to report (default $TOP_GAPS)")
	cmd.Flags().StringVarP(&out, "out", "o", "gap_analysis.json", "output file")
	cmd.Flags().StringVar(&storePath, "store", "", "content store file (default $STORE_PATH)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print a rendered summary")
	return cmd
}

func (a *app) agentsCommand() *cobra.Command {
	var (
		signatures string
		logs       string
		out        string
		storePath  string
		persist    bool
		markdown   bool
	)

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Classify server log traffic by known automated agents",
		Example: `  geo agents --signatures bots.csv --logs server_log.csv --persist
  geo agents --logs server_log.csv --persist   # signatures stored by an earlier run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.analyzeAgents(cmd.Context(), signatures, logs, storePath, persist)
			if err != nil {
				return err
			}
			return a.emitAgentReport(cmd.OutOrStdout(), out, r, markdown)
		},
	}

	cmd.Flags().StringVar(&signatures, "signatures", "", "reference table of agent signatures (CSV, default: signatures stored in $DATABASE_URL)")
	cmd.Flags().StringVar(&logs, "logs", "", "server log export (CSV)")
	cmd.Flags().StringVarP(&out, "out", "o", "agent_analytics.json", "output file")
	cmd.Flags().StringVar(&storePath, "store", "", "content store file to correlate requested pages with")
	cmd.Flags().BoolVar(&persist, "persist", false, "save signatures and interactions to $DATABASE_URL")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print a rendered summary")
	_ = cmd.MarkFlagRequired("logs")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	var (
		targetsFile string
		signatures  string
		logs        string
		outDir      string
		persist     bool
		markdown    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl every target, then run gap and agent analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			targets, err := config.LoadTargets(targetsFile)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			storePath := a.storePath("")

			rows, err := a.crawl(ctx, targets.All(), storePath)
			report.CrawlTable(cmd.OutOrStdout(), rows)
			if err != nil {
				return err
			}

			s, cleanup, err := a.openStore(ctx, storePath)
			if err != nil {
				return err
			}
			defer cleanup()

			// a competitor that could not be crawled only drops out of the
			// comparison; agent analysis runs whatever the gap outcome
			gr, gapErr := a.analyzeGaps(s, targets.Owned.Name, targets.CompetitorNames(), 0, true)
			if gapErr == nil {
				if err := a.emitGapReport(cmd.OutOrStdout(), filepath.Join(outDir, "gap_analysis.json"), gr, markdown); err != nil {
					return err
				}
			} else {
				a.logger.Error("Gap analysis failed", zap.Error(gapErr))
			}

			if logs == "" {
				a.logger.Info("No logs given, skipping agent analysis")
				return gapErr
			}
			ar, err := a.analyzeAgents(ctx, signatures, logs, storePath, persist)
			if err != nil {
				return errors.Join(gapErr, err)
			}
			if err := a.emitAgentReport(cmd.OutOrStdout(), filepath.Join(outDir, "agent_analytics.json"), ar, markdown); err != nil {
				return errors.Join(gapErr, err)
			}
			return gapErr
		},
	}

	cmd.Flags().StringVar(&targetsFile, "targets", "targets.yaml", "YAML targets file")
	cmd.Flags().StringVar(&signatures, "signatures", "", "reference table of agent signatures (CSV, default: signatures stored in $DATABASE_URL)")
	cmd.Flags().StringVar(&logs, "logs", "", "server log export (CSV); agent analysis is skipped without it")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for result files")
	cmd.Flags().BoolVar(&persist, "persist", false, "save signatures and interactions to $DATABASE_URL")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print rendered summaries")
	return cmd
}

func (a *app) storePath(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.StorePath
}

// crawl fetches every target into the store and flushes it, even when the
// run is interrupted part way.
func (a *app) crawl(ctx context.Context, targets []config.Target, storePath string) ([]report.EntityCrawl, error) {
	s, cleanup, err := a.openStore(ctx, storePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		UserAgent:     a.cfg.UserAgent,
		Timeout:       a.cfg.Timeout(),
		RateLimit:     float64(a.cfg.RateLimit),
		Burst:         a.cfg.Workers,
		RespectRobots: true,
	}, a.logger)
	defer fetcher.Close()

	norm := normalizer.New(
		normalizer.WithCrawlerID(a.cfg.CrawlerID),
		normalizer.WithKeywordLimit(a.cfg.KeywordLimit),
		normalizer.WithTermOptions(a.termOptions()),
	)
	batch := crawler.NewBatch(fetcher, norm, s, a.cfg.Workers, a.logger)

	var rows []report.EntityCrawl
	var crawlErr error
	for _, t := range targets {
		urls := t.URLs
		if len(urls) == 0 && t.Site != "" {
			limit := t.MaxPages
			if limit <= 0 {
				limit = defaultDiscoverPages
			}
			urls, err = crawler.Discover(ctx, fetcher, t.Site, limit)
			if err != nil {
				a.logger.Warn("Link discovery failed", zap.String("entity", t.Name), zap.String("site", t.Site), zap.Error(err))
				rows = append(rows, report.EntityCrawl{Entity: t.Name, Type: t.Type, Stats: models.CrawlStats{Requested: 1, Skipped: 1}})
				continue
			}
		}

		stats, err := batch.CrawlEntity(ctx, urls, t.Type, t.Name)
		rows = append(rows, report.EntityCrawl{Entity: t.Name, Type: t.Type, Stats: stats})
		if err != nil {
			crawlErr = err
			break
		}
	}

	if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
		return rows, errors.Join(crawlErr, err)
	}
	return rows, crawlErr
}

// analyzeGaps runs the comparison and coverage. Nothing is written here, so
// a failed analysis leaves no output behind. With skipEmpty, competitors
// without stored content are left out instead of failing the comparison;
// it still fails when the owned entity or every competitor is empty.
func (a *app) analyzeGaps(s *store.Store, owned string, competitors []string, topN int, skipEmpty bool) (report.GapReport, error) {
	if len(competitors) == 0 {
		competitors = gap.CompetitorNames(s)
	}
	if topN <= 0 {
		topN = a.cfg.TopGaps
	}

	ownedEntity, competitorEntities := gap.FromStore(s, owned, competitors)
	if len(ownedEntity.Records) == 0 {
		a.logger.Warn("Owned entity has no stored content",
			zap.String("owned", owned),
			zap.Strings("stored_entities", s.Entities()))
	}
	coverage := gap.Coverage(append([]gap.Entity{ownedEntity}, competitorEntities...))

	var skipped []string
	if skipEmpty {
		competitorEntities, skipped = gap.WithRecords(competitorEntities)
		for _, name := range skipped {
			a.logger.Warn("Leaving competitor without stored content out of the comparison", zap.String("competitor", name))
		}
	}

	analyzer := gap.NewAnalyzer(a.termOptions(), a.logger)
	result, err := analyzer.Analyze(ownedEntity, competitorEntities, topN)
	if err != nil {
		return report.GapReport{}, err
	}

	return report.GapReport{
		GeneratedAt:        time.Now().UTC(),
		Analysis:           result,
		Coverage:           coverage,
		SkippedCompetitors: skipped,
	}, nil
}

// analyzeAgents classifies the log export. Without a signature table it
// reuses the signatures a previous --persist run stored.
func (a *app) analyzeAgents(ctx context.Context, signaturesPath, logsPath, storePath string, persist bool) (report.AgentReport, error) {
	var db *database.DB
	if persist || signaturesPath == "" {
		var err error
		db, err = database.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return report.AgentReport{}, err
		}
		defer db.Close()
	}

	sigs, err := loadSignatures(ctx, db, signaturesPath)
	if err != nil {
		return report.AgentReport{}, err
	}
	logs, err := readTable(logsPath, func(r io.Reader) ([]models.LogRecord, error) {
		return ingest.ReadLogTable(r, ingest.LogOptions{})
	})
	if err != nil {
		return report.AgentReport{}, err
	}
	a.logger.Info("Loaded inputs", zap.Int("signatures", len(sigs)), zap.Int("log_records", len(logs)))

	classifier := agents.NewClassifier(agents.NewFirstMatch(sigs, a.logger), sigs)
	summary, interactions := agents.NewAggregator(classifier, a.logger).Aggregate(logs)

	r := report.AgentReport{GeneratedAt: time.Now().UTC(), Summary: summary}
	if storePath != "" {
		s, err := store.Open(ctx, store.JSONFile{Path: storePath}, a.logger)
		if err != nil {
			return report.AgentReport{}, err
		}
		r.Pages = agents.CorrelatePages(interactions, s.All())
	}

	if persist {
		if err := db.SaveSignatures(ctx, sigs); err != nil {
			return report.AgentReport{}, err
		}
		if err := db.SaveInteractions(ctx, interactions); err != nil {
			return report.AgentReport{}, err
		}
		total, err := db.CountInteractions(ctx)
		if err != nil {
			return report.AgentReport{}, fmt.Errorf("count stored interactions: %w", err)
		}
		if r.StoredInteractions, err = db.InteractionCounts(ctx); err != nil {
			return report.AgentReport{}, fmt.Errorf("count stored interactions: %w", err)
		}
		a.logger.Info("Persisted interactions",
			zap.Int("count", len(interactions)),
			zap.Int("stored_total", total))
	}
	return r, nil
}

func loadSignatures(ctx context.Context, db *database.DB, path string) ([]models.AgentSignature, error) {
	if path != "" {
		rows, err := readTable(path, ingest.ReadSignatureTable)
		if err != nil {
			return nil, err
		}
		return agents.LoadSignatures(rows)
	}

	sigs, err := db.LoadSignatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored signatures: %w", err)
	}
	if len(sigs) == 0 {
		return nil, errors.New("no --signatures given and the database holds no stored signatures")
	}
	return sigs, nil
}

func (a *app) emitGapReport(w io.Writer, path string, r report.GapReport, markdown bool) error {
	if err := report.WriteJSON(path, r); err != nil {
		return err
	}
	a.logger.Info("Wrote gap analysis", zap.String("path", path), zap.Int("gaps", r.Analysis.TotalGapsIdentified))
	if !markdown {
		return nil
	}
	md, err := report.GapMarkdown(r)
	if err != nil {
		return err
	}
	return printMarkdown(w, md)
}

func (a *app) emitAgentReport(w io.Writer, path string, r report.AgentReport, markdown bool) error {
	if err := report.WriteJSON(path, r); err != nil {
		return err
	}
	a.logger.Info("Wrote agent analytics", zap.String("path", path), zap.Int("interactions", r.Summary.TotalInteractions))
	if !markdown {
		return nil
	}
	md, err := report.AgentMarkdown(r)
	if err != nil {
		return err
	}
	return printMarkdown(w, md)
}

func printMarkdown(w io.Writer, md string) error {
	rendered, err := report.Render(md, 100)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

func readTable[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func readURLFile(path string) ([]string, error) {
	return readTable(path, ingest.ReadURLList)
}
