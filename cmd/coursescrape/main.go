package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/v0xg/coursescrape/internal/auth"
	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/sites/curriculum"
	"github.com/v0xg/coursescrape/internal/sites/roadmaps"
	"github.com/v0xg/coursescrape/internal/sites/snorkl"
)

var (
	configFile string
	headful    bool
	districts  []string
	listing    string
	skipSkills bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "coursescrape",
		Short: "Extract curriculum content from teaching platforms",
		Long: `coursescrape drives a browser through curriculum sites, extracts each page
into a validated record, stores media artifacts and writes a run report.

Example:
  coursescrape skills 660 661 https://roadmaps.teachtoone.org/skill/662`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./coursescrape.yaml)")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "Show the browser window")

	skillsCmd := &cobra.Command{
		Use:   "skills <number|url>...",
		Short: "Scrape Roadmaps skill pages",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSkills,
	}

	unitsCmd := &cobra.Command{
		Use:     "units <roadmap>...",
		Short:   "Scrape the units of Roadmaps roadmaps and the skills they list",
		Example: `  coursescrape units "Illustrative Math New York - 6th Grade"`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runUnits,
	}
	unitsCmd.Flags().BoolVar(&skipSkills, "skip-skills", false, "Record unit skill lists without scraping each skill")

	curriculumCmd := &cobra.Command{
		Use:   "curriculum [course-id]...",
		Short: "Discover units, sections and lessons of curriculum courses (all courses by default)",
		RunE:  runCurriculum,
	}

	classesCmd := &cobra.Command{
		Use:   "classes",
		Short: "List Snorkl class activities and their grade export URLs",
		Args:  cobra.NoArgs,
		RunE:  runClasses,
	}
	classesCmd.Flags().StringSliceVar(&districts, "district", nil, "Only classes of these districts")
	classesCmd.Flags().StringVar(&listing, "listing", "", "JSON file of class work items to use instead of the built-in list")

	coursesCmd := &cobra.Command{
		Use:   "courses",
		Short: "Print the built-in course catalog",
		Args:  cobra.NoArgs,
		RunE:  runCourses,
	}

	checkCmd := &cobra.Command{
		Use:       "check-credentials <site>",
		Short:     "Log in to a site and load one known page",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{roadmaps.Name, snorkl.Name},
		RunE:      runCheckCredentials,
	}

	rootCmd.AddCommand(skillsCmd, unitsCmd, curriculumCmd, classesCmd, coursesCmd, checkCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func runSkills(cmd *cobra.Command, args []string) error {
	items, err := roadmaps.Items(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(cmd.Context(), a.roadmaps(), &roadmaps.Flow, items)
}

func runUnits(cmd *cobra.Command, args []string) error {
	items, err := roadmaps.RoadmapItems(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	return a.run(cmd.Context(), a.roadmaps(), &roadmaps.Flow, items)
}

func runCurriculum(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	items, err := cat.UnitItems(args...)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	site := curriculum.New(curriculum.Options{
		Artifacts: a.artifacts,
		Fetcher:   a.fetcher,
		Log:       a.log,
		Nav:       a.navOptions(),
	})
	return a.run(cmd.Context(), site, nil, items)
}

func runClasses(cmd *cobra.Command, _ []string) error {
	var items []model.WorkItem
	if listing != "" {
		f, err := os.Open(listing)
		if err != nil {
			return fmt.Errorf("failed to open listing: %w", err)
		}
		items, err = catalog.LoadListing(f)
		f.Close()
		if err != nil {
			return err
		}
	} else {
		cat, err := catalog.Load()
		if err != nil {
			return err
		}
		items = cat.ClassItems(districts...)
	}
	if len(items) == 0 {
		return fmt.Errorf("no classes match %s", strings.Join(districts, ", "))
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	site := snorkl.New(snorkl.Options{Log: a.log, Nav: a.navOptions()})
	return a.run(cmd.Context(), site, &snorkl.Flow, items)
}

func runCourses(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range cat.Courses {
		level := "high school"
		if c.MiddleSchool {
			level = "middle school"
		}
		fmt.Fprintf(out, "%-12s %s (%s, %d units)\n", c.ID, c.Name, level, len(c.Units))
		for _, u := range c.Units {
			fmt.Fprintf(out, "  %-10s %s\n", u.ID, u.Name)
		}
	}
	return nil
}

func runCheckCredentials(cmd *cobra.Command, args []string) error {
	var (
		flow    *auth.Flow
		landing string
	)
	switch args[0] {
	case roadmaps.Name:
		flow, landing = &roadmaps.Flow, roadmaps.SkillURL("1")
	case snorkl.Name:
		flow, landing = &snorkl.Flow, snorkl.ClassesURL
	case curriculum.Name:
		return fmt.Errorf("%s needs no login", curriculum.Name)
	default:
		return fmt.Errorf("unknown site %q", args[0])
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	return a.checkCredentials(cmd.Context(), flow, landing)
}
