package cli

import (
	"fmt"
	"time"

	"github.com/lucidmem/lucid/internal/location"
	"github.com/lucidmem/lucid/internal/store"
	"github.com/spf13/cobra"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Track file locations and learned familiarity",
}

var (
	locRecordContext  string
	locRecordActivity string
	locRecordTool     string
	locRecordTask     string
	locRecordDesc     string
	locRecordProject  string
	locRecordIndirect bool
	locRecordSaved    bool

	locRecentN     int
	locContextsN   int
	locDecayDays   int
	locDecayFactor float64
)

var locRecordCmd = &cobra.Command{
	Use:   "record [path]",
	Short: "Record an access to a path",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationRecord,
}

var locGetCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Show a location's familiarity and counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationGet,
}

var locFindCmd = &cobra.Command{
	Use:   "find [pattern]",
	Short: "Find locations by path substring",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationFind,
}

var locAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List all known locations",
	RunE:  runLocationAll,
}

var locRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently accessed locations",
	RunE:  runLocationRecent,
}

var locStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show location store statistics",
	RunE:  runLocationStats,
}

var locContextsCmd = &cobra.Command{
	Use:   "contexts [path]",
	Short: "Show recent access contexts for a path",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationContexts,
}

var locAssociatedCmd = &cobra.Command{
	Use:   "associated [path]",
	Short: "Show co-accessed locations, strongest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationAssociated,
}

var locByActivityCmd = &cobra.Command{
	Use:   "by-activity [type]",
	Short: "List locations by activity type",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationByActivity,
}

var locPinCmd = &cobra.Command{
	Use:   "pin [path]",
	Short: "Exempt a location from decay and orphan detection",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationPin,
}

var locUnpinCmd = &cobra.Command{
	Use:   "unpin [path]",
	Short: "Re-enable decay for a location",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationUnpin,
}

var locDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run the familiarity decay sweep now",
	RunE:  runLocationDecay,
}

var locOrphanedCmd = &cobra.Command{
	Use:   "orphaned",
	Short: "List familiar locations gone stale",
	RunE:  runLocationOrphaned,
}

var locMergeCmd = &cobra.Command{
	Use:   "merge [old-path] [new-path]",
	Short: "Move learned familiarity after a rename",
	Args:  cobra.ExactArgs(2),
	RunE:  runLocationMerge,
}

func init() {
	locRecordCmd.Flags().StringVarP(&locRecordContext, "context", "c", "", "What this access was about")
	locRecordCmd.Flags().StringVarP(&locRecordActivity, "activity", "a", "", "Explicit activity type")
	locRecordCmd.Flags().StringVar(&locRecordTool, "tool", "", "Tool name (activity hint)")
	locRecordCmd.Flags().StringVar(&locRecordTask, "task", "", "Task descriptor for co-access grouping")
	locRecordCmd.Flags().StringVarP(&locRecordDesc, "description", "d", "", "Human description of the path")
	locRecordCmd.Flags().StringVarP(&locRecordProject, "project", "p", "", "Project path scope")
	locRecordCmd.Flags().BoolVar(&locRecordIndirect, "indirect", false, "The path was found by searching, not known")
	locRecordCmd.Flags().BoolVar(&locRecordSaved, "search-saved", false, "Knowing this path avoided a search")

	locRecentCmd.Flags().IntVarP(&locRecentN, "limit", "n", 10, "Maximum number of results")
	locContextsCmd.Flags().IntVarP(&locContextsN, "limit", "n", 20, "Maximum number of contexts")

	locDecayCmd.Flags().IntVar(&locDecayDays, "stale-days", 30, "Minimum idle days before decay applies")
	locDecayCmd.Flags().Float64Var(&locDecayFactor, "factor", 0.1, "Fraction removed per sweep")

	locationCmd.AddCommand(locRecordCmd, locGetCmd, locFindCmd, locAllCmd, locRecentCmd,
		locStatsCmd, locContextsCmd, locAssociatedCmd, locByActivityCmd,
		locPinCmd, locUnpinCmd, locDecayCmd, locOrphanedCmd, locMergeCmd)
}

func openLocations() (*location.Service, *store.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return location.NewService(db), db, nil
}

func printLocation(loc *store.Location) {
	pin := ""
	if loc.Pinned {
		pin = " [pinned]"
	}
	fmt.Printf("%s%s\n", loc.Path, pin)
	if loc.Description != "" {
		fmt.Printf("  %s\n", loc.Description)
	}
	fmt.Printf("  familiarity: %.2f  accesses: %d (direct %d, search-saved %d)  last: %s\n",
		loc.Familiarity, loc.AccessCount, loc.DirectAccessCount, loc.SearchSavedCount,
		time.UnixMilli(loc.LastAccessed).Format("2006-01-02 15:04"))
}

func printLocationLine(loc store.Location) {
	marker := " "
	if location.WellKnown(loc.Familiarity) {
		marker = "*"
	}
	fmt.Printf("%s %.2f  %4d  %s\n", marker, loc.Familiarity, loc.AccessCount, loc.Path)
}

func runLocationRecord(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := locs.RecordAccess(args[0], location.AccessOptions{
		ProjectPath: locRecordProject,
		Description: locRecordDesc,
		Context:     locRecordContext,
		Activity:    locRecordActivity,
		Tool:        locRecordTool,
		Task:        locRecordTask,
		Direct:      !locRecordIndirect,
		SearchSaved: locRecordSaved,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s (familiarity %.2f, %d accesses)\n", loc.Path, loc.Familiarity, loc.AccessCount)
	return nil
}

func runLocationGet(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := locs.Get(args[0])
	if err != nil {
		return err
	}
	if loc == nil {
		fmt.Printf("unknown location: %s\n", args[0])
		return nil
	}
	printLocation(loc)
	return nil
}

func runLocationFind(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := locs.Find(args[0])
	if err != nil {
		return err
	}
	for _, loc := range found {
		printLocationLine(loc)
	}
	return nil
}

func runLocationAll(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	all, err := locs.All()
	if err != nil {
		return err
	}
	for _, loc := range all {
		printLocationLine(loc)
	}
	return nil
}

func runLocationRecent(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	recent, err := locs.Recent(locRecentN)
	if err != nil {
		return err
	}
	for _, loc := range recent {
		printLocationLine(loc)
	}
	return nil
}

func runLocationStats(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := locs.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("locations:       %d\n", stats.Total)
	fmt.Printf("well-known:      %d\n", stats.WellKnown)
	fmt.Printf("pinned:          %d\n", stats.Pinned)
	fmt.Printf("total accesses:  %d\n", stats.TotalAccesses)
	fmt.Printf("avg familiarity: %.2f\n", stats.AvgFamiliarity)
	return nil
}

func runLocationContexts(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	contexts, err := locs.Contexts(args[0], locContextsN)
	if err != nil {
		return err
	}
	for _, c := range contexts {
		task := ""
		if c.Task != "" {
			task = " task=" + c.Task
		}
		fmt.Printf("%s  [%s]%s  %s\n",
			time.UnixMilli(c.AccessedAt).Format("2006-01-02 15:04"), c.Activity, task, c.Context)
	}
	return nil
}

func runLocationAssociated(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	assocs, err := locs.AssociatedByPath(args[0])
	if err != nil {
		return err
	}
	for _, a := range assocs {
		fmt.Printf("%.2f  (familiarity %.2f)  %s\n", a.Strength, a.Location.Familiarity, a.Location.Path)
	}
	return nil
}

func runLocationByActivity(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := locs.ByActivity(args[0])
	if err != nil {
		return err
	}
	for _, loc := range found {
		printLocationLine(loc)
	}
	return nil
}

func runLocationPin(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := locs.Pin(args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("unknown location: %s\n", args[0])
		return nil
	}
	fmt.Printf("pinned %s\n", args[0])
	return nil
}

func runLocationUnpin(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := locs.Unpin(args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("unknown location: %s\n", args[0])
		return nil
	}
	fmt.Printf("unpinned %s\n", args[0])
	return nil
}

func runLocationDecay(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := location.DefaultDecayOptions()
	opts.StaleDays = locDecayDays
	opts.Factor = locDecayFactor

	changed, err := locs.ApplyFamiliarityDecay(opts)
	if err != nil {
		return err
	}
	fmt.Printf("decayed %d locations\n", changed)
	return nil
}

func runLocationOrphaned(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	orphans, err := locs.Orphaned(location.DefaultOrphanOptions())
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		fmt.Println("no orphaned locations")
		return nil
	}
	for _, o := range orphans {
		fmt.Printf("%.2f  idle %dd  %s\n", o.Location.Familiarity, o.IdleDays, o.Location.Path)
	}
	return nil
}

func runLocationMerge(cmd *cobra.Command, args []string) error {
	locs, db, err := openLocations()
	if err != nil {
		return err
	}
	defer db.Close()

	merged, err := locs.Merge(args[0], args[1])
	if err != nil {
		return err
	}
	if merged == nil {
		fmt.Printf("neither %s nor %s is known\n", args[0], args[1])
		return nil
	}
	fmt.Printf("merged into %s (familiarity %.2f, %d accesses)\n", merged.Path, merged.Familiarity, merged.AccessCount)
	return nil
}
