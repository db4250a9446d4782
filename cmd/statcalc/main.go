package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lawnchairsociety/ascend/server/internal/progression"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("statcalc", flag.ContinueOnError)
	snapshotFile := fs.String("snapshot", "", "Path to a snapshot YAML file")
	mockProfile := fs.String("mock", "", "Generate a mock character (fresh, early, mid, late)")
	seed := fs.Int64("seed", 0, "Seed for -mock (0 picks one from the clock)")
	effectiveCap := fs.Float64("cap", 0, "Effective stat cap (0 disables)")
	sweep := fs.String("sweep", "", "Sweep one component: base, tier, bonus, paragon or prestige")
	statName := fs.String("stat", "strength", "Stat to sweep")
	from := fs.String("from", "", "Sweep start (defaults per component)")
	to := fs.String("to", "", "Sweep end (defaults per component)")
	steps := fs.Int("steps", 10, "Number of sweep points")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, source, err := selectSnapshot(*snapshotFile, *mockProfile, *seed)
	if err != nil {
		return err
	}
	calc := stats.NewCalculator(stats.Options{EffectiveCap: *effectiveCap})

	if *sweep == "" {
		sheet, err := calc.Compute(snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Source: %s\n", source)
		return printSheet(out, snap, sheet)
	}

	kind, err := parseSweepKind(*sweep)
	if err != nil {
		return err
	}
	stat, err := stats.ParseStat(*statName)
	if err != nil {
		return err
	}
	lo, hi := *from, *to
	if lo == "" {
		lo = sweepDefaults[kind][0]
	}
	if hi == "" {
		hi = sweepDefaults[kind][1]
	}
	fromV, err := parseBig(lo)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	toV, err := parseBig(hi)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	points, err := sweepPoints(kind, fromV, toV, *steps)
	if err != nil {
		return err
	}
	rows, err := runSweep(calc, snap, stat, kind, points)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Source: %s\nSweeping %s %s\n", source, stat, kind)
	return printSweep(out, kind, rows)
}

func selectSnapshot(path, profile string, seed int64) (stats.Snapshot, string, error) {
	switch {
	case path != "" && profile != "":
		return stats.Snapshot{}, "", errors.New("-snapshot and -mock are mutually exclusive")
	case path != "":
		snap, err := loadSnapshot(path)
		return snap, path, err
	case profile != "":
		p, err := progression.ParseProfile(profile)
		if err != nil {
			return stats.Snapshot{}, "", err
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		char := progression.Mock(rand.New(rand.NewSource(seed)), p)
		return char.Snapshot, fmt.Sprintf("mock %s (seed %d)", p, seed), nil
	default:
		return stats.NewSnapshot(), "new character", nil
	}
}

func printSheet(out io.Writer, snap stats.Snapshot, sheet stats.Sheet) error {
	fmt.Fprintf(out, "Level %d, prestige %d (x%s)\n\n",
		sheet.Level, sheet.PrestigeLevel, humanize.FormatFloat("#,###.##", sheet.PrestigeMultiplier))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "STAT\tBASE\tTIER\tBONUS\tPARAGON\tEFFECTIVE\t")
	for _, s := range stats.AllStats {
		comp := snap.Get(s)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t\n",
			s.Short(), comp.Base, comp.Tier,
			humanize.BigComma(comp.BonusOrZero()),
			humanize.BigComma(comp.ParagonOrZero()),
			formatEffective(sheet.Effective.Get(s)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	c := sheet.Combat
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Physical damage\t%s\n", humanize.Comma(c.PhysicalDamage))
	fmt.Fprintf(tw, "Magical damage\t%s\n", humanize.Comma(c.MagicalDamage))
	fmt.Fprintf(tw, "Physical defense\t%s\n", humanize.Comma(c.PhysicalDefense))
	fmt.Fprintf(tw, "Magical defense\t%s\n", humanize.Comma(c.MagicalDefense))
	fmt.Fprintf(tw, "Critical chance\t%.2f%%\n", c.CriticalChance)
	fmt.Fprintf(tw, "Dodge chance\t%.2f%%\n", c.DodgeChance)
	fmt.Fprintf(tw, "Max HP\t%s\n", humanize.Comma(c.MaxHP))
	fmt.Fprintf(tw, "Max MP\t%s\n", humanize.Comma(c.MaxMP))
	return tw.Flush()
}

func printSweep(out io.Writer, kind sweepKind, rows []sweepRow) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tEFFECTIVE\tDELTA\t\n", kind)
	for i, row := range rows {
		delta := "-"
		if i > 0 {
			delta = fmt.Sprintf("%+.2f", row.Delta)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", humanize.BigComma(row.Value), formatEffective(row.Effective), delta)
	}
	return tw.Flush()
}

func formatEffective(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
