package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// WriteFile writes the grid to path in the long text format.
func (g *Grid) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating TextGrid: %w", err)
	}
	if err := g.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Write writes the grid to w in the long text format, UTF-8 encoded.
func (g *Grid) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `File type = "ooTextFile"`)
	fmt.Fprintln(bw, `Object class = "TextGrid"`)
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "xmin = %s\n", number(g.Xmin))
	fmt.Fprintf(bw, "xmax = %s\n", number(g.Xmax))
	if len(g.Tiers) == 0 {
		fmt.Fprintln(bw, "tiers? <absent>")
		return bw.Flush()
	}
	fmt.Fprintln(bw, "tiers? <exists>")
	fmt.Fprintf(bw, "size = %d\n", len(g.Tiers))
	fmt.Fprintln(bw, "item []:")
	for i, tier := range g.Tiers {
		fmt.Fprintf(bw, "    item [%d]:\n", i+1)
		fmt.Fprintf(bw, "        class = %q\n", string(tier.Type))
		fmt.Fprintf(bw, "        name = %s\n", quote(tier.Name))
		fmt.Fprintf(bw, "        xmin = %s\n", number(tier.Xmin))
		fmt.Fprintf(bw, "        xmax = %s\n", number(tier.Xmax))
		if tier.Type == IntervalTier {
			fmt.Fprintf(bw, "        intervals: size = %d\n", len(tier.Intervals))
			for j, interval := range tier.Intervals {
				fmt.Fprintf(bw, "        intervals [%d]:\n", j+1)
				fmt.Fprintf(bw, "            xmin = %s\n", number(interval.Xmin))
				fmt.Fprintf(bw, "            xmax = %s\n", number(interval.Xmax))
				fmt.Fprintf(bw, "            text = %s\n", quote(interval.Text))
			}
		} else {
			fmt.Fprintf(bw, "        points: size = %d\n", len(tier.Points))
			for j, point := range tier.Points {
				fmt.Fprintf(bw, "        points [%d]:\n", j+1)
				fmt.Fprintf(bw, "            number = %s\n", number(point.Number))
				fmt.Fprintf(bw, "            mark = %s\n", quote(point.Mark))
			}
		}
	}
	return bw.Flush()
}

func number(f float64) string {
	return fmt.Sprintf("%g", f)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
