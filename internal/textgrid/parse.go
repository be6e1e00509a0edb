package textgrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrParse marks a malformed TextGrid file.
var ErrParse = errors.New("malformed TextGrid")

// ParseFile reads and parses a TextGrid file.
func ParseFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TextGrid: %w", err)
	}
	defer f.Close()
	grid, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return grid, nil
}

// Parse parses a long-format TextGrid from r. UTF-16 input with a byte
// order mark is transparently decoded.
func Parse(r io.Reader) (*Grid, error) {
	decoder := unicode.UTF8.NewDecoder()
	bom := unicode.BOMOverride(decoder)
	scanner := bufio.NewScanner(transform.NewReader(r, bom))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &parser{scanner: scanner}
	return p.parseGrid()
}

type parser struct {
	scanner *bufio.Scanner
	line    string
	done    bool
}

// next advances to the next non-empty line.
func (p *parser) next() bool {
	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" {
			continue
		}
		p.line = line
		return true
	}
	p.done = true
	return false
}

func (p *parser) parseGrid() (*Grid, error) {
	if !p.next() || !strings.Contains(p.line, "ooTextFile") {
		return nil, fmt.Errorf("%w: missing ooTextFile header", ErrParse)
	}
	if !p.next() || !strings.Contains(p.line, "TextGrid") {
		return nil, fmt.Errorf("%w: object class is not TextGrid", ErrParse)
	}
	grid := &Grid{}
	var err error
	if grid.Xmin, err = p.expectNumber("xmin"); err != nil {
		return nil, err
	}
	if grid.Xmax, err = p.expectNumber("xmax"); err != nil {
		return nil, err
	}
	if !p.next() || !strings.HasPrefix(p.line, "tiers?") {
		return nil, fmt.Errorf("%w: missing tiers? line", ErrParse)
	}
	if !strings.Contains(p.line, "<exists>") {
		return grid, nil
	}
	size, err := p.expectNumber("size")
	if err != nil {
		return nil, err
	}
	// "item []:" introduces the tier list.
	if !p.next() || !strings.HasPrefix(p.line, "item") {
		return nil, fmt.Errorf("%w: missing item list", ErrParse)
	}
	for i := 0; i < int(size); i++ {
		tier, err := p.parseTier()
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", i+1, err)
		}
		grid.Tiers = append(grid.Tiers, tier)
	}
	return grid, nil
}

func (p *parser) parseTier() (Tier, error) {
	var tier Tier
	// "item [n]:" header line.
	if !p.next() || !strings.HasPrefix(p.line, "item") {
		return tier, fmt.Errorf("%w: missing item header", ErrParse)
	}
	class, err := p.expectString("class")
	if err != nil {
		return tier, err
	}
	switch TierType(class) {
	case IntervalTier, PointTier:
		tier.Type = TierType(class)
	default:
		return tier, fmt.Errorf("%w: unknown tier class %q", ErrParse, class)
	}
	if tier.Name, err = p.expectString("name"); err != nil {
		return tier, err
	}
	if tier.Xmin, err = p.expectNumber("xmin"); err != nil {
		return tier, err
	}
	if tier.Xmax, err = p.expectNumber("xmax"); err != nil {
		return tier, err
	}
	size, err := p.expectNumberAnyKey("intervals: size", "points: size")
	if err != nil {
		return tier, err
	}
	for i := 0; i < int(size); i++ {
		if tier.Type == IntervalTier {
			interval, err := p.parseInterval()
			if err != nil {
				return tier, fmt.Errorf("interval %d: %w", i+1, err)
			}
			tier.Intervals = append(tier.Intervals, interval)
		} else {
			point, err := p.parsePoint()
			if err != nil {
				return tier, fmt.Errorf("point %d: %w", i+1, err)
			}
			tier.Points = append(tier.Points, point)
		}
	}
	return tier, nil
}

func (p *parser) parseInterval() (Interval, error) {
	var interval Interval
	if !p.next() || !strings.HasPrefix(p.line, "intervals") {
		return interval, fmt.Errorf("%w: missing intervals header", ErrParse)
	}
	var err error
	if interval.Xmin, err = p.expectNumber("xmin"); err != nil {
		return interval, err
	}
	if interval.Xmax, err = p.expectNumber("xmax"); err != nil {
		return interval, err
	}
	if interval.Text, err = p.expectString("text"); err != nil {
		return interval, err
	}
	return interval, nil
}

func (p *parser) parsePoint() (Point, error) {
	var point Point
	if !p.next() || !strings.HasPrefix(p.line, "points") {
		return point, fmt.Errorf("%w: missing points header", ErrParse)
	}
	var err error
	if point.Number, err = p.expectNumber("number"); err != nil {
		return point, err
	}
	if point.Mark, err = p.expectString("mark"); err != nil {
		return point, err
	}
	return point, nil
}

func (p *parser) expectNumber(key string) (float64, error) {
	return p.expectNumberAnyKey(key)
}

func (p *parser) expectNumberAnyKey(keys ...string) (float64, error) {
	if !p.next() {
		return 0, fmt.Errorf("%w: unexpected end of file wanting %s", ErrParse, keys[0])
	}
	for _, key := range keys {
		if value, ok := valueAfter(p.line, key); ok {
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %s is not a number: %q", ErrParse, key, value)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: wanted %s, got %q", ErrParse, keys[0], p.line)
}

func (p *parser) expectString(key string) (string, error) {
	if !p.next() {
		return "", fmt.Errorf("%w: unexpected end of file wanting %s", ErrParse, key)
	}
	value, ok := valueAfter(p.line, key)
	if !ok {
		return "", fmt.Errorf("%w: wanted %s, got %q", ErrParse, key, p.line)
	}
	return unquote(value), nil
}

// valueAfter matches lines of the form "key = value".
func valueAfter(line, key string) (string, bool) {
	if !strings.HasPrefix(line, key) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(key):])
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// unquote strips the surrounding quotes and undoubles embedded ones,
// which is how Praat escapes quote characters.
func unquote(value string) string {
	value = strings.TrimPrefix(value, `"`)
	value = strings.TrimSuffix(value, `"`)
	return strings.ReplaceAll(value, `""`, `"`)
}
