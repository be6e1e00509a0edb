package textgrid

// Interval is one labelled span on an interval tier.
type Interval struct {
	Xmin float64
	Xmax float64
	Text string
}

// Point is one labelled instant on a point tier.
type Point struct {
	Number float64
	Mark   string
}

// TierType distinguishes interval tiers from point tiers.
type TierType string

const (
	IntervalTier TierType = "IntervalTier"
	PointTier    TierType = "TextTier"
)

// Tier is one named annotation tier.
type Tier struct {
	Type      TierType
	Name      string
	Xmin      float64
	Xmax      float64
	Intervals []Interval
	Points    []Point
}

// Grid is a full TextGrid: a time span and an ordered list of tiers.
type Grid struct {
	Xmin  float64
	Xmax  float64
	Tiers []Tier
}

// New returns an empty grid spanning the given times.
func New(xmin, xmax float64) *Grid {
	return &Grid{Xmin: xmin, Xmax: xmax}
}

// AddIntervalTier appends an interval tier spanning the grid.
func (g *Grid) AddIntervalTier(name string, intervals []Interval) {
	g.Tiers = append(g.Tiers, Tier{
		Type:      IntervalTier,
		Name:      name,
		Xmin:      g.Xmin,
		Xmax:      g.Xmax,
		Intervals: intervals,
	})
}

// AddPointTier appends a point tier spanning the grid.
func (g *Grid) AddPointTier(name string, points []Point) {
	g.Tiers = append(g.Tiers, Tier{
		Type:   PointTier,
		Name:   name,
		Xmin:   g.Xmin,
		Xmax:   g.Xmax,
		Points: points,
	})
}

// Tier returns the first tier with the given name.
func (g *Grid) Tier(name string) (*Tier, bool) {
	for i := range g.Tiers {
		if g.Tiers[i].Name == name {
			return &g.Tiers[i], true
		}
	}
	return nil, false
}
