package dataset

import "fmt"

// statisticSet is an insertion-ordered name-keyed set of Statistics,
// shared by Recording and Session.
type statisticSet struct {
	byName map[string]*Statistic
	order  []string
}

func newStatisticSet() statisticSet {
	return statisticSet{byName: make(map[string]*Statistic)}
}

func (s *statisticSet) add(statistic *Statistic, replace bool) error {
	name := statistic.Name()
	if _, exists := s.byName[name]; exists {
		if !replace {
			return fmt.Errorf(
				"%w: a statistic named %q already exists and replace was not set",
				ErrOverwrite, name)
		}
		s.byName[name] = statistic
		return nil
	}
	s.byName[name] = statistic
	s.order = append(s.order, name)
	return nil
}

func (s *statisticSet) get(name string) (*Statistic, bool) {
	statistic, ok := s.byName[name]
	return statistic, ok
}

func (s *statisticSet) names() []string {
	return append([]string{}, s.order...)
}
