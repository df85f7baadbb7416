// Package sportsfeed provides a client for the sports-data API and the
// normalization boundary that maps its loosely-typed payloads onto the
// engine's GameScore model. All shape tolerance lives here; business logic
// never branches on upstream field variants.
package sportsfeed

import (
	"encoding/json"
	"strconv"
)

// JSONInt handles numeric fields the feed serves as either numbers or
// strings ("21" vs 21). Unparseable values decode to zero.
type JSONInt int

func (j *JSONInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*j = JSONInt(n)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONInt(int(f))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Fail closed: drop the value rather than poisoning the snapshot.
		*j = 0
		return nil
	}
	*j = JSONInt(n)
	return nil
}

func (j JSONInt) Int() int { return int(j) }

// JSONString handles identifier fields served as either strings or numbers.
type JSONString string

func (j *JSONString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*j = JSONString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*j = JSONString(n.String())
	return nil
}

func (j JSONString) String() string { return string(j) }

// rawEvent is the upstream game payload. The feed has served competitors
// both nested under competitions and at the top level, and status as both
// an object and a bare string; every variant is captured here and resolved
// once in normalize.go.
type rawEvent struct {
	ID        JSONString `json:"id"`
	Name      string     `json:"name"`
	ShortName string     `json:"shortName"`

	Status       rawStatus        `json:"status"`
	Competitions []rawCompetition `json:"competitions"`

	// Alternate flat shape.
	Competitors []rawCompetitor `json:"competitors"`

	ScoringPlays []rawScoringPlay `json:"scoringPlays"`
	// Alternate name for the same list.
	Plays []rawScoringPlay `json:"plays"`
}

type rawCompetition struct {
	Competitors []rawCompetitor `json:"competitors"`
	Status      *rawStatus      `json:"status"`
}

type rawCompetitor struct {
	HomeAway string  `json:"homeAway"`
	Score    JSONInt `json:"score"`
	Team     rawTeam `json:"team"`

	Linescores []rawLinescore `json:"linescores"`
	// Alternate name seen on older payloads.
	LineScores []rawLinescore `json:"lineScores"`
}

type rawTeam struct {
	DisplayName  string `json:"displayName"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type rawLinescore struct {
	Value JSONInt `json:"value"`
	// Alternate name for the same field.
	DisplayValue JSONInt `json:"displayValue"`
}

func (l rawLinescore) points() int {
	if l.Value != 0 {
		return l.Value.Int()
	}
	return l.DisplayValue.Int()
}

// rawStatus decodes both the object form {"type": {...}, "period": 3} and
// the bare string form "in_progress".
type rawStatus struct {
	Period    int
	State     string
	Completed bool
	Name      string
}

func (s *rawStatus) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Name = plain
		s.State = plain
		return nil
	}

	var obj struct {
		Period JSONInt `json:"period"`
		Type   struct {
			State     string `json:"state"`
			Completed bool   `json:"completed"`
			Name      string `json:"name"`
		} `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Period = obj.Period.Int()
	s.State = obj.Type.State
	s.Completed = obj.Type.Completed
	s.Name = obj.Type.Name
	return nil
}

type rawScoringPlay struct {
	HomeScore JSONInt `json:"homeScore"`
	AwayScore JSONInt `json:"awayScore"`
	Text      string  `json:"text"`

	Period struct {
		Number JSONInt `json:"number"`
	} `json:"period"`
	// Alternate flat field.
	Quarter JSONInt `json:"quarter"`
}

func (p rawScoringPlay) quarter() int {
	if n := p.Period.Number.Int(); n > 0 {
		return n
	}
	return p.Quarter.Int()
}
