package leaderboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/player"
)

type ContextType string

const (
	ContextGlobal  ContextType = "global"
	ContextFriends ContextType = "friends"
	ContextLeague  ContextType = "league"
	ContextCustom  ContextType = "custom"
)

type Context struct {
	Type ContextType
	ID   int64
}

func Global() Context { return Context{Type: ContextGlobal} }

// Key is the cache partition key: "global", "friends:<player>", "league:<id>", "custom:<id>".
func (c Context) Key() string {
	if c.Type == ContextGlobal {
		return string(ContextGlobal)
	}
	return string(c.Type) + ":" + strconv.FormatInt(c.ID, 10)
}

func (c Context) Validate() error {
	switch c.Type {
	case ContextGlobal:
		return nil
	case ContextFriends, ContextLeague, ContextCustom:
		if c.ID <= 0 {
			return fmt.Errorf("context %s requires a positive id", c.Type)
		}
		return nil
	}
	return fmt.Errorf("unsupported context %q", c.Type)
}

func ParseKey(key string) (Context, error) {
	if key == string(ContextGlobal) {
		return Global(), nil
	}
	kind, rawID, ok := strings.Cut(key, ":")
	if !ok {
		return Context{}, fmt.Errorf("malformed context key %q", key)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Context{}, fmt.Errorf("malformed context id in %q: %w", key, err)
	}
	c := Context{Type: ContextType(kind), ID: id}
	return c, c.Validate()
}

type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

type Metric struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Unit        string    `json:"unit"`
	SortOrder   SortOrder `json:"sort_order"`
}

var metrics = []Metric{
	{Name: "total_makes", DisplayName: "Total Makes", Unit: "makes", SortOrder: SortDesc},
	{Name: "best_streak", DisplayName: "Best Streak", Unit: "consecutive", SortOrder: SortDesc},
	{Name: "make_percentage", DisplayName: "Make Percentage", Unit: "%", SortOrder: SortDesc},
	{Name: "total_sessions", DisplayName: "Sessions Played", Unit: "sessions", SortOrder: SortDesc},
	{Name: "makes_per_minute", DisplayName: "Makes per Minute", Unit: "makes/min", SortOrder: SortDesc},
	{Name: "fastest_21", DisplayName: "Fastest 21 Makes", Unit: "seconds", SortOrder: SortAsc},
}

func LookupMetric(name string) (Metric, bool) {
	for _, m := range metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

func Metrics() []Metric {
	return append([]Metric(nil), metrics...)
}

type Entry struct {
	Rank          int
	PlayerID      int64
	PlayerName    string
	Value         float64
	SessionsCount int
}

// Rank sorts entries by metric direction, ties by player id, and numbers them from 1.
func Rank(entries []Entry, m Metric) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value == out[j].Value {
			return out[i].PlayerID < out[j].PlayerID
		}
		if m.SortOrder == SortAsc {
			return out[i].Value < out[j].Value
		}
		return out[i].Value > out[j].Value
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Window keeps the first limit entries plus the row for playerID, when present.
func Window(ranked []Entry, limit int, playerID int64) ([]Entry, *Entry) {
	var mine *Entry
	for i := range ranked {
		if ranked[i].PlayerID == playerID {
			e := ranked[i]
			mine = &e
			break
		}
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, mine
}

// Tally is the per-player input every metric is derived from.
type Tally struct {
	PlayerID  int64
	Name      string
	Sessions  int
	Putts     int
	Makes     int
	Streak    int
	Fastest21 *float64
	Duration  float64
}

// Value reports false when the player has no value for the metric.
func (t Tally) Value(metric string) (float64, bool) {
	switch metric {
	case "total_makes":
		return float64(t.Makes), true
	case "best_streak":
		return float64(t.Streak), true
	case "make_percentage":
		return player.Percentage(t.Makes, t.Putts), true
	case "total_sessions":
		return float64(t.Sessions), true
	case "makes_per_minute":
		if t.Duration <= 0 {
			return 0, true
		}
		return float64(t.Makes) / (t.Duration / 60), true
	case "fastest_21":
		if t.Fastest21 == nil {
			return 0, false
		}
		return *t.Fastest21, true
	}
	return 0, false
}

// Entries ranks every tally that has putted at least once.
func Entries(tallies []Tally, m Metric) []Entry {
	entries := make([]Entry, 0, len(tallies))
	for _, t := range tallies {
		if t.Putts <= 0 {
			continue
		}
		v, ok := t.Value(m.Name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			PlayerID:      t.PlayerID,
			PlayerName:    t.Name,
			Value:         v,
			SessionsCount: t.Sessions,
		})
	}
	return Rank(entries, m)
}

type Board struct {
	Context      Context
	Metric       Metric
	Entries      []Entry
	PlayerRank   *Entry
	FromCache    bool
	CalculatedAt time.Time
}

type Group struct {
	ID        int64
	Name      string
	CreatedBy int64
	MemberIDs []int64
	CreatedAt time.Time
}
