package engine

import (
	"context"
	"database/sql"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"studioline/internal/config"
	"studioline/internal/domain"
)

// Scorer rates how well a roster actor fits a role. Scores at or below zero
// mean "not a candidate". Rankings are suggestions only and never assign.
type Scorer interface {
	Score(role domain.RoleSlot, candidate domain.RosterActor) float64
}

type ScorerFunc func(role domain.RoleSlot, candidate domain.RosterActor) float64

func (f ScorerFunc) Score(role domain.RoleSlot, candidate domain.RosterActor) float64 {
	return f(role, candidate)
}

// HeuristicScorer adds weighted points for matching gender, overlapping age
// decades and shared vocal words.
type HeuristicScorer struct {
	Weights config.MatchWeights
}

func (h HeuristicScorer) Score(role domain.RoleSlot, c domain.RosterActor) float64 {
	var score float64
	if g := strings.TrimSpace(role.Gender); g != "" && strings.EqualFold(g, strings.TrimSpace(c.Gender)) {
		score += h.Weights.Gender
	}
	if ageOverlap(role.Age, c.AgeRange) {
		score += h.Weights.Age
	}
	if n := tagOverlap(role.VocalSpecs, c.VoiceTags); n > 0 {
		score += h.Weights.Vocal * float64(n)
	}
	return score
}

type Candidate struct {
	Actor domain.TalentRef `json:"actor"`
	Score float64          `json:"score"`
}

// RankCandidates scores every active actor, drops non-positive scores and
// returns the best first. Ties break on display name.
func RankCandidates(s Scorer, role domain.RoleSlot, roster []domain.RosterActor, limit int) []Candidate {
	out := []Candidate{}
	for _, a := range roster {
		if a.Status != "" && a.Status != domain.RosterActive {
			continue
		}
		score := s.Score(role, a)
		if score <= 0 {
			continue
		}
		out = append(out, Candidate{Actor: a.Ref(), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.ToLower(out[i].Actor.DisplayName) < strings.ToLower(out[j].Actor.DisplayName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MatchCandidates ranks the live roster against one role.
func (e Engine) MatchCandidates(ctx context.Context, productionID, roleID string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = e.cfg().Matching.Limit
	}
	var (
		role   domain.RoleSlot
		roster []domain.RosterActor
	)
	err := e.withTx(ctx, "match_candidates", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.Repo.GetProductionRow(ctx, tx, productionID)
		if err != nil {
			return storeErr("production", productionID, 0, err)
		}
		role, err = e.Repo.GetRole(ctx, tx, p.ID, roleID)
		if err != nil {
			return storeErr("role", roleID, 0, err)
		}
		roster, err = e.Repo.ListActors(ctx, tx, true)
		return err
	})
	if err != nil {
		return []Candidate{}, err
	}
	return RankCandidates(e.scorer(), role, roster, limit), nil
}

var decadeRe = regexp.MustCompile(`(\d{1,2})0s`)

// decades extracts decade starts from text like "30s", "late 20s" or
// "20s-40s". A hyphenated pair expands to every decade in between.
func decades(s string) []int {
	matches := decadeRe.FindAllStringSubmatch(strings.ToLower(s), -1)
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n*10)
	}
	if len(out) == 2 && strings.Contains(s, "-") && out[0] < out[1] {
		filled := []int{}
		for d := out[0]; d <= out[1]; d += 10 {
			filled = append(filled, d)
		}
		return filled
	}
	return out
}

func ageOverlap(roleAge, actorRange string) bool {
	want := decades(roleAge)
	have := decades(actorRange)
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func tagOverlap(specs string, tags []string) int {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(specs), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}) {
		words[w] = true
	}
	n := 0
	for _, t := range tags {
		if words[strings.ToLower(strings.TrimSpace(t))] {
			n++
		}
	}
	return n
}
