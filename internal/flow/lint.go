package flow

import (
	"fmt"
	"math"
	"slices"

	"github.com/myrjola/flowcast/internal/models"
)

// FindingCode classifies a lint finding.
type FindingCode string

const (
	FindingInvalid      FindingCode = "invalid"
	FindingDuplicateID  FindingCode = "duplicate-id"
	FindingDanglingNext FindingCode = "dangling-next"
	FindingOverlap      FindingCode = "overlapping-rules"
	FindingUnknownRoute FindingCode = "unknown-option"
	FindingUnreachable  FindingCode = "unreachable"
)

// Finding is an authoring problem. Findings other than FindingInvalid do not stop traversal but usually indicate a
// mistake.
type Finding struct {
	QuestionID models.QuestionID `json:"questionId"`
	Code       FindingCode       `json:"code"`
	Message    string            `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.QuestionID, f.Code, f.Message)
}

// Lint checks a whole question graph.
//
// Overlapping number rules are resolved by list order at traversal time; Lint reports them with the rule that wins.
func Lint(questions []models.Question) []Finding {
	var findings []Finding
	report := func(id models.QuestionID, code FindingCode, format string, args ...any) {
		findings = append(findings, Finding{QuestionID: id, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	ids := make(map[models.QuestionID]bool, len(questions))
	for _, q := range questions {
		if ids[q.ID] {
			report(q.ID, FindingDuplicateID, "question id is used more than once")
		}
		ids[q.ID] = true
	}

	for _, q := range questions {
		if err := Validate(q); err != nil {
			report(q.ID, FindingInvalid, "%s", err)
		}
		for _, target := range Targets(q) {
			if !ids[target] {
				report(q.ID, FindingDanglingNext, "next question %q does not exist", target)
			}
		}
		switch in := q.Input.(type) {
		case models.ChoiceInput:
			for _, route := range in.Routes {
				if !slices.Contains(in.Options, route.Option) {
					report(q.ID, FindingUnknownRoute, "route for %q never matches, it is not an option", route.Option)
				}
			}
		case models.NumberInput:
			for j := range in.Rules {
				for i := range j {
					if overlaps(in.Rules[i], in.Rules[j]) {
						report(q.ID, FindingOverlap, "rule %d (%s) overlaps rule %d (%s); rule %d wins",
							j+1, describe(in.Rules[j]), i+1, describe(in.Rules[i]), i+1)
					}
				}
			}
		}
	}

	if graph, err := NewGraph(questions); err == nil {
		for _, id := range unreachable(graph) {
			report(id, FindingUnreachable, "question cannot be reached from the entry question")
		}
	}
	return findings
}

func unreachable(g *Graph) []models.QuestionID {
	entry, ok := g.Entry()
	if !ok {
		return nil
	}
	visited := map[models.QuestionID]bool{entry.ID: true}
	queue := []models.QuestionID{entry.ID}
	for len(queue) > 0 {
		q, _ := g.Get(queue[0])
		queue = queue[1:]
		for _, target := range Targets(q) {
			if _, exists := g.Get(target); exists && !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}
	var result []models.QuestionID
	for _, q := range g.Questions() {
		if !visited[q.ID] {
			result = append(result, q.ID)
		}
	}
	return result
}

// interval is the set of numbers a rule matches.
type interval struct {
	lo, hi         float64
	loOpen, hiOpen bool
}

func ruleInterval(rule models.NumberRule) (interval, bool) {
	inf := math.Inf(1)
	switch rule.Op {
	case models.OpLT:
		return interval{lo: -inf, hi: rule.Value, loOpen: true, hiOpen: true}, true
	case models.OpLTE:
		return interval{lo: -inf, hi: rule.Value, loOpen: true}, true
	case models.OpEQ:
		return interval{lo: rule.Value, hi: rule.Value}, true
	case models.OpGTE:
		return interval{lo: rule.Value, hi: inf, hiOpen: true}, true
	case models.OpGT:
		return interval{lo: rule.Value, hi: inf, loOpen: true, hiOpen: true}, true
	case models.OpBetween:
		if rule.Value2 == nil || *rule.Value2 < rule.Value {
			return interval{}, false
		}
		return interval{lo: rule.Value, hi: *rule.Value2}, true
	}
	return interval{}, false
}

func overlaps(a, b models.NumberRule) bool {
	x, ok := ruleInterval(a)
	if !ok {
		return false
	}
	y, ok := ruleInterval(b)
	if !ok {
		return false
	}
	lo, loOpen := x.lo, x.loOpen
	switch {
	case y.lo > lo:
		lo, loOpen = y.lo, y.loOpen
	case y.lo == lo:
		loOpen = loOpen || y.loOpen
	}
	hi, hiOpen := x.hi, x.hiOpen
	switch {
	case y.hi < hi:
		hi, hiOpen = y.hi, y.hiOpen
	case y.hi == hi:
		hiOpen = hiOpen || y.hiOpen
	}
	return lo < hi || (lo == hi && !loOpen && !hiOpen)
}

func describe(rule models.NumberRule) string {
	if rule.Op == models.OpBetween && rule.Value2 != nil {
		return fmt.Sprintf("between %g and %g", rule.Value, *rule.Value2)
	}
	return fmt.Sprintf("%s %g", rule.Op, rule.Value)
}
