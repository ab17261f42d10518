package subgraph

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Condition is one where-clause filter, rendered as "{field}_{op}: value".
// An empty Op means exact match on the field itself.
type Condition struct {
	Field string
	Op    string
	Value string
}

func (c Condition) key() string {
	if c.Op == "" {
		return c.Field
	}
	return c.Field + "_" + c.Op
}

// CollapseConditions merges conditions that target the same (field, operator)
// pair, keeping only the one with the maximum value. Two lower bounds on the
// same field would otherwise produce contradictory duplicate clauses; the
// tightest bound is always the larger value.
func CollapseConditions(conds []Condition) []Condition {
	byKey := make(map[string]Condition, len(conds))
	order := make([]string, 0, len(conds))
	for _, c := range conds {
		k := c.key()
		cur, ok := byKey[k]
		if !ok {
			byKey[k] = c
			order = append(order, k)
			continue
		}
		if compareValues(c.Value, cur.Value) > 0 {
			byKey[k] = c
		}
	}
	out := make([]Condition, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// compareValues compares numerically when both sides parse as integers,
// falling back to lexicographic order. Cursor and block values are decimal
// strings well beyond int64 range, hence big.Int.
func compareValues(a, b string) int {
	ai, aok := new(big.Int).SetString(a, 10)
	bi, bok := new(big.Int).SetString(b, 10)
	if aok && bok {
		return ai.Cmp(bi)
	}
	return strings.Compare(a, b)
}

// Query describes one page request against the indexed-data service.
type Query struct {
	Method         string
	Fields         []string
	First          int
	Conditions     []Condition
	ChangeBlockGTE uint64 // 0 means no _change_block clause
	BlockNumber    uint64 // 0 means query at latest
	OrderBy        string
	OrderDirection string
}

// Document renders the query as a GraphQL document. Conditions are collapsed
// and emitted in a stable order so identical queries serialize identically.
func (q Query) Document() string {
	var b strings.Builder
	b.WriteString("query {\n  ")
	b.WriteString(q.Method)
	b.WriteString("(")

	args := make([]string, 0, 5)
	if q.First > 0 {
		args = append(args, fmt.Sprintf("first: %d", q.First))
	}
	if q.OrderBy != "" {
		dir := q.OrderDirection
		if dir == "" {
			dir = "asc"
		}
		args = append(args, fmt.Sprintf("orderBy: %s, orderDirection: %s", q.OrderBy, dir))
	}
	if where := q.renderWhere(); where != "" {
		args = append(args, "where: "+where)
	}
	if q.BlockNumber > 0 {
		args = append(args, fmt.Sprintf("block: {number: %d}", q.BlockNumber))
	}
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(") {\n")
	for _, f := range q.Fields {
		b.WriteString("    ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("  }\n}")
	return b.String()
}

func (q Query) renderWhere() string {
	conds := CollapseConditions(q.Conditions)
	clauses := make([]string, 0, len(conds)+1)
	for _, c := range conds {
		clauses = append(clauses, fmt.Sprintf("%s: %q", c.key(), c.Value))
	}
	sort.Strings(clauses)
	if q.ChangeBlockGTE > 0 {
		clauses = append(clauses, fmt.Sprintf("_change_block: {number_gte: %d}", q.ChangeBlockGTE))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "{" + strings.Join(clauses, ", ") + "}"
}
