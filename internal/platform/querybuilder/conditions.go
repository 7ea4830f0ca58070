package querybuilder

type Condition interface {
	appendSQL(w *sqlWriter)
}

type compareCondition struct {
	column string
	op     string
	value  any
}

func (c compareCondition) appendSQL(w *sqlWriter) {
	w.write(c.column, " ", c.op, " ")
	w.bind(c.value)
}

func Eq(column string, value any) Condition    { return compareCondition{column, "=", value} }
func NotEq(column string, value any) Condition { return compareCondition{column, "<>", value} }
func Gt(column string, value any) Condition    { return compareCondition{column, ">", value} }
func Gte(column string, value any) Condition   { return compareCondition{column, ">=", value} }
func Lt(column string, value any) Condition    { return compareCondition{column, "<", value} }
func Lte(column string, value any) Condition   { return compareCondition{column, "<=", value} }

// ILike is a case-insensitive pattern match; callers supply the wildcards.
func ILike(column string, pattern string) Condition {
	return compareCondition{column, "ILIKE", pattern}
}

type inCondition struct {
	column string
	values []any
}

// In renders "column IN (...)". An empty list matches nothing.
func In[T any](column string, values []T) Condition {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return inCondition{column: column, values: out}
}

func (c inCondition) appendSQL(w *sqlWriter) {
	if len(c.values) == 0 {
		w.write("1=0")
		return
	}
	w.write(c.column, " IN (")
	for i, v := range c.values {
		if i > 0 {
			w.write(", ")
		}
		w.bind(v)
	}
	w.write(")")
}

type nullCondition struct {
	column string
	not    bool
}

func IsNull(column string) Condition  { return nullCondition{column: column} }
func NotNull(column string) Condition { return nullCondition{column: column, not: true} }

func (c nullCondition) appendSQL(w *sqlWriter) {
	if c.not {
		w.write(c.column, " IS NOT NULL")
		return
	}
	w.write(c.column, " IS NULL")
}

type exprCondition struct {
	expr string
	args []any
}

// Expr embeds a raw fragment using '?' placeholders.
func Expr(expr string, args ...any) Condition {
	return exprCondition{expr: expr, args: args}
}

func (c exprCondition) appendSQL(w *sqlWriter) {
	w.expr(c.expr, c.args)
}

type orCondition struct {
	conditions []Condition
}

// Or groups conditions with OR inside parentheses.
func Or(conditions ...Condition) Condition {
	return orCondition{conditions: conditions}
}

func (c orCondition) appendSQL(w *sqlWriter) {
	if len(c.conditions) == 0 {
		w.write("1=0")
		return
	}
	w.write("(")
	for i, cond := range c.conditions {
		if i > 0 {
			w.write(" OR ")
		}
		cond.appendSQL(w)
	}
	w.write(")")
}
