package node

import "strconv"

// Expr is a traced operation. Nodes reference the Expr that produced them and
// the Exprs that consume them; the operation model itself lives elsewhere.
type Expr interface {
	// ExprID is the stable reference persisted in place of the Expr.
	ExprID() int
}

// ExprRef stands in for an Expr restored from persisted state when no live
// Expr is available.
type ExprRef int

// ExprID implements Expr.
func (r ExprRef) ExprID() int { return int(r) }

func (r ExprRef) String() string {
	return "$" + strconv.Itoa(int(r))
}
