package ast

// Statement is the interface for all query statement nodes.  Statements
// are also expressions: any statement may appear in expression position
// as a subquery.
type Statement interface {
	Expr
	stmtNode()
	// WithBlock returns the WITH-block aliases of the statement.
	WithBlock() []Alias
}

type (
	SelectQuery struct {
		Kind        string      `json:"kind" unpack:""`
		Aliases     []Alias     `json:"aliases"`
		Result      Expr        `json:"result"`
		ResultAlias string      `json:"result_alias"`
		Where       Expr        `json:"where"`
		OrderBy     []*SortExpr `json:"order_by"`
		Offset      Expr        `json:"offset"`
		Limit       Expr        `json:"limit"`
		Loc         `json:"loc"`
	}
	InsertQuery struct {
		Kind    string          `json:"kind" unpack:""`
		Aliases []Alias         `json:"aliases"`
		Subject ObjectRef       `json:"subject"`
		Shape   []*ShapeElement `json:"shape"`
		Loc     `json:"loc"`
	}
	UpdateQuery struct {
		Kind    string          `json:"kind" unpack:""`
		Aliases []Alias         `json:"aliases"`
		Subject Expr            `json:"subject"`
		Where   Expr            `json:"where"`
		Shape   []*ShapeElement `json:"shape"`
		Loc     `json:"loc"`
	}
	DeleteQuery struct {
		Kind    string  `json:"kind" unpack:""`
		Aliases []Alias `json:"aliases"`
		Subject Expr    `json:"subject"`
		Where   Expr    `json:"where"`
		Loc     `json:"loc"`
	}
	// ForQuery iterates Body once per element of Iterator with the
	// element bound to IteratorAlias as a singleton.
	ForQuery struct {
		Kind          string  `json:"kind" unpack:""`
		Aliases       []Alias `json:"aliases"`
		Iterator      Expr    `json:"iterator"`
		IteratorAlias string  `json:"iterator_alias"`
		Body          Expr    `json:"body"`
		Loc           `json:"loc"`
	}
	GroupQuery struct {
		Kind    string  `json:"kind" unpack:""`
		Aliases []Alias `json:"aliases"`
		Subject Expr    `json:"subject"`
		Using   []Alias `json:"using"`
		By      []*Path `json:"by"`
		Loc     `json:"loc"`
	}
)

// Alias is a WITH-block binding: either a module alias or an aliased
// expression.
type Alias interface {
	Node
	aliasNode()
}

type (
	ModuleAlias struct {
		Kind   string `json:"kind" unpack:""`
		Alias  string `json:"alias"`
		Module string `json:"module"`
		Loc    `json:"loc"`
	}
	AliasedExpr struct {
		Kind  string `json:"kind" unpack:""`
		Alias string `json:"alias"`
		Expr  Expr   `json:"expr"`
		Loc   `json:"loc"`
	}
)

type SortExpr struct {
	Expr       Expr   `json:"expr"`
	Descending bool   `json:"descending"`
	EmptyLast  bool   `json:"empty_last"`
	Loc        `json:"loc"`
}

func (*ModuleAlias) aliasNode() {}
func (*AliasedExpr) aliasNode() {}

func (s *SelectQuery) WithBlock() []Alias { return s.Aliases }
func (s *InsertQuery) WithBlock() []Alias { return s.Aliases }
func (s *UpdateQuery) WithBlock() []Alias { return s.Aliases }
func (s *DeleteQuery) WithBlock() []Alias { return s.Aliases }
func (s *ForQuery) WithBlock() []Alias    { return s.Aliases }
func (s *GroupQuery) WithBlock() []Alias  { return s.Aliases }

func (*SelectQuery) stmtNode() {}
func (*InsertQuery) stmtNode() {}
func (*UpdateQuery) stmtNode() {}
func (*DeleteQuery) stmtNode() {}
func (*ForQuery) stmtNode()    {}
func (*GroupQuery) stmtNode()  {}

func (*SelectQuery) exprNode() {}
func (*InsertQuery) exprNode() {}
func (*UpdateQuery) exprNode() {}
func (*DeleteQuery) exprNode() {}
func (*ForQuery) exprNode()    {}
func (*GroupQuery) exprNode()  {}
