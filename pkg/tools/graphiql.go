package tools

/*
GraphiQL serves the GraphiQL query console. The zero value mounts the
embedded page at <endpoint>/graphiql.
*/
type GraphiQL struct {
	// SubPath overrides the default mount point.
	SubPath string

	// Template replaces the embedded page. It is parsed as
	// html/template with {{.Endpoint}} available.
	Template string
}

func (GraphiQL) Name() string { return "graphiql" }

func (t GraphiQL) Path() string { return t.SubPath }

func (t GraphiQL) Render(endpoint string) ([]byte, error) {
	return render("graphiql", t.Template, endpoint)
}
