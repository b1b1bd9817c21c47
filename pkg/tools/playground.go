package tools

/*
Playground serves GraphQL Playground, an alternative query console
with tabs and shareable workspaces. The zero value mounts the embedded
page at <endpoint>/playground.
*/
type Playground struct {
	// SubPath overrides the default mount point.
	SubPath string

	// Template replaces the embedded page. It is parsed as
	// html/template with {{.Endpoint}} available.
	Template string
}

func (Playground) Name() string { return "playground" }

func (t Playground) Path() string { return t.SubPath }

func (t Playground) Render(endpoint string) ([]byte, error) {
	return render("playground", t.Template, endpoint)
}
