package tools

/*
Voyager serves GraphQL Voyager, which renders the schema as an
interactive graph by introspecting the endpoint. The zero value mounts
the embedded page at <endpoint>/voyager.
*/
type Voyager struct {
	// SubPath overrides the default mount point.
	SubPath string

	// Template replaces the embedded page. It is parsed as
	// html/template with {{.Endpoint}} available.
	Template string
}

func (Voyager) Name() string { return "voyager" }

func (t Voyager) Path() string { return t.SubPath }

func (t Voyager) Render(endpoint string) ([]byte, error) {
	return render("voyager", t.Template, endpoint)
}
