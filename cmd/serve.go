package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/fibergraphql"
)

var (
	portFlag   int
	hostFlag   string
	pathFlag   string
	prettyFlag bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo GraphQL endpoint",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfig(cmd)

			schema := graphql.MustParseSchema(demoSchema, newDemoResolver())

			app := fiber.New(fiber.Config{
				AppName:      "fibergraphql-demo",
				ServerHeader: "FiberGraphQL-Server",
			})
			app.Use(logger.New(logger.Config{
				// Skip logging for the health endpoints to reduce noise
				Next: func(c fiber.Ctx) bool {
					return c.Path() == "/livez" || c.Path() == "/readyz"
				},
			}), healthcheck.New())

			opts := []fibergraphql.Option{
				fibergraphql.WithTools(configuredTools()...),
				fibergraphql.WithSubscriptions(),
			}
			if prettyFlag {
				opts = append(opts, fibergraphql.WithPretty())
			}

			if err := fibergraphql.Attach(app, pathFlag, schema, opts...); err != nil {
				return err
			}

			log.Info("serving graphql",
				"host", hostFlag, "port", portFlag, "path", pathFlag)

			return app.Listen(
				fmt.Sprintf("%s:%d", hostFlag, portFlag),
				fiber.ListenConfig{DisableStartupMessage: true},
			)
		},
	}
)

// applyConfig lets the config file fill in any flag the caller did not
// set explicitly.
func applyConfig(cmd *cobra.Command) {
	if !cmd.Flags().Changed("port") && viper.IsSet("server.port") {
		portFlag = viper.GetInt("server.port")
	}
	if !cmd.Flags().Changed("host") && viper.IsSet("server.host") {
		hostFlag = viper.GetString("server.host")
	}
	if !cmd.Flags().Changed("path") && viper.IsSet("server.path") {
		pathFlag = viper.GetString("server.path")
	}
	if !cmd.Flags().Changed("pretty") && viper.IsSet("server.pretty") {
		prettyFlag = viper.GetBool("server.pretty")
	}
}

// configuredTools maps the config file's tool names onto descriptors.
func configuredTools() []fibergraphql.Tool {
	names := viper.GetStringSlice("server.tools")

	list := make([]fibergraphql.Tool, 0, len(names))
	for _, name := range names {
		switch name {
		case "graphiql":
			list = append(list, fibergraphql.GraphiQL{})
		case "playground":
			list = append(list, fibergraphql.Playground{})
		case "voyager":
			list = append(list, fibergraphql.Voyager{})
		default:
			log.Warn("unknown tool in config", "tool", name)
		}
	}
	return list
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
	serveCmd.Flags().StringVar(&pathFlag, "path", "/graphql", "Route path for the GraphQL endpoint")
	serveCmd.Flags().BoolVar(&prettyFlag, "pretty", false, "Indent JSON responses")
}

var longServe = `
Serve a demo GraphQL endpoint backed by a small in-memory message
board schema.

Examples:
  # Serve on port 8080 with the default tools
  fibergraphql serve --port 8080

  # Serve at a custom path with indented responses
  fibergraphql serve --path /api/graphql --pretty
`
