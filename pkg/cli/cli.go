package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

const defaultAPIAddr = "http://localhost:8080"

var (
	apiAddr      string
	authToken    string
	outputFormat string
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facility",
		Short: "Manage facilities, rooms and residents",
		Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("facility") + ` - Manage facilities, rooms and residents

Talks to a running gateway over its REST API. Records are read from and
written to the record store; search goes through the search mirror.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return SetOutputFormat(outputFormat)
		},
	}

	cmd.SetHelpTemplate(helpTemplate)
	cmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("facility"), Version))

	cmd.PersistentFlags().StringVar(&apiAddr, "api", getEnv("FACILITY_API", defaultAPIAddr), "Gateway HTTP address")
	cmd.PersistentFlags().StringVar(&authToken, "token", getEnv("FACILITY_TOKEN", ""), "API bearer token")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(OutputTable), "Output format (table, json, yaml)")

	cmd.AddCommand(facilityCmd())
	cmd.AddCommand(roomCmd())
	cmd.AddCommand(residentCmd())
	cmd.AddCommand(healthCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(serveCmd())

	return cmd
}

// Execute runs the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintFormattedError("Command failed", err)
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getClient() *Client {
	return NewClient(apiAddr, authToken)
}
