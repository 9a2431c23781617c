package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/facilityhub/facility/pkg/common"
	"github.com/facilityhub/facility/pkg/gateway"
	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the gateway and its store, mirror and Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := getClient().Health(cmd.Context())
			if err != nil {
				return err
			}

			if ok, err := PrintStructured(result); ok {
				return err
			}

			status, _ := result["status"].(string)
			if status == "ok" {
				PrintSuccessf("Gateway %s is healthy", CodeStyle.Render(apiAddr))
			} else {
				PrintWarning(fmt.Sprintf("Gateway %s is not healthy", apiAddr))
			}
			PrintNewline()

			components, _ := result["components"].(map[string]any)
			names := make([]string, 0, len(components))
			for name := range components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				PrintKeyValue(name, fmt.Sprint(components[name]))
			}

			if status != "ok" {
				return fmt.Errorf("gateway reported status %q", status)
			}
			return nil
		},
	}
}

// loadConfig layers path between CONFIG_PATH and the FACILITY_* env
func loadConfig(path string) (types.AppConfig, error) {
	configManager, err := common.NewConfigManager[types.AppConfig](path)
	if err != nil {
		return types.AppConfig{}, err
	}
	return configManager.GetConfig(), nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gateway configuration",
	}

	var configPath string
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the merged configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configManager, err := common.NewConfigManager[types.AppConfig](configPath)
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, configManager.Print())
			return nil
		},
	}
	printCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json or toml) merged over the defaults")

	cmd.AddCommand(printCmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		Long: `Apply the Postgres schema migrations directly, without starting a gateway.

In remote mode the same Redis lock the gateway takes at startup is held
while migrating, so this is safe to run next to running replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			backend, err := repository.NewPostgresBackend(config.Database.Postgres)
			if err != nil {
				return err
			}
			defer backend.Close()

			var rdb *common.RedisClient
			if !config.IsLocalMode() {
				rdb, err = common.NewRedisClient(config.Database.Redis, common.WithClientName("FacilityCLI"))
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer rdb.Close()
			}

			if err := gateway.MigrateWithLock(cmd.Context(), backend, rdb); err != nil {
				return err
			}

			PrintSuccessf("Migrations applied to %s", CodeStyle.Render(config.Database.Postgres.Database))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json or toml) merged over the defaults")
	return cmd
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a gateway in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gateway.SetupLogging(config)

			gw, err := gateway.NewGatewayWithConfig(config)
			if err != nil {
				return err
			}
			return gw.Start()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json or toml) merged over the defaults")
	return cmd
}
