package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/marketplace-api/internal/app"
	"github.com/ignatzorin/marketplace-api/internal/catalog"
	"github.com/ignatzorin/marketplace-api/internal/config"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(app.LogLevel(cfg.Env), cfg.Env)
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "миграции применены")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Создать учётную запись администратора",
		Long: `Администраторы не регистрируются через API, только этой командой.

Пример:
  marketctl create-admin --email admin@example.com --password 'Str0ngPass' --name Admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			conn, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			tokens := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
			auth := service.NewAuthService(repository.NewUserRepository(conn), tokens)

			user, err := auth.CreateAdmin(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "администратор создан: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email администратора")
	cmd.Flags().StringVar(&password, "password", "", "пароль")
	cmd.Flags().StringVar(&name, "name", "Administrator", "отображаемое имя")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func packagesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Показать каталог пакетов connects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPackages(cmd.OutOrStdout(), catalog.Default(), asJSON)
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "вывести в JSON")

	return cmd
}

func printPackages(w io.Writer, cat *catalog.Catalog, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cat.Packages())
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONNECTS\tPRICE\tFEATURES")
	for _, p := range cat.Packages() {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f %s\t%s\n", p.ID, p.Name, p.Connects, p.Price, cat.Currency, strings.Join(p.Features, "; "))
	}
	return tw.Flush()
}
