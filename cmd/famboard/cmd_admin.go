package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famboard/internal/database"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := database.Version(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database at migration %d\n", v)
		return nil
	},
}

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage family members",
}

var (
	memberName  string
	memberRole  string
	memberColor string
)

var memberAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a family member",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var color *string
		if memberColor != "" {
			color = &memberColor
		}
		m, err := store.NewMemberStore(db).Create(cmd.Context(), memberName, color, model.Role(memberRole))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) with id %d\n", m.Name, m.Role, m.ID)
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List family members",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		members, err := store.NewMemberStore(db).List(cmd.Context())
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", m.ID, m.Name, m.Role)
		}
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Issue sessions for family members",
}

var sessionMember int64

// Sign-in itself belongs to an external identity provider; this issues the
// token it would hand out.
var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session token for a member",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		m, err := store.NewMemberStore(db).GetByID(cmd.Context(), sessionMember)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("no family member with id %d", sessionMember)
		}
		sess, err := store.NewSessionStore(db).Create(cmd.Context(), m.ID, cfg.Server.SessionTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sess.Token)
		return nil
	},
}

func init() {
	memberAddCmd.Flags().StringVar(&memberName, "name", "", "member name")
	memberAddCmd.Flags().StringVar(&memberRole, "role", string(model.RoleChild), "parent or child")
	memberAddCmd.Flags().StringVar(&memberColor, "color", "", "display color, e.g. #3b82f6")
	memberAddCmd.MarkFlagRequired("name")
	memberCmd.AddCommand(memberAddCmd, memberListCmd)

	sessionCreateCmd.Flags().Int64Var(&sessionMember, "member", 0, "member id")
	sessionCreateCmd.MarkFlagRequired("member")
	sessionCmd.AddCommand(sessionCreateCmd)
}

// openDB opens the configured database, running migrations.
func openDB() (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
