package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LimoEisbxr/periodix/server/internal/config"
	"github.com/LimoEisbxr/periodix/server/internal/model"
	"github.com/LimoEisbxr/periodix/server/internal/platform/logger"
	"github.com/LimoEisbxr/periodix/server/internal/secrets"
	"github.com/LimoEisbxr/periodix/server/internal/store"
	"github.com/LimoEisbxr/periodix/server/internal/timetable"
	"github.com/LimoEisbxr/periodix/server/timetableservice"
)

var (
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "periodixctl",
		Short: "Operator CLI for the Periodix timetable service",
	}
)

func main() {
	rootCmd.AddCommand(credentialCmd(), fetchCmd(), pruneCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage stored upstream credentials",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Encrypt and store an upstream login for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _ := cmd.Flags().GetString("host")
			school, _ := cmd.Flags().GetString("school")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}
			enc, err := secrets.NewAESGCM(cfg.CredentialKey)
			if err != nil {
				return err
			}
			sealed, err := enc.Encrypt(password)
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := timetableservice.NewStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			err = st.Credentials().Put(ctx, &model.Credential{
				UserID:    userFlag,
				Username:  username,
				Host:      host,
				School:    school,
				Secret:    sealed,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("credential stored for %s\n", userFlag)
			return nil
		},
	}
	set.Flags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
	set.Flags().String("host", "", "Upstream host, e.g. demo.webuntis.com (required)")
	set.Flags().String("school", "", "Upstream school name (required)")
	set.Flags().String("username", "", "Upstream login name (required)")
	set.Flags().String("password", "", "Upstream password (required)")
	_ = set.MarkFlagRequired("user")
	_ = set.MarkFlagRequired("host")
	_ = set.MarkFlagRequired("school")
	_ = set.MarkFlagRequired("username")
	_ = set.MarkFlagRequired("password")
	cmd.AddCommand(set)

	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "One-shot timetable fetch, printed as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			class, _ := cmd.Flags().GetString("class")
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}

			ctx := context.Background()
			st, svc, err := buildService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var res *model.RangeResult
			if class != "" {
				res, err = svc.FetchClassRange(ctx, userFlag, class, start, end)
			} else {
				res, err = svc.FetchUserRange(ctx, userFlag, userFlag, start, end)
			}
			if err != nil {
				return err
			}

			out := json.NewEncoder(os.Stdout)
			out.SetIndent("", "  ")
			return out.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
	cmd.Flags().String("start", "", "Range start (YYYY-MM-DD); empty means today")
	cmd.Flags().String("end", "", "Range end (YYYY-MM-DD); empty means today")
	cmd.Flags().String("class", "", "Class ID or name for a class-scoped fetch")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Run one unthrottled retention pass over the timetable cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, svc, err := buildService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			svc.Pruner().Run(ctx)
			fmt.Println("retention pass complete")
			return nil
		},
	}
}

func buildService(ctx context.Context) (store.Store, *timetable.Service, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	st, err := timetableservice.NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := timetableservice.NewService(st, cfg, logger.New("periodixctl"))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, svc, nil
}
