package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
)

func newLinkCmd(opts *rootOptions) *cobra.Command {
	var partFlag, caller string

	cmd := &cobra.Command{
		Use:   "link MODEL [MODEL...]",
		Short: "Record that the given models share a part",
		Example: `  partcompat link --part display "Galaxy A52" "Galaxy A52s" "Galaxy A53"
  partcompat link --part glass "iPhone 12" "iPhone 12 Pro"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, err := compat.ParsePartType(partFlag)
			if err != nil {
				return err
			}
			s, err := opts.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.LinkParts(cmd.Context(), args, part)
			if err != nil {
				return err
			}
			s.recordAudit(cmd.Context(), &audit.AuditLog{
				Action:     audit.ActionLink,
				EntityType: audit.EntityGroup,
				EntityID:   res.GroupID,
				CallerID:   caller,
				Details:    map[string]any{"part_type": string(part), "members": res.Members},
			})

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "%s compatibility set for %d models (group %s)\n", part.Label(), len(res.Members), res.GroupID)
			for _, m := range res.Members {
				fmt.Fprintf(out, "  %s\n", m)
			}
			if n := len(res.MergedGroupIDs); n > 0 {
				fmt.Fprintf(out, "merged %d existing group(s)\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&partFlag, "part", "p", "", "part type: display or glass")
	cmd.Flags().StringVar(&caller, "caller", "", "identity recorded in the audit log (default current user)")
	_ = cmd.MarkFlagRequired("part") //nolint:errcheck // flag defined above
	return cmd
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find MODEL",
		Short: "Show a phone's stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.engine.Find(cmd.Context(), args[0])
			if errors.Is(err, compat.ErrPhoneNotFound) {
				return fmt.Errorf("model %q not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, p)
			}
			fmt.Fprintln(out, p.ModelID)
			for _, part := range compat.PartTypes {
				id, ok := p.GroupID(part)
				if !ok {
					id = "-"
				}
				fmt.Fprintf(out, "  %-8s %s\n", part, id)
			}
			return nil
		},
	}
}

func newCompatibleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "compatible MODEL PART",
		Short:   "List models that share PART (display or glass) with MODEL",
		Example: `  partcompat compatible "galaxy a52" display`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, err := compat.ParsePartType(args[1])
			if err != nil {
				return err
			}
			s, err := opts.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			models, err := s.engine.GetCompatibleModels(cmd.Context(), args[0], part)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, models)
			}
			if len(models) == 0 {
				fmt.Fprintf(out, "no %s-compatible models for %q\n", part, args[0])
				return nil
			}
			fmt.Fprintln(out, strings.Join(models, "\n"))
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "delete MODEL",
		Short: "Delete a phone and remove it from its groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.DeletePhoneDetailed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("model %q not found", args[0])
			}
			s.recordAudit(cmd.Context(), &audit.AuditLog{
				Action:     audit.ActionDelete,
				EntityType: audit.EntityPhone,
				EntityID:   res.ModelID,
				CallerID:   caller,
				Details:    map[string]any{"emptied_group_ids": res.EmptiedGroupIDs},
			})

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "deleted %s\n", res.ModelID)
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "identity recorded in the audit log (default current user)")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			models, err := s.engine.ListAllModels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, models)
			}
			for _, m := range models {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}
}

func newGroupsCmd(opts *rootOptions) *cobra.Command {
	var partFlag string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List compatibility groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var part compat.PartType
			if partFlag != "" {
				p, err := compat.ParsePartType(partFlag)
				if err != nil {
					return err
				}
				part = p
			}
			s, err := opts.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			groups, err := s.engine.ListGroups(cmd.Context(), part)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, groups)
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s %-7s %s\n", g.ID, g.PartType, strings.Join(g.Members, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&partFlag, "part", "p", "", "only groups of this part type")
	return cmd
}

// errIntegrity makes `check` exit non-zero when issues are found.
var errIntegrity = errors.New("integrity issues found")

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Scan phones and groups for reference mismatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.engine.CheckIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%d phones, %d groups, %d issues\n", report.Phones, report.Groups, len(report.Issues))
				for _, is := range report.Issues {
					fmt.Fprintf(out, "  %-18s model=%q group=%s %s\n", is.Kind, is.ModelID, is.GroupID, is.Detail)
				}
			}
			if !report.OK() {
				return errIntegrity
			}
			return nil
		},
	}
}
