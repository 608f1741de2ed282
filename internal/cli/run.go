package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ai-shorts-factory/internal/pipeline"
	"ai-shorts-factory/internal/ports/adapters/youtube"
)

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage end to end",
		Long: "Run every stage end to end. Without --theme the next unused topic\n" +
			"from the configured subreddits is used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			theme, _ := cmd.Flags().GetString("theme")
			publish, _ := cmd.Flags().GetBool("publish")
			privacy, _ := cmd.Flags().GetString("privacy")

			p, err := a.pipeline(publish)
			if err != nil {
				return err
			}
			state, err := p.Run(cmd.Context(), pipeline.Request{Theme: theme, Publish: publish, Privacy: privacy})
			if err != nil {
				return fmt.Errorf("run %s: %w", state.RunID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s\nvideo %s\n", state.RunID, state.Video.FilePath)
			if state.Upload != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s %s\n", state.Upload.VideoID, state.Upload.ShortsURL)
			}
			return nil
		},
	}
	cmd.Flags().String("theme", "", "Video theme (default: next research topic)")
	cmd.Flags().Bool("publish", false, "Upload the result to YouTube")
	cmd.Flags().String("privacy", "", "Upload privacy (default from config)")
	return cmd
}

func topicCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "topic",
		Short: "Pick the next unused research topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := a.topicFinder()
			if err != nil {
				return err
			}
			t, err := f.Next(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%d] %s\n%s\n", t.ID, t.Score, t.Title, t.SourceURL)
			return nil
		},
	}
}

func authCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize YouTube uploads and save the OAuth token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := youtube.Authorize(cmd.Context(), a.cfg.Publish, cmd.InOrStdin(), cmd.OutOrStdout())
			return err
		},
	}
}
