package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/stages"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

func scriptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Write a narration script for a theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			theme, _ := cmd.Flags().GetString("theme")
			keywords, _ := cmd.Flags().GetStringSlice("keywords")
			duration, _ := cmd.Flags().GetInt("duration")

			st, err := a.scriptStage()
			if err != nil {
				return err
			}
			script, path, err := st.Run(cmd.Context(), ports.ScriptRequest{
				Theme:          theme,
				Keywords:       keywords,
				TargetDuration: duration,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d segments, %.1fs)\n%s\n",
				script.Title, len(script.Narration), script.TotalDuration(), path)
			return nil
		},
	}
	cmd.Flags().String("theme", "", "Video theme")
	cmd.Flags().StringSlice("keywords", nil, "Keywords to work in")
	cmd.Flags().Int("duration", 0, "Target length in seconds (default from config)")
	_ = cmd.MarkFlagRequired("theme")
	return cmd
}

func voiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Synthesize narration for a script",
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := loadScriptFlag(cmd)
			if err != nil {
				return err
			}
			res, err := a.voiceStage().Run(cmd.Context(), script, prefixFlag(cmd))
			if err != nil {
				return err
			}
			printResult(cmd, res.Summary, res.MetadataPath)
			return nil
		},
	}
	scriptFlags(cmd)
	return cmd
}

func speakersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "speakers",
		Short: "List the VOICEVOX voices and their speaker IDs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			speakers, err := a.voicevox().Speakers(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range speakers {
				for _, st := range s.Styles {
					fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s (%s)\n", st.ID, s.Name, st.Name)
				}
			}
			return nil
		},
	}
}

func imagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Generate a background image per narration segment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := loadScriptFlag(cmd)
			if err != nil {
				return err
			}
			st, err := a.imagesStage()
			if err != nil {
				return err
			}
			res, err := st.Run(cmd.Context(), script, prefixFlag(cmd))
			if err != nil {
				return err
			}
			printResult(cmd, res.Summary, res.MetadataPath)
			return nil
		},
	}
	scriptFlags(cmd)
	return cmd
}

func mediaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Download stock footage for a script or explicit queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queries, _ := cmd.Flags().GetStringSlice("queries")
			if len(queries) == 0 {
				script, err := loadScriptFlag(cmd)
				if err != nil {
					return err
				}
				if queries, err = stages.Queries(script); err != nil {
					return err
				}
			}
			st, err := a.mediaStage()
			if err != nil {
				return err
			}
			res, err := st.Run(cmd.Context(), queries, prefixFlag(cmd))
			if err != nil {
				return err
			}
			printResult(cmd, res.Summary, res.MetadataPath)
			return nil
		},
	}
	scriptFlags(cmd)
	cmd.Flags().StringSlice("queries", nil, "Search queries (overrides --script)")
	return cmd
}

func composeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Render the final video from stage metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in stages.ComposeInput
			in.AudioMetadata, _ = cmd.Flags().GetString("audio-meta")
			in.ImageMetadata, _ = cmd.Flags().GetString("image-meta")
			in.MediaMetadata, _ = cmd.Flags().GetString("media-meta")
			in.Output, _ = cmd.Flags().GetString("output")

			res, err := a.composeStage().Run(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%.1fs, %s)\n", res.FilePath, res.Duration, res.Resolution)
			return nil
		},
	}
	cmd.Flags().String("audio-meta", "", "Audio metadata file")
	cmd.Flags().String("image-meta", "", "Image metadata file")
	cmd.Flags().String("media-meta", "", "Media metadata file")
	cmd.Flags().String("output", "", "Output path (default videos/short_{timestamp}.mp4)")
	_ = cmd.MarkFlagRequired("audio-meta")
	return cmd
}

func publishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a video to YouTube, or update an uploaded one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			video, _ := cmd.Flags().GetString("video")
			update, _ := cmd.Flags().GetString("update")
			privacy, _ := cmd.Flags().GetString("privacy")
			notShorts, _ := cmd.Flags().GetBool("not-shorts")

			req := types.UploadRequest{Privacy: privacy, IsShorts: !notShorts}
			if path, _ := cmd.Flags().GetString("script"); path != "" {
				script, err := store.LoadScript(path)
				if err != nil {
					return err
				}
				req.Title = script.Title
				req.Description = script.Description
				req.Tags = script.Tags
			}
			if title, _ := cmd.Flags().GetString("title"); title != "" {
				req.Title = title
			}

			st := a.publishStage()
			if update != "" {
				if req.IsShorts {
					req = stages.ShortsRequest(req)
				}
				if err := st.Update(cmd.Context(), update, req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", update)
				return nil
			}

			if video == "" {
				return errors.New("--video is required unless --update is given")
			}
			if req.Title == "" {
				req.Title = "Untitled"
			}
			resp, err := st.Run(cmd.Context(), video, req)
			if err != nil {
				return err
			}
			url := resp.VideoURL
			if resp.ShortsURL != "" {
				url = resp.ShortsURL
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.VideoID, url)
			return nil
		},
	}
	cmd.Flags().String("video", "", "Video file to upload")
	cmd.Flags().String("script", "", "Script file for title, description and tags")
	cmd.Flags().String("title", "", "Title (overrides the script)")
	cmd.Flags().String("privacy", "", "private, unlisted or public (default from config)")
	cmd.Flags().String("update", "", "Update the metadata of this video ID instead of uploading")
	cmd.Flags().Bool("not-shorts", false, "Skip the Shorts checks and #Shorts tagging")
	return cmd
}

func scriptFlags(cmd *cobra.Command) {
	cmd.Flags().String("script", "", "Script JSON file")
	cmd.Flags().String("prefix", "", "Output file prefix (default {stage}_{timestamp})")
}

func loadScriptFlag(cmd *cobra.Command) (*types.ScriptData, error) {
	path, _ := cmd.Flags().GetString("script")
	if path == "" {
		return nil, errors.New("--script is required")
	}
	return store.LoadScript(path)
}

func prefixFlag(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("prefix")
	return p
}

// printResult writes the batch summary. A batch where nothing succeeded is
// reported, not returned as an error.
func printResult(cmd *cobra.Command, summary, metadata string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", summary, metadata)
}
