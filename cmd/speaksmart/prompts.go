package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speaksmart/internal/app"
	"github.com/MrWong99/speaksmart/internal/config"
	"github.com/MrWong99/speaksmart/internal/practice"
	"github.com/MrWong99/speaksmart/internal/prompts"
	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/tts"
)

func newPromptsCmd(opts *rootOptions) *cobra.Command {
	var (
		overwrite   bool
		concurrency int
		listVoices  bool
	)
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Synthesise the audio prompts of the practice phrase set",
		Long: "Renders each practice phrase's expected text with the configured TTS provider\n" +
			"and encodes it to the Ogg/Opus file the phrase names. Existing files are kept\n" +
			"unless --overwrite is given. --list-voices prints the voices the provider\n" +
			"offers, for picking providers.tts.options.voice_id.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := config.NewRegistry()
			app.RegisterBuiltinProviders(reg)
			synth, voice, err := app.BuildTTS(reg, cfg.Providers.TTS)
			if err != nil {
				return report(cmd, err)
			}
			if listVoices {
				voices, err := synth.ListVoices(ctx)
				if err != nil {
					return report(cmd, err)
				}
				printVoices(cmd, voices, voice.ID)
				return nil
			}

			phrases, err := practice.Load(cfg.Corpus.PracticePath)
			if err != nil {
				return report(cmd, err)
			}

			gen, err := prompts.New(prompts.Config{
				TTS:         synth,
				Encoder:     audio.NewFFmpeg(cfg.Audio.FFmpegPath),
				Voice:       voice,
				WorkDir:     cfg.Audio.WorkDir,
				Overwrite:   overwrite,
				Concurrency: concurrency,
			})
			if err != nil {
				return report(cmd, err)
			}

			results, genErr := gen.Generate(ctx, phrases)
			printResults(cmd, results)
			if genErr != nil {
				return report(cmd, genErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "regenerate prompts whose file already exists")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "number of prompts synthesised in parallel")
	cmd.Flags().BoolVar(&listVoices, "list-voices", false, "print the TTS provider's voices and exit")
	return cmd
}

func printResults(cmd *cobra.Command, results []prompts.Result) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFILE")
	counts := make(map[prompts.Status]int)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Status, r.File)
		counts[r.Status]++
	}
	_ = tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d generated, %d skipped, %d failed\n",
		counts[prompts.StatusGenerated], counts[prompts.StatusSkipped], counts[prompts.StatusFailed])
}

// printVoices lists voices, marking the configured one with "*".
func printVoices(cmd *cobra.Command, voices []tts.Voice, selected string) {
	if len(voices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "the provider reported no voices")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME")
	for _, v := range voices {
		mark := ""
		if selected != "" && v.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, v.ID, v.Name)
	}
	_ = tw.Flush()
}
