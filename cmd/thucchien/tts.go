package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/speech"
)

// =============================================================================
// 🔊 tts 命令
// =============================================================================

func newTTSCmd(a *app) *cobra.Command {
	var (
		output   string
		model    string
		voice    string
		gemini   bool
		speakers []string
	)
	cmd := &cobra.Command{
		Use:   "tts <text>",
		Short: "Convert text to speech",
		Long: `Synthesize speech through /audio/speech, or through Gemini generateContent
with --gemini. Pass --speaker name=voice more than once for a multi-speaker
dialogue; the text should then prefix each line with the speaker name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.gateway()
			if err != nil {
				return err
			}
			synth := speech.NewSynthesizer(client, a.cfg.Speech, a.logger)

			var resp *speech.TTSResponse
			if gemini || len(speakers) > 0 {
				req := speech.GeminiTTSRequest{Text: args[0], Model: model}
				if req.Speakers, err = parseSpeakers(speakers, voice); err != nil {
					return err
				}
				req.MultiSpeaker = len(req.Speakers) > 1
				resp, err = synth.SynthesizeGemini(cmd.Context(), req)
			} else {
				resp, err = synth.Synthesize(cmd.Context(), speech.TTSRequest{Text: args[0], Model: model, Voice: voice})
			}
			if err != nil {
				return err
			}

			if err := image.WriteFile(output, resp.Audio); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes, %d chars)\n", output, len(resp.Audio), resp.CharCount)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "speech.mp3", "Output audio file")
	flags.StringVar(&model, "model", "", "TTS model")
	flags.StringVar(&voice, "voice", "", "Voice name (Zephyr, Puck, Charon, Kore, ...)")
	flags.BoolVar(&gemini, "gemini", false, "Use Gemini generateContent TTS")
	flags.StringArrayVar(&speakers, "speaker", nil, "Speaker mapping name=voice, repeatable")
	return cmd
}

// parseSpeakers 解析 name=voice，未指定时用 voice 作为单一说话人
func parseSpeakers(raw []string, voice string) ([]speech.Speaker, error) {
	if len(raw) == 0 {
		if voice == "" {
			return nil, nil
		}
		return []speech.Speaker{{Voice: voice}}, nil
	}
	out := make([]speech.Speaker, 0, len(raw))
	for _, r := range raw {
		name, v, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("invalid --speaker %q, want name=voice", r)
		}
		out = append(out, speech.Speaker{Speaker: strings.TrimSpace(name), Voice: strings.TrimSpace(v)})
	}
	return out, nil
}
