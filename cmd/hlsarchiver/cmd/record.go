package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/hlsarchiver/internal/cancel"
	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/httpclient"
	"github.com/jmylchreest/hlsarchiver/internal/recorder"
	"github.com/jmylchreest/hlsarchiver/internal/selection"
	"github.com/spf13/cobra"
)

var (
	recordVariant   string
	recordAudio     string
	recordVideo     string
	recordSubtitle  string
	recordBandwidth uint64
	recordStart     float64
	recordEnd       float64
)

var recordCmd = &cobra.Command{
	Use:   "record <URL> <PATH>",
	Short: "Record an HLS broadcast to a local directory",
	Long: `Record fetches the master or media playlist at URL, selects variants
and alternative renditions per the -v/--audio/--video/--subtitle flags,
and writes the recording to PATH, refreshing live playlists until the
broadcast ends or recording is interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordVariant, "variant", "v", "", "variant selection: first, lowest, highest, all")
	recordCmd.Flags().Uint64VarP(&recordBandwidth, "bandwidth", "b", 0, "select the highest-bandwidth variant at or below this cap")
	recordCmd.Flags().StringVar(&recordAudio, "audio", "default", "audio rendition selection: default, first, all")
	recordCmd.Flags().StringVar(&recordVideo, "video", "default", "video rendition selection: default, first, all")
	recordCmd.Flags().StringVar(&recordSubtitle, "subtitle", "default", "subtitle rendition selection: default, first, all")
	recordCmd.Flags().Float64Var(&recordStart, "start", 0, "clip start, in seconds (negative: relative to playlist end)")
	recordCmd.Flags().Float64Var(&recordEnd, "end", 0, "clip end, in seconds (negative: relative to playlist end)")
	rootCmd.AddCommand(recordCmd)
}

func parseVariantPolicy(variantSet, bandwidthSet bool) (selection.VariantPolicy, error) {
	if variantSet && bandwidthSet {
		return selection.VariantPolicy{}, fmt.Errorf("-v/--variant and -b/--bandwidth are mutually exclusive")
	}
	if bandwidthSet {
		return selection.VariantPolicy{Mode: selection.VariantBandwidthCap, Bandwidth: recordBandwidth}, nil
	}
	switch recordVariant {
	case "", "first":
		return selection.VariantPolicy{Mode: selection.VariantFirst}, nil
	case "lowest":
		return selection.VariantPolicy{Mode: selection.VariantLowest}, nil
	case "highest":
		return selection.VariantPolicy{Mode: selection.VariantHighest}, nil
	case "all":
		return selection.VariantPolicy{Mode: selection.VariantAll}, nil
	default:
		return selection.VariantPolicy{}, fmt.Errorf("invalid --variant %q: expected first, lowest, highest, or all", recordVariant)
	}
}

func parseMediaMode(name, value string) (selection.MediaMode, error) {
	switch value {
	case "", "default":
		return selection.MediaDefault, nil
	case "first":
		return selection.MediaFirst, nil
	case "all":
		return selection.MediaAll, nil
	default:
		return 0, fmt.Errorf("invalid --%s %q: expected default, first, or all", name, value)
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	url, dest := args[0], args[1]

	variantPolicy, err := parseVariantPolicy(cmd.Flags().Changed("variant"), cmd.Flags().Changed("bandwidth"))
	if err != nil {
		return err
	}
	audio, err := parseMediaMode("audio", recordAudio)
	if err != nil {
		return err
	}
	video, err := parseMediaMode("video", recordVideo)
	if err != nil {
		return err
	}
	subtitle, err := parseMediaMode("subtitle", recordSubtitle)
	if err != nil {
		return err
	}

	opts := recorder.Options{
		Variant:  variantPolicy,
		Audio:    audio,
		Video:    video,
		Subtitle: subtitle,
	}
	if cmd.Flags().Changed("start") {
		opts.Start = &recordStart
	}
	if cmd.Flags().Changed("end") {
		opts.End = &recordEnd
	}

	tok := cancel.New()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Info("received interrupt, stopping recording")
		tok.Trip()
		<-sigCh
		os.Exit(1)
	}()

	client := httpclient.New(nil)
	rec := recorder.New(client, appConfig.Recorder.ConcurrencyWidth, appLogger)

	err = rec.Record(tok.Context(), tok, url, dest, opts)
	if hlserr.Is(err, hlserr.KindCancelled) {
		fmt.Println("Stopped recording.")
		return nil
	}
	return err
}
