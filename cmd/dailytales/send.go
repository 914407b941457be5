package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dailytales/internal/catalog"
	"dailytales/internal/dispatch"
)

var sendFlags struct {
	main     string
	voice    string
	scenes   int
	duration int
}

var sendCmd = &cobra.Command{
	Use:   "send <subcategory>",
	Short: "Generate and send one /create message now",
	Example: `  dailytales send ancient_egypt
  dailytales send space --main science --voice female_arabic --scenes 8 --duration 60`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dispatch.Request{
			MainCategory: sendFlags.main,
			SubCategory:  args[0],
			VoiceType:    sendFlags.voice,
			ScenesCount:  sendFlags.scenes,
			Duration:     sendFlags.duration,
		}
		if req.MainCategory == "" {
			main, ok := catalog.MainOf(req.SubCategory)
			if !ok {
				return fmt.Errorf("unknown subcategory %q", req.SubCategory)
			}
			req.MainCategory = main
		}

		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.Dispatcher().Dispatch(cmd.Context(), req)
		return reportDispatch(cmd, res, err, a.Lang())
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run one auto dispatch with a random category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.Dispatcher().AutoDispatch(cmd.Context())
		return reportDispatch(cmd, res, err, a.Lang())
	},
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendFlags.main, "main", "", "main category id (inferred from the subcategory when empty)")
	f.StringVar(&sendFlags.voice, "voice", catalog.DefaultVoice, "voice type")
	f.IntVar(&sendFlags.scenes, "scenes", catalog.DefaultScenes, "number of scenes")
	f.IntVar(&sendFlags.duration, "duration", catalog.DefaultDuration, "duration in seconds")
}

func reportDispatch(cmd *cobra.Command, res dispatch.Result, err error, lang string) error {
	out := cmd.OutOrStdout()
	if err != nil {
		return errors.New(dispatch.UserMessage(err, lang) + " (" + string(dispatch.KindOf(err)) + ")")
	}
	if asJSON {
		return printJSON(out, res)
	}
	printf(out, "%s via %s\n\n%s\n", dispatch.SuccessMessage(res, lang), res.Transport, res.Message)
	return nil
}
