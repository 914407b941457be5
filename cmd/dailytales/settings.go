package main

import (
	"errors"

	"github.com/spf13/cobra"

	"dailytales/internal/dispatch"
	"dailytales/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show, change or test the delivery settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the settings with secrets hidden",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		v, err := a.Settings().Get(cmd.Context())
		if err != nil {
			return err
		}
		return printView(cmd, v)
	},
}

// patchFlags records only the flags the user actually set.
type patchFlags struct {
	chatID      string
	botToken    string
	apiID       string
	apiHash     string
	session     string
	autoTime    string
	autoEnabled bool
	clear       []string
}

var setFlags, testFlags patchFlags

func bindPatchFlags(cmd *cobra.Command, p *patchFlags) {
	f := cmd.Flags()
	f.StringVar(&p.chatID, "chat-id", "", "destination chat: @username, numeric id or t.me link")
	f.StringVar(&p.botToken, "bot-token", "", "bot API token")
	f.StringVar(&p.apiID, "api-id", "", "session api id")
	f.StringVar(&p.apiHash, "api-hash", "", "session api hash")
	f.StringVar(&p.session, "session", "", "session string")
	f.BoolVar(&p.autoEnabled, "auto", false, "enable the daily auto send")
	f.StringVar(&p.autoTime, "auto-time", "", "daily auto send time, HH:MM")
	f.StringSliceVar(&p.clear, "clear", nil, "remove stored credentials: bot_token, session")
}

func (p *patchFlags) patch(cmd *cobra.Command) settings.Patch {
	var out settings.Patch
	changed := cmd.Flags().Changed
	str := func(name string, v string, dst **string) {
		if changed(name) {
			s := v
			*dst = &s
		}
	}
	str("chat-id", p.chatID, &out.ChatID)
	str("bot-token", p.botToken, &out.BotToken)
	str("api-id", p.apiID, &out.APIID)
	str("api-hash", p.apiHash, &out.APIHash)
	str("session", p.session, &out.SessionString)
	str("auto-time", p.autoTime, &out.AutoSendTime)
	if changed("auto") {
		b := p.autoEnabled
		out.AutoSendEnabled = &b
	}
	if changed("clear") {
		out.Clear = append([]string(nil), p.clear...)
	}
	return out
}

var settingsSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Change settings; omitted flags keep their stored value",
	Example: `  dailytales settings set --chat-id @my_channel --bot-token "$BOT_TOKEN" --auto --auto-time 09:00
  dailytales settings set --clear session`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := setFlags.patch(cmd)
		if p.IsZero() {
			return errors.New("nothing to change, see --help")
		}
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		v, err := a.Settings().Save(cmd.Context(), p)
		if err != nil {
			return errors.New(dispatch.UserMessage(dispatch.Classify(err), a.Lang()))
		}
		return printView(cmd, v)
	},
}

var settingsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message; flags override stored values without saving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		var override *settings.Patch
		if p := testFlags.patch(cmd); !p.IsZero() {
			override = &p
		}
		name, err := a.Settings().Test(cmd.Context(), override)
		if err != nil {
			return errors.New(dispatch.UserMessage(dispatch.Classify(err), a.Lang()))
		}
		printf(cmd.OutOrStdout(), "test message sent via %s\n", name)
		return nil
	},
}

func printView(cmd *cobra.Command, v settings.View) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, v)
	}
	transport := v.Transport
	if transport == "" {
		transport = "none"
	}
	printf(out, "chat_id:        %s\n", v.ChatID)
	printf(out, "transport:      %s\n", transport)
	printf(out, "bot_token:      %s\n", yesNo(v.HasBotToken))
	printf(out, "api_id:         %s\n", yesNo(v.HasAPIID))
	printf(out, "api_hash:       %s\n", yesNo(v.HasAPIHash))
	printf(out, "session_string: %s\n", yesNo(v.HasSessionString))
	printf(out, "auto_send:      %s at %s\n", yesNo(v.AutoSendEnabled), v.AutoSendTime)
	return nil
}

func init() {
	bindPatchFlags(settingsSetCmd, &setFlags)
	bindPatchFlags(settingsTestCmd, &testFlags)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsTestCmd)
}
