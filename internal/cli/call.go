package cli

import (
	"fmt"

	"callscreen/internal/common"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place a screening call to a phone number",
	Long: `Place an outbound screening call without scoring a résumé first.

The call is answered by a running "callscreen serve" instance reachable on
server.publicURL. Calls placed this way carry no application context, so the
interviewer uses screening.jobContext for the role.`,
	RunE: runCall,
}

var callTo string

func init() {
	callCmd.Flags().StringVar(&callTo, "to", "", "Number to call in E.164 format (e.g. +15551234567)")
	_ = callCmd.MarkFlagRequired("to")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if err := common.ValidatePhoneNumber(callTo); err != nil {
		return err
	}
	if !cfg.Telephony.Enabled {
		return fmt.Errorf("telephony is disabled (set telephony.enabled or CALLSCREEN_TELEPHONY_ENABLED)")
	}

	client, err := newTelephonyClient(cfg, logger, nil)
	if err != nil {
		return err
	}
	callID, err := client.PlaceCall(cmd.Context(), callTo)
	if err != nil {
		return fmt.Errorf("failed to place call: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Call placed: %s\n", callID)
	fmt.Fprintf(out, "Voice webhook: %s\n", client.CallbackURL())
	return nil
}
