package hostservice

import (
	"context"
	"log/slog"

	"minihost/go-backend/internal/bridge"
)

// logPresenter surfaces the approval URL through the structured log; the
// host front-end picks it up and renders the approval prompt.
type logPresenter struct{}

func (logPresenter) PresentApproval(ownerID int64, approvalURL string) {
	slog.Default().Info("delegation approval required", "owner_id", ownerID, "approval_url", approvalURL)
}

// defaultActions is the headless action set. Each capability acknowledges
// the call and leaves rendering to the front-end consuming the log stream;
// the full manifest stays advertised so guests can probe features.
func defaultActions() bridge.HostActions {
	log := slog.Default()
	return bridge.HostActions{
		Ready: func(ctx context.Context, opts bridge.ReadyOptions) error {
			log.Info("guest ready", "disable_native_gestures", opts.DisableNativeGestures)
			return nil
		},
		OpenURL: func(ctx context.Context, opts bridge.OpenURLOptions) error {
			log.Info("guest requested url open", "url", opts.URL)
			return nil
		},
		Close: func(ctx context.Context) error {
			log.Info("guest requested close")
			return nil
		},
		SetPrimaryButton: func(ctx context.Context, opts bridge.SetPrimaryButtonOptions) error {
			log.Info("guest set primary button", "text", opts.Text, "hidden", opts.Hidden)
			return nil
		},
		ViewCast: func(ctx context.Context, opts bridge.ViewCastOptions) error {
			log.Info("guest requested cast view", "hash", opts.Hash)
			return nil
		},
		ViewProfile: func(ctx context.Context, opts bridge.ViewProfileOptions) error {
			log.Info("guest requested profile view", "fid", opts.FID)
			return nil
		},
		ComposeCast: func(ctx context.Context, opts bridge.ComposeCastOptions) (bridge.ComposeCastResult, error) {
			log.Info("guest opened cast composer", "embeds", len(opts.Embeds))
			return bridge.ComposeCastResult{}, nil
		},
		ViewToken: func(ctx context.Context, opts bridge.ViewTokenOptions) error {
			log.Info("guest requested token view", "token", opts.Token)
			return nil
		},
		SendToken: func(ctx context.Context, opts bridge.SendTokenOptions) (bridge.TokenActionResult, error) {
			log.Info("guest requested token send", "token", opts.Token)
			return bridge.TokenActionResult{Success: false, Reason: "rejected_by_user"}, nil
		},
		SwapToken: func(ctx context.Context, opts bridge.SwapTokenOptions) (bridge.TokenActionResult, error) {
			log.Info("guest requested token swap", "sell_token", opts.SellToken, "buy_token", opts.BuyToken)
			return bridge.TokenActionResult{Success: false, Reason: "rejected_by_user"}, nil
		},
		OpenMiniApp: func(ctx context.Context, opts bridge.OpenMiniAppOptions) error {
			log.Info("guest requested mini app open", "url", opts.URL)
			return nil
		},
		CameraAndMicAccess: func(ctx context.Context) error {
			log.Info("guest requested camera and microphone access")
			return nil
		},
		ImpactOccurred: func(ctx context.Context, opts bridge.ImpactOccurredOptions) error {
			return nil
		},
		NotificationOccurred: func(ctx context.Context, opts bridge.NotificationOccurredOptions) error {
			return nil
		},
		SelectionChanged: func(ctx context.Context) error {
			return nil
		},
		UpdateBackState: func(ctx context.Context, opts bridge.BackStateOptions) error {
			log.Info("guest updated back state", "visible", opts.Visible)
			return nil
		},
	}
}
